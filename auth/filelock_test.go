package auth

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_BasicAcquireRelease(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tokens.json")

	lock, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := testFile + ".lock"
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Errorf("Lock file was not created")
	}

	if err := lock.release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file was not removed after release")
	}
}

func TestFileLock_ConcurrentAccess(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tokens.json")

	const goroutines = 10
	const iterations = 5

	var (
		successCount atomic.Int32
		wg           sync.WaitGroup
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				lock, err := acquireFileLock(testFile)
				if err != nil {
					t.Errorf("Goroutine %d iteration %d: Failed to acquire lock: %v", id, j, err)
					return
				}

				// Simulate work while holding lock
				time.Sleep(10 * time.Millisecond)
				successCount.Add(1)

				if err := lock.release(); err != nil {
					t.Errorf("Goroutine %d iteration %d: Failed to release lock: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	expected := int32(goroutines * iterations)
	if successCount.Load() != expected {
		t.Errorf("Expected %d successful operations, got %d", expected, successCount.Load())
	}

	if _, err := os.Stat(testFile + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all goroutines finished")
	}
}

func TestFileLock_StaleLockCleanup(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tokens.json")
	lockPath := testFile + ".lock"

	staleLock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to create stale lock: %v", err)
	}
	staleLock.Close()

	// Age the lock past the stale threshold.
	staleTime := time.Now().Add(-lockStaleAfter - 5*time.Second)
	if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
		t.Fatalf("Failed to set stale lock time: %v", err)
	}

	lock, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock after stale lock: %v", err)
	}
	defer lock.release()

	if lock.lockFile == nil {
		t.Errorf("Lock file handle is nil")
	}
}

func TestFileLock_BlockedByActiveLock(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tokens.json")

	lock1, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		lock2, err := acquireFileLock(testFile)
		if err != nil {
			errChan <- err
			return
		}
		lock2.release()
		errChan <- nil
	}()

	// Give the second goroutine time to start waiting.
	time.Sleep(200 * time.Millisecond)

	select {
	case <-errChan:
		t.Errorf("Second lock acquired while first lock was active")
	default:
		// Expected: still blocked
	}

	lock1.release()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Second lock failed after first lock released: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Second lock timed out after first lock released")
	}
}

func TestFileLock_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timeout test in short mode")
	}

	testFile := filepath.Join(t.TempDir(), "tokens.json")
	lockPath := testFile + ".lock"

	// A fresh (non-stale) lock that is never released.
	freshLock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to create fresh lock: %v", err)
	}
	freshLock.Close()

	start := time.Now()
	_, err = acquireFileLock(testFile)
	duration := time.Since(start)

	if err == nil {
		t.Errorf("Expected timeout error, but lock was acquired")
	}

	// Should time out around lockRetries * lockRetryDelay (5 seconds).
	if duration < 4*time.Second || duration > 7*time.Second {
		t.Errorf("Expected timeout around 5 seconds, got %v", duration)
	}

	os.Remove(lockPath)
}

func BenchmarkFileLock_AcquireRelease(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "tokens.json")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lock, err := acquireFileLock(testFile)
		if err != nil {
			b.Fatalf("Failed to acquire lock: %v", err)
		}
		if err := lock.release(); err != nil {
			b.Fatalf("Failed to release lock: %v", err)
		}
	}
}
