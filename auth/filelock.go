package auth

import (
	"fmt"
	"os"
	"time"
)

const (
	lockRetries    = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// fileLock coordinates access to the credentials file across processes using
// a sibling lock file created with O_EXCL.
type fileLock struct {
	lockFile *os.File
	lockPath string
}

// acquireFileLock takes an exclusive lock for filePath, waiting for a holder
// to finish and breaking locks older than lockStaleAfter (a previous process
// that crashed while holding the lock).
func acquireFileLock(filePath string) (*fileLock, error) {
	lockPath := filePath + ".lock"

	for i := 0; i < lockRetries; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID in the lock file helps debugging stuck locks.
			fmt.Fprintf(f, "%d", os.Getpid())
			return &fileLock{lockFile: f, lockPath: lockPath}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire file lock: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > lockStaleAfter {
				if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
					return nil, fmt.Errorf("failed to remove stale lock file %s: %w", lockPath, remErr)
				}
				continue
			}
		}

		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf(
		"timeout waiting for file lock after %v",
		time.Duration(lockRetries)*lockRetryDelay,
	)
}

// release closes and removes the lock file.
func (fl *fileLock) release() error {
	if fl.lockFile != nil {
		fl.lockFile.Close()
	}
	return os.Remove(fl.lockPath)
}
