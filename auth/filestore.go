package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileStore persists credentials in a JSON file shared across server origins,
// so tokens for a staging and a production server can live side by side.
// Writes go through a temp file plus atomic rename, guarded by a lock file
// against concurrent processes.
type FileStore struct {
	path   string
	origin string
}

// credentialsFile is the on-disk document, keyed by server origin.
type credentialsFile struct {
	Origins map[string]*Credentials `json:"origins"`
}

// NewFileStore creates a FileStore backed by path, scoped to origin
// (e.g. "https://api.courtside.app").
func NewFileStore(path, origin string) *FileStore {
	return &FileStore{path: path, origin: origin}
}

// Get returns the stored credentials for this store's origin. A missing or
// unreadable file degrades to ErrNoCredentials so a fresh login can proceed.
func (s *FileStore) Get() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ErrNoCredentials
	}

	var doc credentialsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrNoCredentials
	}

	creds, ok := doc.Origins[s.origin]
	if !ok || creds == nil || creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	c := *creds
	return &c, nil
}

// Set overwrites the credentials for this store's origin, preserving entries
// for other origins.
func (s *FileStore) Set(creds *Credentials) error {
	c := *creds
	return s.update(func(doc *credentialsFile) {
		doc.Origins[s.origin] = &c
	})
}

// Clear removes the credentials for this store's origin.
func (s *FileStore) Clear() error {
	return s.update(func(doc *credentialsFile) {
		delete(doc.Origins, s.origin)
	})
}

// update applies fn to the on-disk document under the file lock and writes
// the result atomically (temp file + rename).
func (s *FileStore) update(fn func(*credentialsFile)) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	var doc credentialsFile
	if existing, readErr := os.ReadFile(s.path); readErr == nil {
		// Corrupt files start over rather than blocking the write.
		if unmarshalErr := json.Unmarshal(existing, &doc); unmarshalErr != nil {
			doc = credentialsFile{}
		}
	}
	if doc.Origins == nil {
		doc.Origins = make(map[string]*Credentials)
	}

	fn(&doc)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
