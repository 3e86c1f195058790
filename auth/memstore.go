package auth

import "sync"

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
// Contents are lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.creds == nil {
		return nil, ErrNoCredentials
	}
	c := *m.creds
	return &c, nil
}

func (m *MemoryStore) Set(creds *Credentials) error {
	c := *creds
	m.mu.Lock()
	m.creds = &c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.creds = nil
	m.mu.Unlock()
	return nil
}
