// stores.go
//
// In-memory implementations of social.Session and auth.SessionStore.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"

	"github.com/MGallo-Code/sociallink/internal/social"
)

// MemorySession implements social.Session for tests.
// Always stateful...Values is a map, like a real session.
// Use *Err fields to inject errors for specific operations.
type MemorySession struct {
	// Error injection...zero value means no error
	GetErr    error
	SetErr    error
	DeleteErr error

	Values map[string]string

	mu sync.Mutex
}

// NewMemorySession returns an empty MemorySession ready for use.
func NewMemorySession() *MemorySession {
	return &MemorySession{Values: make(map[string]string)}
}

func (m *MemorySession) Get(_ context.Context, key string) (string, bool, error) {
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Values[key]
	return v, ok, nil
}

func (m *MemorySession) Set(_ context.Context, key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	return nil
}

func (m *MemorySession) Delete(_ context.Context, keys ...string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.Values, k)
	}
	return nil
}

// Has reports whether key is present. Test convenience, not part of social.Session.
func (m *MemorySession) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Values[key]
	return ok
}

// MemoryStore implements auth.SessionStore for tests, handing out one MemorySession per id.
type MemoryStore struct {
	// Error injection...zero value means no error
	HealthErr  error
	DestroyErr error

	// SessionSetErr becomes SetErr on every session created after it is set.
	SessionSetErr error

	Sessions map[string]*MemorySession // keyed by session id

	mu sync.Mutex
}

// NewMemoryStore returns an empty MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Sessions: make(map[string]*MemorySession)}
}

// Session returns the session for id, creating it on first use.
func (m *MemoryStore) Session(id string) social.Session {
	return m.Get(id)
}

// Get returns the concrete *MemorySession for id so tests can inspect Values.
func (m *MemoryStore) Get(id string) *MemorySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sessions == nil {
		m.Sessions = make(map[string]*MemorySession)
	}
	s, ok := m.Sessions[id]
	if !ok {
		s = NewMemorySession()
		s.SetErr = m.SessionSetErr
		m.Sessions[id] = s
	}
	return s
}

// Destroy drops the whole session for id.
func (m *MemoryStore) Destroy(_ context.Context, id string) error {
	if m.DestroyErr != nil {
		return m.DestroyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Sessions, id)
	return nil
}

// Exists reports whether a session for id has been created and not destroyed.
func (m *MemoryStore) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Sessions[id]
	return ok
}

func (m *MemoryStore) CheckHealth(_ context.Context) error {
	return m.HealthErr
}
