package auth0

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Entries respect their TTLs but are only reaped lazily on access.
type MemoryStore struct {
	mu       sync.Mutex
	logins   map[string]memoryEntry[LoginState]
	sessions map[string]memoryEntry[ProviderSession]
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logins:   map[string]memoryEntry[LoginState]{},
		sessions: map[string]memoryEntry[ProviderSession]{},
	}
}

func (m *MemoryStore) SaveLoginState(_ context.Context, state string, ls LoginState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[state] = memoryEntry[LoginState]{value: ls, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) TakeLoginState(_ context.Context, state string) (*LoginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.logins[state]
	if !ok {
		return nil, nil
	}
	delete(m.logins, state)
	if time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	ls := entry.value
	return &ls, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, id string, ps ProviderSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = memoryEntry[ProviderSession]{value: ps, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.sessions, id)
		return nil, nil
	}
	ps := entry.value
	return &ps, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
