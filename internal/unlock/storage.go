package unlock

import (
	"context"
	"errors"
	"sync"
)

// ErrNoValue is returned by Storage.Get when nothing is stored under the key.
var ErrNoValue = errors.New("unlock: no value")

// Storage is a session-scoped key/value mechanism. Values live until the
// session is cleared or expires in the backend.
type Storage interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	// Update replaces the value under key with fn(current, found) atomically
	// with respect to other Updates of the same session and key.
	Update(ctx context.Context, sessionID, key string, fn func(current string, found bool) string) error
	Clear(ctx context.Context, sessionID string) error
	// Touch records activity on a session so idle expiry counts from now.
	Touch(ctx context.Context, sessionID string) error
}

// MemoryStorage keeps session values in process memory.
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: map[string]map[string]string{}}
}

func (m *MemoryStorage) Get(_ context.Context, sessionID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions[sessionID][key]
	if !ok {
		return "", ErrNoValue
	}
	return v, nil
}

func (m *MemoryStorage) Update(_ context.Context, sessionID, key string, fn func(string, bool) string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	values, ok := m.sessions[sessionID]
	if !ok {
		values = map[string]string{}
		m.sessions[sessionID] = values
	}
	current, found := values[key]
	values[key] = fn(current, found)
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Touch is a no-op: memory values never expire.
func (m *MemoryStorage) Touch(context.Context, string) error { return nil }
