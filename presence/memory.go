package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-instance store used when no Redis is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uint]map[string]struct{}
	lastSeen map[uint]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uint]map[string]struct{}),
		lastSeen: make(map[uint]time.Time),
	}
}

func (m *MemoryStore) Connect(_ context.Context, userID uint, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sessions[userID]
	if !ok {
		set = make(map[string]struct{})
		m.sessions[userID] = set
	}
	set[sessionID] = struct{}{}
	m.lastSeen[userID] = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Disconnect(_ context.Context, userID uint, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sessions[userID]
	delete(set, sessionID)
	m.lastSeen[userID] = time.Now().UTC()
	if len(set) == 0 {
		delete(m.sessions, userID)
	}
	return int64(len(set)), nil
}

func (m *MemoryStore) Touch(_ context.Context, userID uint) error {
	m.mu.Lock()
	m.lastSeen[userID] = time.Now().UTC()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID uint) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.sessions[userID]))
	return &Status{UserID: userID, Online: n > 0, Sessions: n, LastSeen: m.lastSeen[userID]}, nil
}
