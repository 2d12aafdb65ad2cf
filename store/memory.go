package store

import (
	"context"
	"sync"
)

// MemStore keeps session state in memory only. Sessions do not survive a
// restart; it exists for tests and for callers that explicitly want
// ephemeral sessions.
type MemStore struct {
	mu    sync.Mutex
	state State
	set   bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the last saved state, or the empty State.
func (m *MemStore) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return State{}, nil
	}
	out := m.state
	out.UserJSON = append([]byte(nil), m.state.UserJSON...)
	return out, nil
}

// Save overwrites the stored state.
func (m *MemStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UserJSON = append([]byte(nil), state.UserJSON...)
	m.state = state
	m.set = true
	return nil
}

// Clear removes the stored state. Clearing an empty store is a no-op.
func (m *MemStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	m.set = false
	return nil
}
