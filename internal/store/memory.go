package store

import (
	"errors"
	"sync"

	"github.com/i474232898/forecast-summary/internal/weather"
)

var (
	// ErrNotFound is returned before the first successful fetch.
	ErrNotFound = errors.New("no forecast state available")
)

// MemoryStore is a concurrency-safe in-memory record of view states. The
// newest state is the current one; older states are kept for inspection only
// and nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first
	states []weather.State

	// retention configuration
	maxHistory int // max number of states kept
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, only the latest state is kept.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &MemoryStore{
		maxHistory: maxHistory,
	}
}

// Save records state as the latest and enforces retention.
func (s *MemoryStore) Save(state weather.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = append(s.states, state.Clone())

	if len(s.states) > s.maxHistory {
		over := len(s.states) - s.maxHistory
		kept := make([]weather.State, s.maxHistory)
		copy(kept, s.states[over:])
		s.states = kept
	}
}

// Latest returns the most recently saved state.
func (s *MemoryStore) Latest() (weather.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.states) == 0 {
		return weather.State{}, ErrNotFound
	}
	return s.states[len(s.states)-1].Clone(), nil
}

// History returns the retained states, newest first.
func (s *MemoryStore) History() []weather.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.State, 0, len(s.states))
	for i := len(s.states) - 1; i >= 0; i-- {
		out = append(out, s.states[i].Clone())
	}
	return out
}

var _ weather.Store = (*MemoryStore)(nil)
