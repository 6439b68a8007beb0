// Package conversation keeps the bounded per-user history that is replayed to
// the completion service.
package conversation

import (
	"sort"
	"sync"

	"github.com/iago/line-relay/internal/domain"
)

const DefaultMaxTurns = 10

type history struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// Store is process-wide and unpersisted. Entries are created lazily and
// never evicted.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*history
	maxTurns int
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		users:    make(map[string]*history),
		maxTurns: maxTurns,
	}
}

func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// GetOrCreate returns a snapshot of the user's turns, creating an empty
// history on first contact.
func (s *Store) GetOrCreate(userID string) []domain.Turn {
	h := s.entry(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Turn(nil), h.turns...)
}

// Append adds one turn and trims the oldest turns past MaxTurns.
func (s *Store) Append(userID string, turn domain.Turn) {
	s.AppendExchange(userID, turn)
}

// AppendExchange records turns as one unit: readers never observe a prefix
// of the batch.
func (s *Store) AppendExchange(userID string, turns ...domain.Turn) {
	if len(turns) == 0 {
		return
	}
	h := s.entry(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turns...)
	if overflow := len(h.turns) - s.maxTurns; overflow > 0 {
		trimmed := make([]domain.Turn, s.maxTurns)
		copy(trimmed, h.turns[overflow:])
		h.turns = trimmed
	}
}

func (s *Store) Len(userID string) int {
	s.mu.RLock()
	h, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Has reports whether a history exists for userID without creating one.
func (s *Store) Has(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) entry(userID string) *history {
	s.mu.RLock()
	h, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.users[userID]; ok {
		return h
	}
	h = &history{}
	s.users[userID] = h
	return h
}
