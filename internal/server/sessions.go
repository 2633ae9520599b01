package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/layout-viewer/pkg/queue"
)

// Sessions keeps one upload queue per browser session
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*queue.Coordinator

	create func() *queue.Coordinator
}

func NewSessions(create func() *queue.Coordinator) *Sessions {
	return &Sessions{
		items:  map[string]*queue.Coordinator{},
		create: create,
	}
}

// Create starts a new session and returns its id
func (s *Sessions) Create() (string, *queue.Coordinator) {
	id := uuid.NewString()
	q := s.create()

	s.mu.Lock()
	s.items[id] = q
	s.mu.Unlock()

	return id, q
}

func (s *Sessions) Get(id string) (*queue.Coordinator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.items[id]
	return q, ok
}

// Delete ends a session and releases its records
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	q, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()

	if ok {
		q.Close()
	}

	return ok
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Close ends all sessions
func (s *Sessions) Close() {
	s.mu.Lock()
	items := s.items
	s.items = map[string]*queue.Coordinator{}
	s.mu.Unlock()

	for _, q := range items {
		q.Close()
	}
}
