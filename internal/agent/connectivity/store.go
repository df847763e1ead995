package connectivity

import (
	"sync"
)

// Store is the observable online flag. Listeners run synchronously on the
// goroutine that changed the flag and only on actual changes.
type Store struct {
	mu        sync.RWMutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int
}

func NewStore(online bool) *Store {
	return &Store{
		online:    online,
		listeners: make(map[int]func(online bool)),
	}
}

func (s *Store) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Set updates the flag and notifies listeners when it changed.
func (s *Store) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

// Subscribe registers fn and returns its unsubscribe function.
func (s *Store) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
