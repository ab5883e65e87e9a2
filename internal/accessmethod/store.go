package accessmethod

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wadahiro/apiaccess/internal/log"
)

var storeLogger = log.For(log.ComponentStore)

// ErrNotFound is returned when no method has the requested ID.
var ErrNotFound = errors.New("access method not found")

// DataSource provides read access to the ordered list of configured methods.
// Implementations must make settings edits visible to the next call.
type DataSource interface {
	All() []Method
}

// Store is an ordered, concurrency-safe collection of access methods. The
// zero value is an empty store ready to use.
type Store struct {
	mu          sync.RWMutex
	methods     []Method
	subscribers map[int]chan struct{}
	nextSub     int
}

// NewStore creates a store holding a copy of methods.
func NewStore(methods []Method) (*Store, error) {
	s := &Store{}
	if err := s.Replace(methods); err != nil {
		return nil, err
	}
	return s, nil
}

// All returns a copy of every method in order.
func (s *Store) All() []Method {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Method, len(s.methods))
	copy(out, s.methods)
	return out
}

// Enabled returns the enabled methods in order.
func (s *Store) Enabled() []Method {
	return EnabledOf(s.All())
}

// EnabledOf filters methods down to the enabled ones, keeping order.
func EnabledOf(methods []Method) []Method {
	out := make([]Method, 0, len(methods))
	for _, m := range methods {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// Get returns the method with the given ID.
func (s *Store) Get(id string) (Method, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.methods[i], nil
	}
	return Method{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Replace swaps the whole list. Every method must validate and IDs must be unique.
func (s *Store) Replace(methods []Method) error {
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate access method id: %s", m.ID)
		}
		seen[m.ID] = true
	}

	next := make([]Method, len(methods))
	copy(next, methods)

	s.mu.Lock()
	s.methods = next
	s.mu.Unlock()

	storeLogger.Debug("Access methods replaced", "count", len(next))
	s.notify()
	return nil
}

// Add appends a method.
func (s *Store) Add(m Method) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.indexOf(m.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("duplicate access method id: %s", m.ID)
	}
	s.methods = append(s.methods, m)
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetEnabled toggles a method.
func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.methods[i].Enabled = enabled
	s.mu.Unlock()

	storeLogger.Debug("Access method toggled", "id", id, "enabled", enabled)
	s.notify()
	return nil
}

// Remove deletes a method.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.methods = append(s.methods[:i:i], s.methods[i+1:]...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Subscribe returns a channel that receives after every change, coalescing
// bursts, and a function that cancels the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	if s.subscribers == nil {
		s.subscribers = make(map[int]chan struct{})
	}
	s.subscribers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i, m := range s.methods {
		if m.ID == id {
			return i
		}
	}
	return -1
}

var _ DataSource = (*Store)(nil)
