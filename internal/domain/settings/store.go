package settings

import "sync"

// Store holds the process-wide settings. Readers always receive a clone.
type Store struct {
	mu      sync.RWMutex
	current *Settings // Protected by mu
	version uint64    // Protected by mu
}

// NewStore creates a store seeded with initial (Default() when nil)
func NewStore(initial *Settings) *Store {
	if initial == nil {
		initial = Default()
	}
	return &Store{current: initial.Clone()}
}

// Get returns a snapshot of the current settings
func (s *Store) Get() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Set validates and replaces the current settings
func (s *Store) Set(next *Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next.Clone()
	s.version++
	s.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the current settings and stores the
// result if it validates.
func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	fn(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.current = next
	s.version++
	return next.Clone(), nil
}

// Version increments on every successful Set or Update
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
