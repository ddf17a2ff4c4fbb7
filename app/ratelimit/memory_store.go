package ratelimit

import (
	"context"
	"sync"
	"time"
)

// keyWindow is the timestamp log for one identifier, oldest first.
type keyWindow struct {
	mu   sync.Mutex
	hits []time.Time
}

// prune drops timestamps strictly older than cutoff. Caller holds w.mu.
func (w *keyWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && w.hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// MemoryStore keeps request timestamps in process memory. It is only valid
// for a single gateway instance: N instances behind a load balancer each
// hold their own window, multiplying the effective limit by N. Use SQLStore
// for multi-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*keyWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*keyWindow)}
}

func (s *MemoryStore) window(identifier string) *keyWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identifier]
	if !ok {
		w = &keyWindow{}
		s.windows[identifier] = w
	}
	return w
}

func (s *MemoryStore) Hit(_ context.Context, identifier string, limit int, window time.Duration, now time.Time) (int, bool, error) {
	w := s.window(identifier)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now.Add(-window))
	if len(w.hits) >= limit {
		return len(w.hits), false, nil
	}
	w.hits = append(w.hits, now)
	return len(w.hits), true, nil
}

func (s *MemoryStore) Reset(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, identifier)
	return nil
}

// Sweep removes identifiers whose newest timestamp is older than before.
func (s *MemoryStore) Sweep(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for identifier, w := range s.windows {
		w.mu.Lock()
		w.prune(before)
		empty := len(w.hits) == 0
		w.mu.Unlock()

		if empty {
			delete(s.windows, identifier)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows = make(map[string]*keyWindow)
	return nil
}

// Size returns the number of tracked identifiers.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
