package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// History keeps the most recent values per key, each for at most ttl.
type History[T any] struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	keys     map[string]*keyStore[T]
	capacity int
	ttl      time.Duration
}

type keyStore[T any] struct {
	items []*entry[T]
}

type entry[T any] struct {
	val       T
	expiresAt time.Time
}

func NewHistory[T any](clock clockwork.Clock, capacity int, ttl time.Duration) *History[T] {
	return &History[T]{
		clock:    clock,
		keys:     make(map[string]*keyStore[T]),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (s *History[T]) Push(key string, val T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks, ok := s.keys[key]
	if !ok {
		ks = &keyStore[T]{items: make([]*entry[T], 0, s.capacity)}
		s.keys[key] = ks
	}

	if s.capacity > 0 && len(ks.items) >= s.capacity {
		over := len(ks.items) - s.capacity + 1
		ks.items = ks.items[over:]
	}

	ks.items = append(ks.items, &entry[T]{val: val, expiresAt: s.clock.Now().Add(s.ttl)})
}

// Get returns the live values for key, oldest first.
func (s *History[T]) Get(key string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ks, ok := s.keys[key]
	if !ok {
		return nil
	}

	now := s.clock.Now()
	items := make([]T, 0, len(ks.items))
	for _, e := range ks.items {
		if e.expiresAt.After(now) {
			items = append(items, e.val)
		}
	}
	return items
}

func (s *History[T]) Len(key string) int {
	return len(s.Get(key))
}

// Run drops expired values every interval until ctx is done.
func (s *History[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.CleanAllExpired()
		}
	}
}

func (s *History[T]) CleanAllExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for key, store := range s.keys {
		newItems := store.items[:0]
		for _, item := range store.items {
			if item.expiresAt.After(now) {
				newItems = append(newItems, item)
			}
		}
		store.items = newItems

		if len(newItems) == 0 {
			delete(s.keys, key)
		}
	}
}

func (s *History[T]) ClearKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
}
