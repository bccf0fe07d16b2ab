// Package state holds the observable value behind each controller.
package state

import "sync"

// Store owns a value of type T and publishes every replacement to its
// subscribers. Readers always see a complete value; there is no partial update.
type Store[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]chan T
}

// New returns a store holding initial
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current value
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and publishes it
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update applies fn to the current value under the write lock, stores the
// result and publishes it. fn must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	for _, ch := range s.subs {
		offer(ch, s.value)
	}
	return s.value
}

// Subscribe returns a channel that receives the latest value after each
// update. A slow subscriber only ever misses intermediate values, never the
// last one. The returned func unsubscribes and closes the channel.
func (s *Store[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan T, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer replaces whatever is buffered in ch with v. Called with the write
// lock held, so it is the only sender.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
