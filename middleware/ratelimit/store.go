// Copyright 2025 The NextRush Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"sync"
	"time"
)

// Store provides counter storage for fixed-window rate limiting. Every
// method must be atomic per key; implementations backed by shared storage
// (Redis) make the limiter consistent across instances.
type Store interface {
	// Increment bumps the counter for key, starting a fresh window when
	// the previous one expired. Returns the new count and the window's
	// reset time.
	Increment(key string, window time.Duration) (count int, resetAt time.Time)

	// Decrement gives one slot back without touching the window. Used by
	// skip-successful accounting; a counter never goes below zero.
	Decrement(key string)

	// Get returns the current count and reset time without modifying it.
	Get(key string) (count int, resetAt time.Time, ok bool)

	// Reset removes the counter for key.
	Reset(key string)

	// Clear removes all counters.
	Clear()
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the default in-process Store. A background sweeper drops
// expired windows so idle keys do not accumulate.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore creates a memory store and starts its sweeper.
// Call Stop (typically via a router shutdown hook) to end the sweeper.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*windowEntry),
		stop:    make(chan struct{}),
	}
	go s.sweep(time.Minute)

	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(key string, window time.Duration) (int, time.Time) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	return entry.count, entry.resetAt
}

// Decrement implements Store.
func (s *MemoryStore) Decrement(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.count > 0 {
		entry.count--
	}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (int, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0, time.Time{}, false
	}

	return entry.count, entry.resetAt, true
}

// Reset implements Store.
func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear implements Store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*windowEntry)
	s.mu.Unlock()
}

// Stop ends the sweeper goroutine. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.resetAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
