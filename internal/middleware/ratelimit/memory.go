package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a log of hit times per client in process memory.
type MemoryStore struct {
	mu           sync.Mutex
	clients      map[string][]time.Time
	retention    time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
}

// NewMemoryStore starts a janitor that forgets clients idle for longer
// than retention.
func NewMemoryStore(retention, cleanupInterval time.Duration) *MemoryStore {
	def := DefaultConfig()
	if retention <= 0 {
		retention = def.Window
	}
	if cleanupInterval <= 0 {
		cleanupInterval = def.CleanupInterval
	}

	s := &MemoryStore{
		clients:     make(map[string][]time.Time),
		retention:   retention,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	go s.startCleanup(cleanupInterval)
	return s
}

func (s *MemoryStore) Take(_ context.Context, key string, now time.Time, limit int, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := prune(s.clients[key], now, window)

	if len(hits) >= limit {
		s.clients[key] = hits
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: hits[0].Add(window).Sub(now),
		}, nil
	}

	hits = append(hits, now)
	s.clients[key] = hits
	return Decision{Allowed: true, Remaining: limit - len(hits)}, nil
}

// prune drops hits that have left the window. hits is in time order.
func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) >= window {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

func (s *MemoryStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupStaleEntries()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes clients whose newest hit is past retention.
func (s *MemoryStore) cleanupStaleEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for ip, hits := range s.clients {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= s.retention {
			delete(s.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (s *MemoryStore) ActiveClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}
