package token

import (
	"context"
	"sync"
	"time"
)

// Store is the TokenCache backend. Entries disappear once their TTL elapses.
type Store interface {
	Get(ctx context.Context, key string) (*Token, bool, error)
	Set(ctx context.Context, key string, tok *Token, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	token     *Token
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired entries are evicted lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Token, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	tok := *entry.token
	return &tok, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, tok *Token, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	copied := *tok
	s.mu.Lock()
	s.entries[key] = memoryEntry{token: &copied, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len counts entries including any not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
