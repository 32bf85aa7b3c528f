package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default in-process revocation store. Suitable for a
// single replica; multi-replica deployments wire the Redis store instead.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory revocation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records the token hash until expiresAt. Already-expired tokens are
// ignored; there is nothing left to revoke.
func (s *MemoryStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	if !expiresAt.After(s.now()) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[hashToken(token)] = expiresAt
	s.purgeLocked()
	return nil
}

// IsRevoked reports whether the token is currently revoked.
func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	key := hashToken(token)

	s.mu.RLock()
	expiresAt, found := s.revoked[key]
	s.mu.RUnlock()

	if !found {
		return false, nil
	}
	if !expiresAt.After(s.now()) {
		// Entry outlived the token; drop it lazily.
		s.mu.Lock()
		if exp, ok := s.revoked[key]; ok && !exp.After(s.now()) {
			delete(s.revoked, key)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// purgeLocked drops expired entries. Caller holds the write lock.
func (s *MemoryStore) purgeLocked() {
	now := s.now()
	for key, expiresAt := range s.revoked {
		if !expiresAt.After(now) {
			delete(s.revoked, key)
		}
	}
}
