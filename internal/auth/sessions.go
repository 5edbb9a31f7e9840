package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshSessionPrefix = "session:refresh:"

// SessionStore tracks which refresh tokens are still live. Entries are keyed
// by the refresh token's ID and expire with the token.
type SessionStore interface {
	Save(ctx context.Context, id, userID string, ttl time.Duration) error
	Active(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) (bool, error)
}

// RedisSessionStore keeps refresh sessions in Redis.
type RedisSessionStore struct {
	cache *redis.Client
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(cache *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{cache: cache}
}

func (s *RedisSessionStore) Save(ctx context.Context, id, userID string, ttl time.Duration) error {
	if err := s.cache.Set(ctx, refreshSessionPrefix+id, userID, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Active(ctx context.Context, id string) (bool, error) {
	n, err := s.cache.Exists(ctx, refreshSessionPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("lookup refresh session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := s.cache.Del(ctx, refreshSessionPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return n == 1, nil
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// MemorySessionStore is an in-process SessionStore for development and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemorySessionStore builds an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, id, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, key)
		}
	}
	s.sessions[id] = memorySession{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Active(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return ok && s.now().Before(sess.expiresAt), nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok && s.now().Before(sess.expiresAt), nil
}
