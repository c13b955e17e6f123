package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyStore suppresses duplicate escalation notifications. SetIfAbsent
// returns true when the key was newly claimed and the notification should be
// sent; false when it already exists and the notification must be suppressed.
//
// The store is externally backed on purpose: process-local memory resets
// unpredictably across instances and cannot carry the at-most-once-per-day
// guarantee.
type KeyStore interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DailyKey derives the deterministic dedupe key for an escalation kind,
// entity, and calendar day.
func DailyKey(kind, entityID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", kind, entityID, day.Format("2006-01-02"))
}

// RedisKeyStore implements KeyStore on Redis SETNX with a TTL.
type RedisKeyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKeyStore creates a store. Keys are namespaced under the prefix.
func NewRedisKeyStore(client *redis.Client, prefix string) *RedisKeyStore {
	if prefix == "" {
		prefix = "escalation"
	}
	return &RedisKeyStore{client: client, prefix: prefix}
}

func (s *RedisKeyStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+":"+key, 1, ttl).Result()
}

// MemoryKeyStore is a mutex-guarded map implementation for tests.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	Now  func() time.Time
}

// NewMemoryKeyStore creates an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]time.Time), Now: time.Now}
}

func (s *MemoryKeyStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	if expiry, exists := s.keys[key]; exists && expiry.After(now) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}
