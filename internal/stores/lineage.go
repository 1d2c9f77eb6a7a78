package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLineageUnknown means the lineage was never started, expired, or was ended.
	ErrLineageUnknown = errors.New("refresh lineage unknown")
	// ErrLineageReuse means a superseded token of a live lineage was presented.
	ErrLineageReuse       = errors.New("refresh token reused")
	ErrLineageUnavailable = errors.New("lineage store unavailable")
)

// LineageStore tracks the current token id of every refresh lineage.
type LineageStore interface {
	Start(ctx context.Context, lineage, tokenID string, ttl time.Duration) error
	// Advance replaces expected with next when expected is current.
	Advance(ctx context.Context, lineage, expected, next string, ttl time.Duration) error
	End(ctx context.Context, lineage string) error
}

// RedisLineageStore stores one key per lineage and advances it with WATCH/MULTI.
type RedisLineageStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisLineageStore(client redis.UniversalClient, prefix string) *RedisLineageStore {
	if prefix == "" {
		prefix = "srl"
	}
	return &RedisLineageStore{redis: client, prefix: prefix}
}

func (s *RedisLineageStore) key(lineage string) string {
	return s.prefix + ":" + lineage
}

func (s *RedisLineageStore) Start(ctx context.Context, lineage, tokenID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(lineage), tokenID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLineageUnavailable, err)
	}
	return nil
}

func (s *RedisLineageStore) Advance(ctx context.Context, lineage, expected, next string, ttl time.Duration) error {
	const maxRetries = 4
	key := s.key(lineage)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if current != expected {
				return ErrLineageReuse
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, ttl)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return ErrLineageUnknown
		case errors.Is(err, ErrLineageReuse):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrLineageUnavailable, err)
		}
	}
	// Lost every race: another request advanced the lineage first.
	return ErrLineageReuse
}

func (s *RedisLineageStore) End(ctx context.Context, lineage string) error {
	if err := s.redis.Del(ctx, s.key(lineage)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLineageUnavailable, err)
	}
	return nil
}

type lineageEntry struct {
	current   string
	expiresAt time.Time
}

// MemoryLineageStore is a process-local LineageStore.
type MemoryLineageStore struct {
	mu      sync.Mutex
	entries map[string]lineageEntry
	now     func() time.Time
}

func NewMemoryLineageStore() *MemoryLineageStore {
	return &MemoryLineageStore{entries: make(map[string]lineageEntry), now: time.Now}
}

// WithClock replaces the clock used for expiry checks. A nil clock is ignored.
func (s *MemoryLineageStore) WithClock(now func() time.Time) *MemoryLineageStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryLineageStore) Start(_ context.Context, lineage, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[lineage] = lineageEntry{current: tokenID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryLineageStore) Advance(_ context.Context, lineage, expected, next string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry, ok := s.entries[lineage]
	if !ok || !now.Before(entry.expiresAt) {
		delete(s.entries, lineage)
		return ErrLineageUnknown
	}
	if entry.current != expected {
		return ErrLineageReuse
	}
	s.entries[lineage] = lineageEntry{current: next, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryLineageStore) End(_ context.Context, lineage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, lineage)
	return nil
}
