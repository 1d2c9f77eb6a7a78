package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func eachLinkStore(t *testing.T, fn func(t *testing.T, s LinkStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryLinkStore()) })
	t.Run("redis", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		fn(t, NewRedisLinkStore(rdb, "test"))
	})
}

func eachLineageStore(t *testing.T, fn func(t *testing.T, s LineageStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryLineageStore()) })
	t.Run("redis", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		fn(t, NewRedisLineageStore(rdb, "test"))
	})
}

func TestLinkIsSingleUse(t *testing.T) {
	eachLinkStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		raw, err := s.Issue(ctx, PurposeReset, "acc-1", time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		id, err := s.Consume(ctx, PurposeReset, raw)
		if err != nil || id != "acc-1" {
			t.Fatalf("Consume = %q, %v", id, err)
		}
		if _, err := s.Consume(ctx, PurposeReset, raw); !errors.Is(err, ErrLinkNotFound) {
			t.Fatalf("second Consume: %v", err)
		}
	})
}

func TestLinkPurposesAreSeparate(t *testing.T) {
	eachLinkStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		raw, _ := s.Issue(ctx, PurposeActivation, "acc-1", time.Hour)
		if _, err := s.Consume(ctx, PurposeReset, raw); !errors.Is(err, ErrLinkNotFound) {
			t.Fatalf("activation link redeemed as reset link: %v", err)
		}
		if _, err := s.Consume(ctx, PurposeActivation, raw); err != nil {
			t.Fatalf("activation link rejected: %v", err)
		}
		if _, err := s.Consume(ctx, PurposeActivation, "unknown"); !errors.Is(err, ErrLinkNotFound) {
			t.Fatalf("unknown link: %v", err)
		}
	})
}

func TestMemoryLinkExpiry(t *testing.T) {
	s := NewMemoryLinkStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	raw, _ := s.Issue(context.Background(), PurposeReset, "acc-1", time.Minute)

	now = now.Add(time.Minute)
	if _, err := s.Consume(context.Background(), PurposeReset, raw); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expired link: %v", err)
	}
}

func TestRedisLinkStoresOnlyDigest(t *testing.T) {
	rdb, mr := newTestRedis(t)
	s := NewRedisLinkStore(rdb, "t")
	raw, _ := s.Issue(context.Background(), PurposeActivation, "acc-1", time.Hour)
	for _, key := range mr.Keys() {
		if key == "t:activate:"+raw {
			t.Fatal("raw token used as key")
		}
	}
	mr.FastForward(2 * time.Hour)
	if _, err := s.Consume(context.Background(), PurposeActivation, raw); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expired redis link: %v", err)
	}
}

func TestLineageAdvanceAndReuse(t *testing.T) {
	eachLineageStore(t, func(t *testing.T, s LineageStore) {
		ctx := context.Background()
		if err := s.Start(ctx, "L1", "j1", time.Hour); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := s.Advance(ctx, "L1", "j1", "j2", time.Hour); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if err := s.Advance(ctx, "L1", "j1", "j3", time.Hour); !errors.Is(err, ErrLineageReuse) {
			t.Fatalf("reused token: %v", err)
		}
		if err := s.Advance(ctx, "L2", "x", "y", time.Hour); !errors.Is(err, ErrLineageUnknown) {
			t.Fatalf("unknown lineage: %v", err)
		}
		if err := s.End(ctx, "L1"); err != nil {
			t.Fatalf("End: %v", err)
		}
		if err := s.Advance(ctx, "L1", "j2", "j3", time.Hour); !errors.Is(err, ErrLineageUnknown) {
			t.Fatalf("ended lineage: %v", err)
		}
	})
}

func TestLineageConcurrentAdvanceSucceedsOnce(t *testing.T) {
	eachLineageStore(t, func(t *testing.T, s LineageStore) {
		ctx := context.Background()
		_ = s.Start(ctx, "L", "j0", time.Hour)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Advance(ctx, "L", "j0", "next", time.Hour); err == nil {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		if wins.Load() != 1 {
			t.Fatalf("wins = %d, want 1", wins.Load())
		}
	})
}

func TestRedisLineageUnavailable(t *testing.T) {
	rdb, mr := newTestRedis(t)
	s := NewRedisLineageStore(rdb, "")
	mr.Close()
	if err := s.Start(context.Background(), "L", "j", time.Hour); !errors.Is(err, ErrLineageUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
