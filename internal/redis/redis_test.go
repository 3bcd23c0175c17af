package redisclient

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vantive/internal/appointment"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("VANTIVE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VANTIVE_TEST_REDIS_ADDR not set")
	}

	rdb, err := NewRedisClient(context.Background(), addr, "", "")
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestWithLockExcludesConcurrentHolder(t *testing.T) {
	rdb := setupRedis(t)
	locker := NewRedisLocker(rdb, 5*time.Second)
	ctx := context.Background()
	key := SweepLockKey(uuid.New())

	var ran atomic.Int32
	err := locker.WithLock(ctx, key, func(ctx context.Context) error {
		ran.Add(1)
		inner := locker.WithLock(ctx, key, func(context.Context) error {
			ran.Add(1)
			return nil
		})
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Errorf("nested WithLock() error = %v, want ErrLockNotAcquired", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("ran = %d, want 1", ran.Load())
	}

	if exists, _ := rdb.Exists(ctx, key).Result(); exists != 0 {
		t.Fatal("lock key not released")
	}
}

func TestSummaryStoreRoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	store := NewSummaryStore(rdb, time.Minute)
	ctx := context.Background()
	scopeID := uuid.New()

	if _, err := store.LoadOverdueSummary(ctx, scopeID); !errors.Is(err, ErrSummaryNotFound) {
		t.Fatalf("LoadOverdueSummary() on empty key error = %v", err)
	}

	want := &appointment.OverdueSummary{
		ScopeID:     scopeID,
		GeneratedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		Cutoff:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Total:       2,
		Practitioners: []appointment.PractitionerBacklog{
			{PractitionerName: "Dr. X", Overdue: 2, OldestScheduledStart: time.Date(2023, 12, 30, 9, 0, 0, 0, time.UTC)},
		},
	}
	if err := store.PublishOverdueSummary(ctx, want); err != nil {
		t.Fatalf("PublishOverdueSummary() error = %v", err)
	}
	t.Cleanup(func() { rdb.Del(context.Background(), summaryKey(scopeID)) })

	got, err := store.LoadOverdueSummary(ctx, scopeID)
	if err != nil {
		t.Fatalf("LoadOverdueSummary() error = %v", err)
	}
	if got.Total != 2 || len(got.Practitioners) != 1 || got.Practitioners[0].PractitionerName != "Dr. X" {
		t.Fatalf("LoadOverdueSummary() = %+v", got)
	}

	ttl, err := rdb.TTL(ctx, summaryKey(scopeID)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("summary ttl = %v, %v", ttl, err)
	}
}
