package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"solar_portal_backend/platform/logger"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisLastSeenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLastSeenStore(client, ttl), mr
}

func TestRedisLastSeenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)

	at := time.Date(2026, 6, 1, 12, 0, 0, 123, time.UTC)
	if err := store.Save(ctx, Record{SubscriberID: "alice", Status: StatusBusy, LastActivity: at}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, found, err := store.Load(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if rec.Status != StatusBusy || !rec.LastActivity.Equal(at) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if ttl := mr.TTL(lastSeenKeyPrefix + "alice"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}

	_, found, err = store.Load(ctx, "bob")
	if err != nil || found {
		t.Fatalf("unknown subscriber: found=%v err=%v", found, err)
	}
}

func TestTrackerFallsBackToLastSeen(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t, 0)

	first, _, clock := newTracker(WithLastSeenStore(store))
	first.Touch(ctx, "alice", StatusOnline)
	seenAt := clock.Now()

	// a fresh tracker stands in for a restarted process
	restarted := NewTracker(nil, logger.Discard(), WithLastSeenStore(store))
	rec, err := restarted.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusOffline || !rec.LastActivity.Equal(seenAt) {
		t.Fatalf("expected offline with last activity %s, got %+v", seenAt, rec)
	}
}
