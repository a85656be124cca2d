package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.PresenceChanged
}

func (p *recordingPublisher) Publish(_ context.Context, payload realtime.Payload, _ realtime.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload.(realtime.PresenceChanged))
	return nil
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.SubscriberID + ":" + e.Status
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTracker(opts ...Option) (*Tracker, *recordingPublisher, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	opts = append([]Option{WithClock(clock.Now), WithStaleAfter(60 * time.Second)}, opts...)
	return NewTracker(pub, logger.Discard(), opts...), pub, clock
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTouchPublishesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	tr, pub, clock := newTracker()

	if _, err := tr.Touch(ctx, "alice", StatusOnline); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	clock.Advance(5 * time.Second)
	rec, _ := tr.Touch(ctx, "alice", StatusOnline)
	if !rec.LastActivity.Equal(clock.Now()) {
		t.Fatalf("lastActivity not refreshed: %s", rec.LastActivity)
	}
	tr.Touch(ctx, "alice", StatusBusy)

	want := []string{"alice:online", "alice:busy"}
	if got := pub.statuses(); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTouchValidates(t *testing.T) {
	tr, _, _ := newTracker()
	tests := []struct {
		subscriber string
		status     Status
	}{
		{"", StatusOnline},
		{"alice", Status("invisible")},
	}
	for _, tt := range tests {
		_, err := tr.Touch(context.Background(), tt.subscriber, tt.status)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", tt, err)
		}
	}
}

func TestStaleRecordsAreOfflineAndSwept(t *testing.T) {
	ctx := context.Background()
	tr, pub, clock := newTracker()

	tr.Touch(ctx, "alice", StatusOnline)
	tr.Touch(ctx, "bob", StatusAway)
	clock.Advance(45 * time.Second)
	tr.Heartbeat(ctx, "bob")
	clock.Advance(30 * time.Second)

	online := tr.ListOnline()
	if len(online) != 1 || online[0].SubscriberID != "bob" || online[0].Status != StatusAway {
		t.Fatalf("only bob should be online, got %+v", online)
	}
	rec, err := tr.Get(ctx, "alice")
	if err != nil || rec.Status != StatusOffline {
		t.Fatalf("stale alice should read offline before any sweep, got %+v (%v)", rec, err)
	}

	if n := tr.Sweep(ctx); n != 1 {
		t.Fatalf("expected one record flipped, got %d", n)
	}
	if n := tr.Sweep(ctx); n != 0 {
		t.Fatalf("second sweep should be a no-op, got %d", n)
	}

	want := []string{"alice:online", "bob:away", "alice:offline"}
	if got := pub.statuses(); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestHeartbeatRevivesOfflineSubscriber(t *testing.T) {
	ctx := context.Background()
	tr, pub, clock := newTracker()

	tr.Touch(ctx, "alice", StatusBusy)
	clock.Advance(2 * time.Minute)
	rec := tr.Heartbeat(ctx, "alice")
	if rec.Status != StatusOnline {
		t.Fatalf("stale subscriber should come back online, got %s", rec.Status)
	}
	tr.Heartbeat(ctx, "alice")

	want := []string{"alice:busy", "alice:online"}
	if got := pub.statuses(); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSetOffline(t *testing.T) {
	ctx := context.Background()
	tr, pub, _ := newTracker()

	tr.SetOffline(ctx, "nobody")
	tr.Touch(ctx, "alice", StatusOnline)
	tr.SetOffline(ctx, "alice")
	tr.SetOffline(ctx, "alice")

	want := []string{"alice:online", "alice:offline"}
	if got := pub.statuses(); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(tr.ListOnline()) != 0 {
		t.Fatal("alice should not be listed online")
	}
}

func TestGetUnknownSubscriber(t *testing.T) {
	tr, _, _ := newTracker()
	_, err := tr.Get(context.Background(), "ghost")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	tr, _, _ := newTracker(WithSweepSchedule("every now and then"))
	if err := tr.Start(); err == nil {
		tr.Stop()
		t.Fatal("expected invalid cron spec to be rejected")
	}

	ok, _, _ := newTracker(WithSweepSchedule("@every 1h"))
	if err := ok.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ok.Stop()
	ok.Stop()
}
