// Package presence tracks which subscribers are active. Records go stale
// after a quiet period and are then reported, and eventually swept, as
// offline. Status changes are pushed through the realtime hub.
package presence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/keylock"
	"solar_portal_backend/platform/logger"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func IsKnownStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Record is one subscriber's presence.
type Record struct {
	SubscriberID string    `json:"subscriberId"`
	Status       Status    `json:"status"`
	LastActivity time.Time `json:"lastActivity"`
}

// Publisher is the part of the hub the tracker needs.
type Publisher interface {
	Publish(ctx context.Context, payload realtime.Payload, target realtime.Target) error
}

// LastSeenStore keeps the latest record outside the process.
type LastSeenStore interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, subscriberID string) (Record, bool, error)
}

const (
	DefaultStaleAfter    = 60 * time.Second
	DefaultSweepSchedule = "@every 15s"
)

type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record
	locks   *keylock.Map[string]

	pub        Publisher
	store      LastSeenStore
	log        *logger.Logger
	now        func() time.Time
	staleAfter time.Duration
	schedule   string
	cron       *cron.Cron
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

func WithSweepSchedule(spec string) Option {
	return func(t *Tracker) {
		if strings.TrimSpace(spec) != "" {
			t.schedule = spec
		}
	}
}

func WithLastSeenStore(store LastSeenStore) Option {
	return func(t *Tracker) { t.store = store }
}

func NewTracker(pub Publisher, log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		records:    make(map[string]Record),
		locks:      keylock.New[string](),
		pub:        pub,
		log:        log,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		schedule:   DefaultSweepSchedule,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Touch sets a subscriber's status and refreshes lastActivity. A presence
// event is published only when the effective status changes.
func (t *Tracker) Touch(ctx context.Context, subscriberID string, status Status) (Record, error) {
	if subscriberID == "" {
		return Record{}, apperr.Validation("subscriber id is required")
	}
	if !IsKnownStatus(status) {
		return Record{}, apperr.Validation("unknown presence status")
	}
	return t.update(ctx, subscriberID, func(prev Record, found bool) Status {
		return status
	}), nil
}

// Heartbeat refreshes lastActivity. An offline or stale subscriber comes
// back online; away and busy are kept.
func (t *Tracker) Heartbeat(ctx context.Context, subscriberID string) Record {
	return t.update(ctx, subscriberID, func(prev Record, found bool) Status {
		if !found || prev.Status == StatusOffline {
			return StatusOnline
		}
		return prev.Status
	})
}

// SetOffline marks the subscriber offline, keeping lastActivity.
func (t *Tracker) SetOffline(ctx context.Context, subscriberID string) {
	unlock := t.locks.Lock(subscriberID)
	defer unlock()

	t.mu.Lock()
	prev, found := t.records[subscriberID]
	if !found {
		t.mu.Unlock()
		return
	}
	before := t.effective(prev)
	rec := prev
	rec.Status = StatusOffline
	t.records[subscriberID] = rec
	t.mu.Unlock()

	t.persist(ctx, rec)
	if before != StatusOffline {
		t.publish(ctx, rec)
	}
}

func (t *Tracker) update(ctx context.Context, subscriberID string, next func(prev Record, found bool) Status) Record {
	unlock := t.locks.Lock(subscriberID)
	defer unlock()

	t.mu.Lock()
	prev, found := t.records[subscriberID]
	before := StatusOffline
	if found {
		before = t.effective(prev)
		// a stale record reads as offline to the caller too
		if before == StatusOffline {
			prev.Status = StatusOffline
		}
	}
	rec := Record{SubscriberID: subscriberID, Status: next(prev, found), LastActivity: t.now().UTC()}
	t.records[subscriberID] = rec
	t.mu.Unlock()

	t.persist(ctx, rec)
	if rec.Status != before {
		t.publish(ctx, rec)
	}
	return rec
}

// Get returns a subscriber's effective presence. Subscribers the tracker
// never saw fall back to the last-seen store.
func (t *Tracker) Get(ctx context.Context, subscriberID string) (Record, error) {
	t.mu.RLock()
	rec, ok := t.records[subscriberID]
	t.mu.RUnlock()
	if ok {
		rec.Status = t.effective(rec)
		return rec, nil
	}

	if t.store != nil {
		stored, found, err := t.store.Load(ctx, subscriberID)
		if err != nil {
			t.log.Warn("presence last-seen lookup failed", "subscriberId", subscriberID, "error", err)
		} else if found {
			stored.Status = StatusOffline
			return stored, nil
		}
	}
	return Record{}, apperr.NotFound("no presence recorded for subscriber")
}

// ListOnline returns every subscriber whose effective status is not
// offline, most recently active first. Stale records are never included.
func (t *Tracker) ListOnline() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		if status := t.effective(rec); status != StatusOffline {
			rec.Status = status
			out = append(out, rec)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].SubscriberID < out[j].SubscriberID
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Sweep flips stale records to offline and publishes each change.
// Returns the number of subscribers flipped.
func (t *Tracker) Sweep(ctx context.Context) int {
	t.mu.RLock()
	var stale []string
	for id, rec := range t.records {
		if rec.Status != StatusOffline && t.isStale(rec) {
			stale = append(stale, id)
		}
	}
	t.mu.RUnlock()
	sort.Strings(stale)

	flipped := 0
	for _, id := range stale {
		if t.expire(ctx, id) {
			flipped++
		}
	}
	return flipped
}

func (t *Tracker) expire(ctx context.Context, subscriberID string) bool {
	unlock := t.locks.Lock(subscriberID)
	defer unlock()

	t.mu.Lock()
	rec, ok := t.records[subscriberID]
	// a heartbeat may have landed since the scan
	if !ok || rec.Status == StatusOffline || !t.isStale(rec) {
		t.mu.Unlock()
		return false
	}
	rec.Status = StatusOffline
	t.records[subscriberID] = rec
	t.mu.Unlock()

	t.persist(ctx, rec)
	t.publish(ctx, rec)
	return true
}

// Start schedules Sweep on the configured cron spec.
func (t *Tracker) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(t.schedule, func() {
		if n := t.Sweep(context.Background()); n > 0 {
			t.log.Debug("presence sweep", "flipped", n)
		}
	}); err != nil {
		return err
	}
	c.Start()

	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	return nil
}

// Stop halts the sweep and waits for a running sweep to finish.
func (t *Tracker) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (t *Tracker) effective(rec Record) Status {
	if rec.Status == StatusOffline || t.isStale(rec) {
		return StatusOffline
	}
	return rec.Status
}

func (t *Tracker) isStale(rec Record) bool {
	return t.now().Sub(rec.LastActivity) > t.staleAfter
}

func (t *Tracker) persist(ctx context.Context, rec Record) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, rec); err != nil {
		t.log.Warn("presence last-seen save failed", "subscriberId", rec.SubscriberID, "error", err)
	}
}

func (t *Tracker) publish(ctx context.Context, rec Record) {
	if t.pub == nil {
		return
	}
	payload := realtime.PresenceChanged{
		SubscriberID: rec.SubscriberID,
		Status:       string(rec.Status),
		LastActivity: rec.LastActivity,
	}
	if err := t.pub.Publish(ctx, payload, realtime.Global()); err != nil {
		t.log.Warn("presence publish failed", "subscriberId", rec.SubscriberID, "error", err)
	}
}
