package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
)

// MembershipResolver returns the subscriber ids that belong to a room.
type MembershipResolver interface {
	RoomMembers(ctx context.Context, roomID uuid.UUID) ([]string, error)
}

type targetKind int

const (
	targetSubscribers targetKind = iota + 1
	targetRoom
	targetGlobal
)

// Target selects the connections an event goes to.
type Target struct {
	kind        targetKind
	subscribers []string
	roomID      uuid.UUID
	except      []string
}

// ToSubscribers targets every connection of the given subscribers.
func ToSubscribers(ids ...string) Target {
	return Target{kind: targetSubscribers, subscribers: ids}
}

// ToRoom targets the members of a room, skipping except.
func ToRoom(roomID uuid.UUID, except ...string) Target {
	return Target{kind: targetRoom, roomID: roomID, except: except}
}

// Global targets every connection.
func Global() Target {
	return Target{kind: targetGlobal}
}

// Hub resolves targets and hands envelopes to the registry. Publishes are
// serialized so every connection sees events in publish order; sink writes
// never block, so a slow client cannot stall the hub.
type Hub struct {
	mu       sync.Mutex
	registry *Registry
	metrics  *Metrics
	log      *logger.Logger
	now      func() time.Time

	membersMu sync.RWMutex
	members   MembershipResolver
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

func NewHub(registry *Registry, log *logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		registry: registry,
		metrics:  NewMetrics(nil),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetMembershipResolver wires room membership. Chat is built after the hub,
// so the resolver is injected late.
func (h *Hub) SetMembershipResolver(m MembershipResolver) {
	h.membersMu.Lock()
	defer h.membersMu.Unlock()
	h.members = m
}

// Registry exposes the underlying connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish wraps payload in an envelope and delivers it to target. Delivery
// problems are handled here and never returned; the error is only for a
// malformed call or an unresolvable room.
func (h *Hub) Publish(ctx context.Context, payload Payload, target Target) error {
	if payload == nil {
		return apperr.Validation("payload is required")
	}

	var recipients []string
	switch target.kind {
	case targetSubscribers:
		recipients = dedupe(target.subscribers, nil)
	case targetRoom:
		members, err := h.roomMembers(ctx, target.roomID)
		if err != nil {
			return err
		}
		recipients = dedupe(members, target.except)
	case targetGlobal:
	default:
		return apperr.Validation("unknown event target")
	}

	h.mu.Lock()
	event := NewEvent(payload, h.now())
	h.metrics.published.WithLabelValues(string(event.Kind)).Inc()

	var targets []*connection
	if target.kind == targetGlobal {
		targets = h.registry.matchingTargets(nil)
	} else {
		for _, id := range recipients {
			targets = append(targets, h.registry.subscriberTargets(id)...)
		}
	}
	_, failed := h.registry.writeAll(targets, event)
	h.mu.Unlock()

	// drops log and close sinks; keep that off the publish lock
	h.registry.dropAll(failed, event.Kind)
	return nil
}

func (h *Hub) roomMembers(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	h.membersMu.RLock()
	resolver := h.members
	h.membersMu.RUnlock()
	if resolver == nil {
		return nil, apperr.Internal("room membership resolver not configured")
	}
	members, err := resolver.RoomMembers(ctx, roomID)
	if err != nil {
		if h.log != nil {
			h.log.Error("failed to resolve room members", "roomId", roomID, "error", err)
		}
		return nil, err
	}
	return members, nil
}

func dedupe(ids []string, except []string) []string {
	skip := make(map[string]struct{}, len(ids)+len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		skip[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
