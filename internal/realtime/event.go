// Package realtime fans domain events out to live client connections.
// A Registry tracks connections per subscriber, a Hub resolves targets and
// delivers envelopes, and package stream adapts SSE and WebSocket clients
// to the transport-agnostic Sink.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the payload carried by an Event.
type Kind string

const (
	KindStageChanged Kind = "stage_changed"
	KindMessage      Kind = "message"
	KindTyping       Kind = "typing"
	KindPresence     Kind = "presence"
	KindNotification Kind = "notification"

	// control frames
	KindConnected Kind = "connected"
	KindHeartbeat Kind = "heartbeat"
)

// Payload is implemented only by the payload types in this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Event is the frame written to every sink: {eventKind, payload, emittedAt}.
type Event struct {
	Kind      Kind      `json:"eventKind"`
	Payload   Payload   `json:"payload"`
	EmittedAt time.Time `json:"emittedAt"`
}

// NewEvent wraps payload in an envelope stamped with at (UTC).
func NewEvent(payload Payload, at time.Time) Event {
	return Event{Kind: payload.Kind(), Payload: payload, EmittedAt: at.UTC()}
}

type StageChanged struct {
	LeadID    uuid.UUID `json:"leadId"`
	FromStage string    `json:"fromStage"`
	ToStage   string    `json:"toStage"`
	ActorID   string    `json:"actorId"`
	Reopened  bool      `json:"reopened,omitempty"`
}

// MessageAction tells clients how to apply a message frame.
type MessageAction string

const (
	MessageCreated MessageAction = "created"
	MessageEdited  MessageAction = "edited"
	MessageDeleted MessageAction = "deleted"
)

type MessageEvent struct {
	Action    MessageAction `json:"action"`
	RoomID    uuid.UUID     `json:"roomId"`
	MessageID string        `json:"messageId"`
	SenderID  string        `json:"senderId"`
	Content   string        `json:"content,omitempty"`
	Mentions  []string      `json:"mentions,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	EditedAt  *time.Time    `json:"editedAt,omitempty"`
}

type Typing struct {
	RoomID       uuid.UUID `json:"roomId"`
	SubscriberID string    `json:"subscriberId"`
	IsTyping     bool      `json:"isTyping"`
}

type PresenceChanged struct {
	SubscriberID string    `json:"subscriberId"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"lastActivity"`
}

// NotificationType classifies targeted notifications.
type NotificationType string

const (
	NotificationMention      NotificationType = "mention"
	NotificationLeadDeleted  NotificationType = "lead_deleted"
	NotificationLeadRestored NotificationType = "lead_restored"
	NotificationLeadCreated  NotificationType = "lead_created"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	ActorID   string           `json:"actorId,omitempty"`
	LeadID    *uuid.UUID       `json:"leadId,omitempty"`
	RoomID    *uuid.UUID       `json:"roomId,omitempty"`
	MessageID string           `json:"messageId,omitempty"`
	Mentions  []string         `json:"mentions,omitempty"`
}

type Connected struct {
	ConnectionID      uuid.UUID `json:"connectionId"`
	SubscriberID      string    `json:"subscriberId"`
	HeartbeatInterval int       `json:"heartbeatIntervalSeconds"`
}

type Heartbeat struct{}

func (StageChanged) Kind() Kind    { return KindStageChanged }
func (MessageEvent) Kind() Kind    { return KindMessage }
func (Typing) Kind() Kind          { return KindTyping }
func (PresenceChanged) Kind() Kind { return KindPresence }
func (Notification) Kind() Kind    { return KindNotification }
func (Connected) Kind() Kind       { return KindConnected }
func (Heartbeat) Kind() Kind       { return KindHeartbeat }

func (StageChanged) isPayload()    {}
func (MessageEvent) isPayload()    {}
func (Typing) isPayload()          {}
func (PresenceChanged) isPayload() {}
func (Notification) isPayload()    {}
func (Connected) isPayload()       {}
func (Heartbeat) isPayload()       {}
