// Package events holds the domain events exchanged between the leads,
// chat, intake and notification modules. The bus itself lives in
// platform/events and is re-exported here so modules import one package.
package events

import (
	"github.com/google/uuid"

	"solar_portal_backend/platform/events"
	"solar_portal_backend/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is stored.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	Source     string    `json:"source"`
	Score      int       `json:"score"`
	AssigneeID *string   `json:"assigneeId,omitempty"`
	ActorID    string    `json:"actorId"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStageChanged is published after every pipeline transition.
type LeadStageChanged struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	FromStage  string    `json:"fromStage"`
	ToStage    string    `json:"toStage"`
	ActorID    string    `json:"actorId"`
	AssigneeID *string   `json:"assigneeId,omitempty"`
}

func (e LeadStageChanged) EventName() string { return "leads.lead.stage_changed" }

// LeadReopened is published when a privileged actor moves a lead out of a
// terminal stage.
type LeadReopened struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	FromStage  string    `json:"fromStage"`
	ToStage    string    `json:"toStage"`
	ActorID    string    `json:"actorId"`
	AssigneeID *string   `json:"assigneeId,omitempty"`
}

func (e LeadReopened) EventName() string { return "leads.lead.reopened" }

// LeadScored is published when a lead's effective score changes.
type LeadScored struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Score    int       `json:"score"`
	Category string    `json:"category"`
	Override bool      `json:"override"`
	ActorID  string    `json:"actorId"`
}

func (e LeadScored) EventName() string { return "leads.lead.scored" }

// LeadDeleted is published when a lead is soft-deleted.
type LeadDeleted struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	Reason     string    `json:"reason"`
	ActorID    string    `json:"actorId"`
	AssigneeID *string   `json:"assigneeId,omitempty"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// LeadRestored is published when a soft-deleted lead is restored.
type LeadRestored struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	ActorID    string    `json:"actorId"`
	AssigneeID *string   `json:"assigneeId,omitempty"`
}

func (e LeadRestored) EventName() string { return "leads.lead.restored" }

// IntakeFailed is published when a public contact submission could not be
// stored as a lead.
type IntakeFailed struct {
	BaseEvent
	Source string `json:"source"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

func (e IntakeFailed) EventName() string { return "leads.intake.failed" }

// =============================================================================
// Chat Domain Events
// =============================================================================

// SubscriberMentioned is published once per mentioned subscriber of a
// posted chat message.
type SubscriberMentioned struct {
	BaseEvent
	RoomID       uuid.UUID `json:"roomId"`
	RoomName     string    `json:"roomName,omitempty"`
	MessageID    string    `json:"messageId"`
	SenderID     string    `json:"senderId"`
	SubscriberID string    `json:"subscriberId"`
	Preview      string    `json:"preview"`
}

func (e SubscriberMentioned) EventName() string { return "chat.subscriber.mentioned" }
