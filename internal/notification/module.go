// Package notification turns domain events into push frames and emails.
// Domain modules publish on the bus and never talk to the hub or the mail
// server for these side effects.
package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"solar_portal_backend/internal/email"
	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/logger"
)

// Publisher fans a payload out to live connections.
type Publisher interface {
	Publish(ctx context.Context, payload realtime.Payload, target realtime.Target) error
}

// PresenceChecker reports whether a subscriber has a live connection.
type PresenceChecker interface {
	IsOnline(subscriberID string) bool
}

type Module struct {
	hub       Publisher
	online    PresenceChecker
	sender    email.Sender
	directory SubscriberDirectory
	cfg       config.NotificationConfig
	log       *logger.Logger
}

func New(hub Publisher, online PresenceChecker, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		hub:    hub,
		online: online,
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

// SetDirectory enables mention emails for subscribers without a live connection.
func (m *Module) SetDirectory(dir SubscriberDirectory) {
	m.directory = dir
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Lead events
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadStageChanged{}.EventName(), m)
	bus.Subscribe(events.LeadReopened{}.EventName(), m)
	bus.Subscribe(events.LeadDeleted{}.EventName(), m)
	bus.Subscribe(events.LeadRestored{}.EventName(), m)

	// Chat events
	bus.Subscribe(events.SubscriberMentioned{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	case events.LeadStageChanged:
		return m.handleLeadStageChanged(ctx, e)
	case events.LeadReopened:
		return m.handleLeadReopened(ctx, e)
	case events.LeadDeleted:
		return m.handleLeadDeleted(ctx, e)
	case events.LeadRestored:
		return m.handleLeadRestored(ctx, e)
	case events.SubscriberMentioned:
		return m.handleSubscriberMentioned(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	assignee := assigneeToNotify(e.AssigneeID, e.ActorID)
	if assignee == "" {
		return nil
	}
	leadID := e.LeadID
	return m.publish(ctx, realtime.Notification{
		ID:      uuid.New(),
		Type:    realtime.NotificationLeadCreated,
		Title:   "New lead assigned to you",
		Body:    "Source: " + e.Source,
		ActorID: e.ActorID,
		LeadID:  &leadID,
	}, realtime.ToSubscribers(assignee))
}

func (m *Module) handleLeadStageChanged(ctx context.Context, e events.LeadStageChanged) error {
	return m.publish(ctx, realtime.StageChanged{
		LeadID:    e.LeadID,
		FromStage: e.FromStage,
		ToStage:   e.ToStage,
		ActorID:   e.ActorID,
	}, realtime.Global())
}

func (m *Module) handleLeadReopened(ctx context.Context, e events.LeadReopened) error {
	return m.publish(ctx, realtime.StageChanged{
		LeadID:    e.LeadID,
		FromStage: e.FromStage,
		ToStage:   e.ToStage,
		ActorID:   e.ActorID,
		Reopened:  true,
	}, realtime.Global())
}

func (m *Module) handleLeadDeleted(ctx context.Context, e events.LeadDeleted) error {
	assignee := assigneeToNotify(e.AssigneeID, e.ActorID)
	if assignee == "" {
		return nil
	}
	leadID := e.LeadID
	return m.publish(ctx, realtime.Notification{
		ID:      uuid.New(),
		Type:    realtime.NotificationLeadDeleted,
		Title:   "Lead " + defaultName(e.LeadName, "without a name") + " was deleted",
		Body:    e.Reason,
		ActorID: e.ActorID,
		LeadID:  &leadID,
	}, realtime.ToSubscribers(assignee))
}

func (m *Module) handleLeadRestored(ctx context.Context, e events.LeadRestored) error {
	assignee := assigneeToNotify(e.AssigneeID, e.ActorID)
	if assignee == "" {
		return nil
	}
	leadID := e.LeadID
	return m.publish(ctx, realtime.Notification{
		ID:      uuid.New(),
		Type:    realtime.NotificationLeadRestored,
		Title:   "Lead " + defaultName(e.LeadName, "without a name") + " was restored",
		ActorID: e.ActorID,
		LeadID:  &leadID,
	}, realtime.ToSubscribers(assignee))
}

// handleSubscriberMentioned emails a mentioned subscriber who is not
// connected. Connected subscribers already got the push notification.
func (m *Module) handleSubscriberMentioned(ctx context.Context, e events.SubscriberMentioned) error {
	if m.online != nil && m.online.IsOnline(e.SubscriberID) {
		return nil
	}
	if m.directory == nil {
		return nil
	}

	recipient, err := m.directory.GetSubscriber(ctx, e.SubscriberID)
	if errors.Is(err, ErrSubscriberNotFound) {
		m.log.Warn("mentioned subscriber not in directory", "subscriberId", e.SubscriberID)
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(recipient.Email) == "" {
		return nil
	}

	senderName := e.SenderID
	if sender, err := m.directory.GetSubscriber(ctx, e.SenderID); err == nil && sender.DisplayName != "" {
		senderName = sender.DisplayName
	}

	if err := m.sender.SendMentionEmail(ctx, recipient.Email, email.Mention{
		RecipientName: recipient.DisplayName,
		SenderName:    senderName,
		RoomName:      e.RoomName,
		Preview:       e.Preview,
		RoomURL:       m.roomURL(e.RoomID),
	}); err != nil {
		m.log.Error("failed to send mention email", "subscriberId", e.SubscriberID, "roomId", e.RoomID.String(), "error", err)
		return err
	}
	m.log.Info("mention email sent", "subscriberId", e.SubscriberID, "roomId", e.RoomID.String())
	return nil
}

func (m *Module) publish(ctx context.Context, payload realtime.Payload, target realtime.Target) error {
	if m.hub == nil {
		return nil
	}
	if err := m.hub.Publish(ctx, payload, target); err != nil {
		m.log.Error("failed to publish realtime event", "kind", string(payload.Kind()), "error", err)
		return err
	}
	return nil
}

func (m *Module) roomURL(roomID uuid.UUID) string {
	if m.cfg == nil {
		return ""
	}
	base := strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	if base == "" {
		return ""
	}
	return base + "/chat/rooms/" + roomID.String()
}

// assigneeToNotify skips actors notifying themselves.
func assigneeToNotify(assigneeID *string, actorID string) string {
	if assigneeID == nil {
		return ""
	}
	assignee := strings.TrimSpace(*assigneeID)
	if assignee == "" || assignee == actorID {
		return ""
	}
	return assignee
}

func defaultName(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
