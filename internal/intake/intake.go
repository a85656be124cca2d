// Package intake turns public contact-form submissions into leads. A
// visitor is never shown a CRM failure: the submission is acknowledged,
// the failure is logged and announced, and the submission is queued for
// a retry.
package intake

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

// LeadCreator is the part of the lead service intake writes through.
type LeadCreator interface {
	Create(ctx context.Context, actor domain.Actor, req transport.CreateLeadRequest) (transport.LeadResponse, error)
	AddNote(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.AddNoteRequest) (transport.LeadEventResponse, error)
}

// FailureRecorder keeps submissions that could not be stored so they can
// be replayed later.
type FailureRecorder interface {
	RecordIntakeFailure(ctx context.Context, sub Submission, reason string) error
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name    string  `json:"name" validate:"notblank,max=200"`
	Email   *string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone   *string `json:"phone,omitempty" validate:"required_without=Email,omitempty,min=5,max=32"`
	Message string  `json:"message,omitempty" validate:"max=4000"`
	Source  string  `json:"source,omitempty" validate:"omitempty,oneof=site_form chat_widget"`
	// Website is a honeypot; people leave it empty.
	Website string `json:"website,omitempty" validate:"max=200"`
}

// Submission is a contact request as received, kept for retries.
type Submission struct {
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Message    string    `json:"message,omitempty"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Receipt is what the visitor gets back.
type Receipt struct {
	Status string `json:"status"`
}

const (
	receiptReceived = "received"
	actorName       = "intake"
)

type Service struct {
	leads    LeadCreator
	bus      events.Bus
	recorder FailureRecorder
	val      *validator.Validator
	log      *logger.Logger
	now      func() time.Time
}

func NewService(leads LeadCreator, bus events.Bus, recorder FailureRecorder, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{leads: leads, bus: bus, recorder: recorder, val: val, log: log, now: time.Now}
}

// Submit stores the contact request as a lead. Validation errors are
// returned; any other failure falls back to a queued retry and the
// visitor still gets a receipt.
func (s *Service) Submit(ctx context.Context, req ContactRequest) (Receipt, error) {
	if s.val != nil {
		if err := s.val.Struct(req); err != nil {
			return Receipt{}, apperr.Validation("invalid request").WithDetails(validator.FieldErrors(err))
		}
	}
	if strings.TrimSpace(req.Website) != "" {
		s.log.Info("intake honeypot triggered, submission dropped")
		return Receipt{Status: receiptReceived}, nil
	}

	sub := Submission{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    req.Message,
		Source:     req.Source,
		ReceivedAt: s.now().UTC(),
	}
	if sub.Source == "" {
		sub.Source = string(domain.SourceSiteForm)
	}

	err := s.store(ctx, sub)
	switch {
	case err == nil:
		return Receipt{Status: receiptReceived}, nil
	case apperr.Is(err, apperr.KindValidation):
		return Receipt{}, err
	}

	s.fallback(ctx, sub, err)
	return Receipt{Status: receiptReceived}, nil
}

// Retry stores a previously failed submission. Errors are returned so the
// job runner can try again.
func (s *Service) Retry(ctx context.Context, sub Submission) error {
	return s.store(ctx, sub)
}

func (s *Service) store(ctx context.Context, sub Submission) error {
	actor := domain.SystemActor(actorName)
	lead, err := s.leads.Create(ctx, actor, transport.CreateLeadRequest{
		Name:     sub.Name,
		Email:    sub.Email,
		Phone:    sub.Phone,
		Source:   domain.Source(sub.Source),
		Activity: &domain.ActivityCounts{FormSubmits: 1},
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(sub.Message) == "" {
		return nil
	}
	// the lead exists now; a lost note must not trigger a second lead on retry
	if _, err := s.leads.AddNote(ctx, actor, lead.ID, transport.AddNoteRequest{Body: sub.Message}); err != nil {
		s.log.Error("failed to attach contact message to lead", "leadId", lead.ID.String(), "error", err)
	}
	return nil
}

func (s *Service) fallback(ctx context.Context, sub Submission, cause error) {
	s.log.IntakeFallback(sub.Source, deref(sub.Email), cause)

	if s.bus != nil {
		s.bus.Publish(ctx, events.IntakeFailed{
			BaseEvent: events.NewBaseEvent(),
			Source:    sub.Source,
			Name:      sub.Name,
			Email:     deref(sub.Email),
			Reason:    cause.Error(),
		})
	}
	if s.recorder == nil {
		s.log.Warn("no intake failure recorder configured, submission only logged", "source", sub.Source)
		return
	}
	if err := s.recorder.RecordIntakeFailure(ctx, sub, cause.Error()); err != nil {
		s.log.Error("failed to queue intake retry", "source", sub.Source, "error", err)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
