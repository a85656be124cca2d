// Package service implements the lead pipeline: creation, stage
// transitions, scoring, overrides, soft delete and restore. Every mutation
// is serialized per lead and persisted together with one audit event.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/leads/scoring"
	"solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/keylock"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/phone"
	"solar_portal_backend/platform/sanitize"
	"solar_portal_backend/platform/validator"
)

// Service handles lead lifecycle operations.
type Service struct {
	repo   repository.LeadRepository
	bus    events.Bus
	val    *validator.Validator
	log    *logger.Logger
	locks  *keylock.Map[uuid.UUID]
	now    func() time.Time
	phones phone.Normalizer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPhoneRegion sets the region national phone numbers are resolved in.
func WithPhoneRegion(region string) Option {
	return func(s *Service) { s.phones = phone.NewNormalizer(region) }
}

// New creates a lead service.
func New(repo repository.LeadRepository, bus events.Bus, val *validator.Validator, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		bus:    bus,
		val:    val,
		log:    log,
		locks:  keylock.New[uuid.UUID](),
		now:    time.Now,
		phones: phone.NewNormalizer(phone.DefaultRegion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new lead in stage "new" with its initial score.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadResponse{}, err
	}
	activity := domain.ActivityCounts{}
	if req.Activity != nil {
		activity = *req.Activity
	}
	if err := activity.Validate(); err != nil {
		return transport.LeadResponse{}, apperr.Validation(err.Error())
	}

	now := s.now()
	lead := repository.Lead{
		ID:             uuid.New(),
		Name:           sanitize.Text(req.Name),
		Email:          normalizeEmail(req.Email),
		Phone:          s.normalizePhone(req.Phone),
		Source:         req.Source,
		Stage:          domain.StageNew,
		Status:         domain.StatusForStage(domain.StageNew),
		AssigneeID:     trimmedPtr(req.AssigneeID),
		Activity:       activity,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	result := applyScore(&lead)

	event := s.newEvent(lead, domain.EventCreated, actor, "Lead created", map[string]interface{}{
		"source":   string(lead.Source),
		"stage":    string(lead.Stage),
		"score":    lead.Score,
		"category": string(lead.Category),
		"priority": string(lead.Priority),
	})

	unlock := s.locks.Lock(lead.ID)
	defer unlock()

	if err := s.repo.Create(ctx, lead, event); err != nil {
		s.log.DatabaseError("leads.create", err)
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	s.publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		Source:     string(lead.Source),
		Score:      lead.Score,
		AssigneeID: lead.AssigneeID,
		ActorID:    actor.ID,
	})

	resp := ToLeadResponse(lead)
	resp.ScoreBreakdown = &result
	return resp, nil
}

// GetByID returns a lead. Soft-deleted leads are only visible to
// privileged actors.
func (s *Service) GetByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if lead.IsDeleted() && !actor.IsPrivileged() {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	resp := ToLeadResponse(lead)
	result := scoring.Evaluate(lead.Activity, lead.Source)
	resp.ScoreBreakdown = &result
	return resp, nil
}

// List returns leads matching the filters, newest first.
func (s *Service) List(ctx context.Context, actor domain.Actor, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadListResponse{}, err
	}
	if req.IncludeDeleted && !actor.IsPrivileged() {
		return transport.LeadListResponse{}, apperr.Forbidden("only managers can list deleted leads")
	}

	params := repository.ListParams{
		Search:         strings.TrimSpace(req.Search),
		IncludeDeleted: req.IncludeDeleted,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}
	if req.Stage != "" {
		stage := domain.Stage(req.Stage)
		if !domain.IsKnownStage(stage) {
			return transport.LeadListResponse{}, apperr.Validation("unknown stage filter")
		}
		params.Stage = &stage
	}
	if req.Source != "" {
		source := domain.Source(req.Source)
		params.Source = &source
	}
	if req.AssigneeID != "" {
		params.AssigneeID = &req.AssigneeID
	}
	params = params.Normalize()

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		s.log.DatabaseError("leads.list", err)
		return transport.LeadListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list leads", err)
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, ToLeadResponse(lead))
	}
	return transport.LeadListResponse{Items: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// Update patches contact fields and the assignee. A stage in the patch is
// a regular transition and follows the same rules as ChangeStage.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		changes := map[string]interface{}{}
		if req.Name != nil {
			name := sanitize.Text(*req.Name)
			if name != lead.Name {
				changes["name"] = map[string]interface{}{"from": lead.Name, "to": name}
				lead.Name = name
			}
		}
		if req.Email != nil {
			email := normalizeEmail(req.Email)
			if deref(email) != deref(lead.Email) {
				changes["email"] = map[string]interface{}{"from": deref(lead.Email), "to": deref(email)}
				lead.Email = email
			}
		}
		if req.Phone != nil {
			p := s.normalizePhone(req.Phone)
			if deref(p) != deref(lead.Phone) {
				changes["phone"] = map[string]interface{}{"from": deref(lead.Phone), "to": deref(p)}
				lead.Phone = p
			}
		}
		if req.Source != nil && *req.Source != lead.Source {
			changes["source"] = map[string]interface{}{"from": string(lead.Source), "to": string(*req.Source)}
			lead.Source = *req.Source
			applyScore(lead)
		}
		if req.AssigneeID.Set && deref(req.AssigneeID.Value) != deref(lead.AssigneeID) {
			changes["assigneeId"] = map[string]interface{}{"from": deref(lead.AssigneeID), "to": deref(req.AssigneeID.Value)}
			lead.AssigneeID = trimmedPtr(req.AssigneeID.Value)
		}

		if req.Stage != nil && *req.Stage != lead.Stage {
			event, busEvent, err := s.transition(lead, actor, *req.Stage)
			if err != nil {
				return nil, nil, err
			}
			if len(changes) > 0 {
				event.Metadata["changes"] = changes
			}
			return event, []events.Event{busEvent}, nil
		}
		if req.Stage != nil && domain.IsTerminalStage(lead.Stage) {
			return nil, nil, apperr.Conflict("lead is in a terminal stage; reopen it first")
		}

		if len(changes) == 0 {
			return nil, nil, nil
		}
		lead.UpdatedAt = s.now()
		event := s.newEvent(*lead, domain.EventUpdated, actor, "Lead details updated", map[string]interface{}{"changes": changes})
		return &event, nil, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// ChangeStage moves an open lead to another stage.
func (s *Service) ChangeStage(ctx context.Context, actor domain.Actor, id uuid.UUID, stage domain.Stage) (transport.LeadResponse, error) {
	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		event, busEvent, err := s.transition(lead, actor, stage)
		if err != nil {
			return nil, nil, err
		}
		return event, []events.Event{busEvent}, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// transition applies a regular stage change and builds its audit and bus events.
func (s *Service) transition(lead *repository.Lead, actor domain.Actor, to domain.Stage) (*repository.LeadEvent, events.Event, error) {
	from := lead.Stage
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, nil, stageError(err)
	}

	now := s.now()
	lead.Stage = to
	lead.Status = domain.StatusForStage(to)
	lead.UpdatedAt = now
	lead.LastActivityAt = now
	applyScore(lead)

	event := s.newEvent(*lead, domain.EventStageChanged, actor, "Stage changed from "+string(from)+" to "+string(to), map[string]interface{}{
		"fromStage": string(from),
		"toStage":   string(to),
		"priority":  string(lead.Priority),
	})
	busEvent := events.LeadStageChanged{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		FromStage:  string(from),
		ToStage:    string(to),
		ActorID:    actor.ID,
		AssigneeID: lead.AssigneeID,
	}
	return &event, busEvent, nil
}

// Stages returns the pipeline catalog.
func (s *Service) Stages() []transport.StageResponse {
	return domain.Stages()
}

// EnsureActive returns NotFound unless the lead exists and is not deleted.
// Chat uses it to validate room-to-lead associations.
func (s *Service) EnsureActive(ctx context.Context, id uuid.UUID) error {
	lead, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if lead.IsDeleted() {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// mutateFunc changes lead in place and returns the audit event to persist
// plus bus events to publish afterwards. A nil audit event means the call
// changed nothing and is acknowledged without a write.
type mutateFunc func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error)

// mutate runs fn under the per-lead lock. Bus events are published
// synchronously before the lock is released, so observers see one lead's
// changes in the order they were committed.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, allowDeleted bool, fn mutateFunc) (repository.Lead, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	lead, err := s.load(ctx, id)
	if err != nil {
		return repository.Lead{}, err
	}
	if lead.IsDeleted() && !allowDeleted {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}

	updated := lead.Clone()
	event, busEvents, err := fn(&updated)
	if err != nil {
		return repository.Lead{}, err
	}
	if event == nil {
		return lead, nil
	}

	if err := s.repo.Save(ctx, updated, *event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		s.log.DatabaseError("leads.save", err)
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to save lead", err)
	}

	for _, busEvent := range busEvents {
		s.publish(ctx, busEvent)
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		s.log.DatabaseError("leads.get", err)
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return lead, nil
}

// publish never fails the business operation; handler errors are logged.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.log.Error("lead event handler failed", "event", event.EventName(), "error", err)
	}
}

func (s *Service) newEvent(lead repository.Lead, eventType domain.EventType, actor domain.Actor, description string, meta map[string]interface{}) repository.LeadEvent {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return repository.LeadEvent{
		ID:          uuid.New(),
		LeadID:      lead.ID,
		Type:        eventType,
		ActorID:     actor.ID,
		Description: description,
		Metadata:    meta,
		CreatedAt:   s.now(),
	}
}

func (s *Service) validate(req interface{}) error {
	if s.val == nil {
		return nil
	}
	if err := s.val.Struct(req); err != nil {
		return apperr.Validation("invalid request").WithDetails(validator.FieldErrors(err))
	}
	return nil
}

func (s *Service) normalizePhone(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := s.phones.E164(*value)
	if normalized == "" {
		return nil
	}
	return &normalized
}

// applyScore recomputes the derived score, category and priority.
// Overrides win over derived values.
func applyScore(lead *repository.Lead) scoring.Result {
	result := scoring.Evaluate(lead.Activity, lead.Source)
	lead.Score = result.Score
	if lead.ScoreOverride != nil {
		lead.Score = *lead.ScoreOverride
	}
	lead.Category = scoring.Categorize(lead.Score)
	lead.Priority = scoring.DefaultPriority(lead.Score, lead.Category)
	if lead.PriorityOverride != nil {
		lead.Priority = *lead.PriorityOverride
	}
	return result
}

func stageError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownStage), errors.Is(err, domain.ErrReopenTarget):
		return apperr.Validation(err.Error())
	case errors.Is(err, domain.ErrStageFrozen):
		return apperr.Conflict("lead is in a terminal stage; reopen it first")
	case errors.Is(err, domain.ErrSameStage), errors.Is(err, domain.ErrNotTerminal):
		return apperr.Conflict(err.Error())
	default:
		return err
	}
}

func normalizeEmail(value *string) *string {
	if value == nil {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(*value))
	if email == "" {
		return nil
	}
	return &email
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
