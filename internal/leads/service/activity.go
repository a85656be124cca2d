package service

import (
	"context"

	"github.com/google/uuid"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/sanitize"
)

// RecordActivity adds engagement counts and rescores the lead.
func (s *Service) RecordActivity(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.RecordActivityRequest) (transport.LeadResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadResponse{}, err
	}
	delta := req.Counts()
	if err := delta.Validate(); err != nil {
		return transport.LeadResponse{}, apperr.Validation(err.Error())
	}
	if delta.IsZero() {
		return transport.LeadResponse{}, apperr.Validation("no activity to record")
	}

	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		previous := lead.Score
		lead.Activity = lead.Activity.Add(delta)
		now := s.now()
		lead.UpdatedAt = now
		lead.LastActivityAt = now
		result := applyScore(lead)

		event := s.newEvent(*lead, domain.EventScored, actor, "Activity recorded", map[string]interface{}{
			"delta":         delta,
			"previousScore": previous,
			"score":         lead.Score,
			"computedScore": result.Score,
			"category":      string(lead.Category),
			"override":      false,
			"version":       result.Version,
		})
		return &event, s.scoredEvents(*lead, actor, previous, false), nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// OverrideScore pins the score to a human-chosen value.
func (s *Service) OverrideScore(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.ScoreOverrideRequest) (transport.LeadResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadResponse{}, err
	}
	reason := sanitize.Text(req.Reason)

	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		previous := lead.Score
		score := *req.Score
		lead.ScoreOverride = &score
		lead.UpdatedAt = s.now()
		applyScore(lead)

		event := s.newEvent(*lead, domain.EventScored, actor, "Score overridden", map[string]interface{}{
			"previousScore": previous,
			"score":         lead.Score,
			"category":      string(lead.Category),
			"override":      true,
			"reason":        reason,
		})
		return &event, s.scoredEvents(*lead, actor, previous, true), nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// ClearScoreOverride returns the lead to its computed score.
func (s *Service) ClearScoreOverride(ctx context.Context, actor domain.Actor, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		if lead.ScoreOverride == nil {
			return nil, nil, nil
		}
		previous := lead.Score
		lead.ScoreOverride = nil
		lead.UpdatedAt = s.now()
		applyScore(lead)

		event := s.newEvent(*lead, domain.EventScored, actor, "Score override cleared", map[string]interface{}{
			"previousScore": previous,
			"score":         lead.Score,
			"category":      string(lead.Category),
			"override":      false,
			"cleared":       true,
		})
		return &event, s.scoredEvents(*lead, actor, previous, false), nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// OverridePriority pins the priority; stage changes stop recomputing it.
func (s *Service) OverridePriority(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.PriorityOverrideRequest) (transport.LeadResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadResponse{}, err
	}
	reason := sanitize.Text(req.Reason)

	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		previous := lead.Priority
		priority := req.Priority
		lead.PriorityOverride = &priority
		lead.Priority = priority
		lead.UpdatedAt = s.now()

		event := s.newEvent(*lead, domain.EventPriorityOverridden, actor, "Priority overridden", map[string]interface{}{
			"from":   string(previous),
			"to":     string(priority),
			"reason": reason,
		})
		return &event, nil, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// ClearPriorityOverride goes back to the priority derived from the score.
func (s *Service) ClearPriorityOverride(ctx context.Context, actor domain.Actor, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		if lead.PriorityOverride == nil {
			return nil, nil, nil
		}
		previous := lead.Priority
		lead.PriorityOverride = nil
		lead.UpdatedAt = s.now()
		applyScore(lead)

		event := s.newEvent(*lead, domain.EventPriorityOverridden, actor, "Priority override cleared", map[string]interface{}{
			"from":    string(previous),
			"to":      string(lead.Priority),
			"cleared": true,
		})
		return &event, nil, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// AddNote appends a free-text note to the audit trail.
func (s *Service) AddNote(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.AddNoteRequest) (transport.LeadEventResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.LeadEventResponse{}, err
	}
	body := sanitize.Text(req.Body)
	if body == "" {
		return transport.LeadEventResponse{}, apperr.Validation("note body is empty")
	}

	var noted repository.LeadEvent
	_, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		now := s.now()
		lead.UpdatedAt = now
		lead.LastActivityAt = now
		noted = s.newEvent(*lead, domain.EventNoteAdded, actor, body, map[string]interface{}{"body": body})
		return &noted, nil, nil
	})
	if err != nil {
		return transport.LeadEventResponse{}, err
	}
	return toEventResponse(noted), nil
}

// RecordMessage logs a chat message posted in a room linked to the lead.
func (s *Service) RecordMessage(ctx context.Context, actor domain.Actor, id uuid.UUID, roomID uuid.UUID, messageID string) error {
	_, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		now := s.now()
		lead.LastActivityAt = now
		lead.UpdatedAt = now
		event := s.newEvent(*lead, domain.EventMessageSent, actor, "Chat message sent", map[string]interface{}{
			"roomId":    roomID.String(),
			"messageId": messageID,
		})
		return &event, nil, nil
	})
	return err
}

func (s *Service) scoredEvents(lead repository.Lead, actor domain.Actor, previous int, override bool) []events.Event {
	if lead.Score == previous {
		return nil
	}
	return []events.Event{events.LeadScored{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Score:     lead.Score,
		Category:  string(lead.Category),
		Override:  override,
		ActorID:   actor.ID,
	}}
}
