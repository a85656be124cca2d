package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/sanitize"
)

// Reopen moves a won or lost lead back into an open stage. It is
// privileged and recorded as its own event type.
func (s *Service) Reopen(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.ReopenLeadRequest) (transport.LeadResponse, error) {
	if !actor.IsPrivileged() {
		return transport.LeadResponse{}, apperr.Forbidden("only managers can reopen leads")
	}
	target := domain.StageNew
	if req.Stage != nil {
		target = *req.Stage
	}

	lead, err := s.mutate(ctx, id, false, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		from := lead.Stage
		if err := domain.ValidateReopen(from, target); err != nil {
			return nil, nil, stageError(err)
		}

		now := s.now()
		lead.Stage = target
		lead.Status = domain.StatusForStage(target)
		lead.UpdatedAt = now
		lead.LastActivityAt = now
		applyScore(lead)

		event := s.newEvent(*lead, domain.EventReopened, actor, "Lead reopened from "+string(from)+" to "+string(target), map[string]interface{}{
			"fromStage": string(from),
			"toStage":   string(target),
			"priority":  string(lead.Priority),
		})
		busEvent := events.LeadReopened{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			FromStage:  string(from),
			ToStage:    string(target),
			ActorID:    actor.ID,
			AssigneeID: lead.AssigneeID,
		}
		return &event, []events.Event{busEvent}, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// SoftDelete hides a lead from default queries. Deleting an already deleted
// lead succeeds without writing anything.
func (s *Service) SoftDelete(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) error {
	if !actor.IsPrivileged() {
		return apperr.Forbidden("only managers can delete leads")
	}
	reason = sanitize.Text(reason)
	if reason == "" {
		return apperr.Validation("a deletion reason is required")
	}

	_, err := s.mutate(ctx, id, true, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		if lead.IsDeleted() {
			return nil, nil, nil
		}

		now := s.now()
		actorID := actor.ID
		lead.DeletedAt = &now
		lead.DeletedBy = &actorID
		lead.DeletionReason = &reason
		lead.UpdatedAt = now

		event := s.newEvent(*lead, domain.EventDeleted, actor, "Lead deleted: "+reason, map[string]interface{}{
			"reason":   reason,
			"stage":    string(lead.Stage),
			"leadName": lead.Name,
		})
		busEvent := events.LeadDeleted{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			LeadName:   lead.Name,
			Reason:     reason,
			ActorID:    actor.ID,
			AssigneeID: lead.AssigneeID,
		}
		return &event, []events.Event{busEvent}, nil
	})
	return err
}

// Restore clears the deletion fields. The lead keeps its id and every
// earlier audit event.
func (s *Service) Restore(ctx context.Context, actor domain.Actor, id uuid.UUID) (transport.LeadResponse, error) {
	if !actor.IsPrivileged() {
		return transport.LeadResponse{}, apperr.Forbidden("only managers can restore leads")
	}

	lead, err := s.mutate(ctx, id, true, func(lead *repository.Lead) (*repository.LeadEvent, []events.Event, error) {
		if !lead.IsDeleted() {
			return nil, nil, apperr.Conflict("lead is not deleted")
		}

		previousReason := deref(lead.DeletionReason)
		deletedAt := *lead.DeletedAt
		now := s.now()
		actorID := actor.ID
		lead.DeletedAt = nil
		lead.DeletedBy = nil
		lead.DeletionReason = nil
		lead.RestoredAt = &now
		lead.RestoredBy = &actorID
		lead.UpdatedAt = now

		event := s.newEvent(*lead, domain.EventRestored, actor, "Lead restored", map[string]interface{}{
			"deletionReason": previousReason,
			"deletedAt":      deletedAt,
		})
		busEvent := events.LeadRestored{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			LeadName:   lead.Name,
			ActorID:    actor.ID,
			AssigneeID: lead.AssigneeID,
		}
		return &event, []events.Event{busEvent}, nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// ListEvents returns a lead's audit trail in chronological order. The trail
// stays readable after the lead is deleted.
func (s *Service) ListEvents(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]transport.LeadEventResponse, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.IsDeleted() && !actor.IsPrivileged() {
		return nil, apperr.NotFound("lead not found")
	}

	evs, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		s.log.DatabaseError("leads.list_events", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list lead events", err)
	}
	out := make([]transport.LeadEventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toEventResponse(ev))
	}
	return out, nil
}

// RecentDeletions lists deletions newest first, derived from the audit log.
// Every delete/restore cycle of a lead shows up as its own entry.
func (s *Service) RecentDeletions(ctx context.Context, actor domain.Actor, limit int) ([]transport.DeletionResponse, error) {
	if !actor.IsPrivileged() {
		return nil, apperr.Forbidden("only managers can view deletions")
	}

	deletions, err := s.repo.ListEventsByType(ctx, domain.EventDeleted, limit)
	if err != nil {
		s.log.DatabaseError("leads.recent_deletions", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list deletions", err)
	}

	trails := make(map[uuid.UUID][]repository.LeadEvent)
	out := make([]transport.DeletionResponse, 0, len(deletions))
	for _, del := range deletions {
		trail, ok := trails[del.LeadID]
		if !ok {
			trail, err = s.repo.ListEvents(ctx, del.LeadID)
			if err != nil {
				s.log.DatabaseError("leads.recent_deletions", err)
				return nil, apperr.Wrap(apperr.KindInternal, "failed to list deletions", err)
			}
			trails[del.LeadID] = trail
		}

		entry := transport.DeletionResponse{
			EventID:   del.ID,
			LeadID:    del.LeadID,
			LeadName:  metaString(del.Metadata, "leadName"),
			Reason:    metaString(del.Metadata, "reason"),
			DeletedBy: del.ActorID,
			DeletedAt: del.CreatedAt,
		}
		if restored, ok := restoreAfter(trail, del.ID); ok {
			at := restored.CreatedAt
			by := restored.ActorID
			entry.RestoredAt = &at
			entry.RestoredBy = &by
		}
		out = append(out, entry)
	}
	return out, nil
}

// restoreAfter finds the first restore that follows the deletion event.
func restoreAfter(trail []repository.LeadEvent, deletionID uuid.UUID) (repository.LeadEvent, bool) {
	seen := false
	for _, ev := range trail {
		if ev.ID == deletionID {
			seen = true
			continue
		}
		if seen && ev.Type == domain.EventRestored {
			return ev, true
		}
	}
	return repository.LeadEvent{}, false
}

func metaString(meta map[string]interface{}, key string) string {
	value, _ := meta[key].(string)
	return strings.TrimSpace(value)
}
