package service

import (
	"maps"

	"solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/leads/transport"
)

// ToLeadResponse maps a stored lead to its API shape.
func ToLeadResponse(lead repository.Lead) transport.LeadResponse {
	lead = lead.Clone()
	return transport.LeadResponse{
		ID:               lead.ID,
		Name:             lead.Name,
		Email:            lead.Email,
		Phone:            lead.Phone,
		Source:           lead.Source,
		Stage:            lead.Stage,
		Status:           lead.Status,
		Score:            lead.Score,
		ScoreOverridden:  lead.ScoreOverride != nil,
		Category:         lead.Category,
		Priority:         lead.Priority,
		PriorityOverride: lead.PriorityOverride,
		AssigneeID:       lead.AssigneeID,
		Activity:         lead.Activity,
		CreatedAt:        lead.CreatedAt,
		UpdatedAt:        lead.UpdatedAt,
		LastActivityAt:   lead.LastActivityAt,
		DeletedAt:        lead.DeletedAt,
		DeletedBy:        lead.DeletedBy,
		DeletionReason:   lead.DeletionReason,
		RestoredAt:       lead.RestoredAt,
		RestoredBy:       lead.RestoredBy,
	}
}

func toEventResponse(ev repository.LeadEvent) transport.LeadEventResponse {
	meta := maps.Clone(ev.Metadata)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return transport.LeadEventResponse{
		ID:          ev.ID,
		LeadID:      ev.LeadID,
		Type:        ev.Type,
		ActorID:     ev.ActorID,
		Description: ev.Description,
		Metadata:    meta,
		CreatedAt:   ev.CreatedAt,
	}
}
