package adapters

import (
	"context"

	"github.com/google/uuid"

	chatservice "solar_portal_backend/internal/chat/service"
	"solar_portal_backend/internal/leads/domain"
	leadsservice "solar_portal_backend/internal/leads/service"
)

// LeadTimelineWriter lets chat validate room-to-lead links and append
// chat activity to the lead's audit log.
type LeadTimelineWriter struct {
	leads *leadsservice.Service
}

// NewLeadTimelineWriter creates a new lead timeline writer adapter.
func NewLeadTimelineWriter(leads *leadsservice.Service) *LeadTimelineWriter {
	return &LeadTimelineWriter{leads: leads}
}

func (a *LeadTimelineWriter) EnsureActive(ctx context.Context, leadID uuid.UUID) error {
	return a.leads.EnsureActive(ctx, leadID)
}

// RecordMessage writes a message_sent event attributed to the sender.
func (a *LeadTimelineWriter) RecordMessage(ctx context.Context, senderID string, leadID, roomID uuid.UUID, messageID string) error {
	return a.leads.RecordMessage(ctx, domain.Actor{ID: senderID}, leadID, roomID, messageID)
}

// Compile-time check.
var _ chatservice.LeadTimeline = (*LeadTimelineWriter)(nil)
