package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrEventRequired = errors.New("mutation requires an audit event")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	// GetByID returns the lead even when it is soft-deleted.
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
}

// LeadWriter persists a lead together with exactly one audit event.
// Both writes commit or neither does.
type LeadWriter interface {
	Create(ctx context.Context, lead Lead, event LeadEvent) error
	Save(ctx context.Context, lead Lead, event LeadEvent) error
}

// EventLog is the append-only audit trail.
type EventLog interface {
	ListEvents(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error)
	ListEventsByType(ctx context.Context, eventType domain.EventType, limit int) ([]LeadEvent, error)
}

// LeadRepository is the full store used by the lead service.
type LeadRepository interface {
	LeadReader
	LeadWriter
	EventLog
}
