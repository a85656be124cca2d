package repository

import (
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
)

// Lead is the persisted lead row. Score and Priority hold the effective
// values: the override when one is set, otherwise the derived value.
type Lead struct {
	ID               uuid.UUID
	Name             string
	Email            *string
	Phone            *string
	Source           domain.Source
	Stage            domain.Stage
	Status           domain.Status
	Score            int
	ScoreOverride    *int
	Category         domain.Category
	Priority         domain.Priority
	PriorityOverride *domain.Priority
	AssigneeID       *string
	Activity         domain.ActivityCounts
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastActivityAt   time.Time
	DeletedAt        *time.Time
	DeletedBy        *string
	DeletionReason   *string
	RestoredAt       *time.Time
	RestoredBy       *string
}

// IsDeleted reports whether the lead is soft-deleted.
func (l Lead) IsDeleted() bool {
	return l.DeletedAt != nil
}

// Clone returns a deep copy so callers never share pointer fields.
func (l Lead) Clone() Lead {
	out := l
	out.Email = clonePtr(l.Email)
	out.Phone = clonePtr(l.Phone)
	out.ScoreOverride = clonePtr(l.ScoreOverride)
	out.PriorityOverride = clonePtr(l.PriorityOverride)
	out.AssigneeID = clonePtr(l.AssigneeID)
	out.DeletedAt = clonePtr(l.DeletedAt)
	out.DeletedBy = clonePtr(l.DeletedBy)
	out.DeletionReason = clonePtr(l.DeletionReason)
	out.RestoredAt = clonePtr(l.RestoredAt)
	out.RestoredBy = clonePtr(l.RestoredBy)
	return out
}

// LeadEvent is one append-only audit record.
type LeadEvent struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Type        domain.EventType
	ActorID     string
	Description string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}

// ListParams filters List. Nil pointers mean "any".
type ListParams struct {
	Status         *domain.Status
	Stage          *domain.Stage
	Source         *domain.Source
	AssigneeID     *string
	Search         string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize applies default and maximum page sizes.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
