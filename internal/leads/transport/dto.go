package transport

import (
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/scoring"
)

// Request DTOs
type CreateLeadRequest struct {
	Name       string                 `json:"name" validate:"notblank,max=200"`
	Email      *string                `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone      *string                `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Source     domain.Source          `json:"source" validate:"required,oneof=site_form chat_widget phone referral other"`
	AssigneeID *string                `json:"assigneeId,omitempty" validate:"omitempty,max=64"`
	Activity   *domain.ActivityCounts `json:"activity,omitempty" validate:"omitempty"`
}

type UpdateLeadRequest struct {
	Name       *string        `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	Email      *string        `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone      *string        `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Source     *domain.Source `json:"source,omitempty" validate:"omitempty,oneof=site_form chat_widget phone referral other"`
	Stage      *domain.Stage  `json:"stage,omitempty" validate:"omitempty"`
	AssigneeID OptionalString `json:"assigneeId,omitempty" validate:"-"`
}

type ChangeStageRequest struct {
	Stage domain.Stage `json:"stage" validate:"required"`
}

type ReopenLeadRequest struct {
	Stage *domain.Stage `json:"stage,omitempty" validate:"omitempty"`
}

type RecordActivityRequest struct {
	PageViews        int `json:"pageViews" validate:"min=0,max=1000000"`
	FormSubmits      int `json:"formSubmits" validate:"min=0,max=1000000"`
	PricingPageViews int `json:"pricingPageViews" validate:"min=0,max=1000000"`
	DemoRequests     int `json:"demoRequests" validate:"min=0,max=1000000"`
	EmailOpens       int `json:"emailOpens" validate:"min=0,max=1000000"`
}

func (r RecordActivityRequest) Counts() domain.ActivityCounts {
	return domain.ActivityCounts{
		PageViews:        r.PageViews,
		FormSubmits:      r.FormSubmits,
		PricingPageViews: r.PricingPageViews,
		DemoRequests:     r.DemoRequests,
		EmailOpens:       r.EmailOpens,
	}
}

type ScoreOverrideRequest struct {
	Score  *int   `json:"score" validate:"required,min=0,max=100"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type PriorityOverrideRequest struct {
	Priority domain.Priority `json:"priority" validate:"required,oneof=urgent high medium low"`
	Reason   string          `json:"reason,omitempty" validate:"max=500"`
}

type AddNoteRequest struct {
	Body string `json:"body" validate:"notblank,max=4000"`
}

type DeleteLeadRequest struct {
	Reason string `json:"reason" validate:"notblank,max=500"`
}

type ListLeadsRequest struct {
	Status         string `form:"status" validate:"omitempty,oneof=open won lost"`
	Stage          string `form:"stage" validate:"omitempty"`
	Source         string `form:"source" validate:"omitempty,oneof=site_form chat_widget phone referral other"`
	AssigneeID     string `form:"assigneeId" validate:"omitempty,max=64"`
	Search         string `form:"search" validate:"max=200"`
	IncludeDeleted bool   `form:"includeDeleted"`
	Limit          int    `form:"limit" validate:"min=0,max=100"`
	Offset         int    `form:"offset" validate:"min=0"`
}

// Response DTOs
type LeadResponse struct {
	ID               uuid.UUID             `json:"id"`
	Name             string                `json:"name"`
	Email            *string               `json:"email,omitempty"`
	Phone            *string               `json:"phone,omitempty"`
	Source           domain.Source         `json:"source"`
	Stage            domain.Stage          `json:"stage"`
	Status           domain.Status         `json:"status"`
	Score            int                   `json:"score"`
	ScoreOverridden  bool                  `json:"scoreOverridden"`
	Category         domain.Category       `json:"category"`
	Priority         domain.Priority       `json:"priority"`
	PriorityOverride *domain.Priority      `json:"priorityOverride,omitempty"`
	AssigneeID       *string               `json:"assigneeId,omitempty"`
	Activity         domain.ActivityCounts `json:"activity"`
	ScoreBreakdown   *scoring.Result       `json:"scoreBreakdown,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	LastActivityAt   time.Time             `json:"lastActivityAt"`
	DeletedAt        *time.Time            `json:"deletedAt,omitempty"`
	DeletedBy        *string               `json:"deletedBy,omitempty"`
	DeletionReason   *string               `json:"deletionReason,omitempty"`
	RestoredAt       *time.Time            `json:"restoredAt,omitempty"`
	RestoredBy       *string               `json:"restoredBy,omitempty"`
}

type LeadListResponse struct {
	Items  []LeadResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type LeadEventResponse struct {
	ID          uuid.UUID              `json:"id"`
	LeadID      uuid.UUID              `json:"leadId"`
	Type        domain.EventType       `json:"type"`
	ActorID     string                 `json:"actorId,omitempty"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// DeletionResponse is one entry of the recent-deletions view. RestoredAt is
// set when a later restore closed this deletion.
type DeletionResponse struct {
	EventID    uuid.UUID  `json:"eventId"`
	LeadID     uuid.UUID  `json:"leadId"`
	LeadName   string     `json:"leadName"`
	Reason     string     `json:"reason"`
	DeletedBy  string     `json:"deletedBy"`
	DeletedAt  time.Time  `json:"deletedAt"`
	RestoredAt *time.Time `json:"restoredAt,omitempty"`
	RestoredBy *string    `json:"restoredBy,omitempty"`
}

type StageResponse = domain.StageInfo
