package domain

import (
	"errors"
	"math"
	"slices"
)

// Source is the channel a lead arrived through.
type Source string

const (
	SourceSiteForm   Source = "site_form"
	SourceChatWidget Source = "chat_widget"
	SourcePhone      Source = "phone"
	SourceReferral   Source = "referral"
	SourceOther      Source = "other"
)

// IsKnownSource reports whether s is one of the enumerated channels.
func IsKnownSource(s Source) bool {
	switch s {
	case SourceSiteForm, SourceChatWidget, SourcePhone, SourceReferral, SourceOther:
		return true
	}
	return false
}

// Category is the three-tier temperature derived from the score.
type Category string

const (
	CategoryCold Category = "cold"
	CategoryWarm Category = "warm"
	CategoryHot  Category = "hot"
)

// Priority is derived from score and category unless overridden by a human.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsKnownPriority reports whether p is a valid priority.
func IsKnownPriority(p Priority) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ActivityCounts is the engagement ledger a score is computed from.
type ActivityCounts struct {
	PageViews        int `json:"pageViews"`
	FormSubmits      int `json:"formSubmits"`
	PricingPageViews int `json:"pricingPageViews"`
	DemoRequests     int `json:"demoRequests"`
	EmailOpens       int `json:"emailOpens"`
}

// MaxActivityDelta bounds each count a single request may record.
const MaxActivityDelta = 1_000_000

var (
	ErrNegativeActivity = errors.New("activity counts must not be negative")
	ErrActivityTooLarge = errors.New("activity counts must not exceed 1000000 per request")
)

// Validate rejects negative counts and counts above MaxActivityDelta.
func (a ActivityCounts) Validate() error {
	for _, n := range []int{a.PageViews, a.FormSubmits, a.PricingPageViews, a.DemoRequests, a.EmailOpens} {
		if n < 0 {
			return ErrNegativeActivity
		}
		if n > MaxActivityDelta {
			return ErrActivityTooLarge
		}
	}
	return nil
}

// Add returns the element-wise sum of a and delta. Sums saturate at
// math.MaxInt and never drop below zero.
func (a ActivityCounts) Add(delta ActivityCounts) ActivityCounts {
	return ActivityCounts{
		PageViews:        addCount(a.PageViews, delta.PageViews),
		FormSubmits:      addCount(a.FormSubmits, delta.FormSubmits),
		PricingPageViews: addCount(a.PricingPageViews, delta.PricingPageViews),
		DemoRequests:     addCount(a.DemoRequests, delta.DemoRequests),
		EmailOpens:       addCount(a.EmailOpens, delta.EmailOpens),
	}
}

func addCount(a, b int) int {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt
	case sum < 0:
		return 0
	}
	return sum
}

// IsZero reports whether no activity is recorded.
func (a ActivityCounts) IsZero() bool {
	return a == ActivityCounts{}
}

// EventType classifies audit log entries.
type EventType string

const (
	EventCreated            EventType = "created"
	EventUpdated            EventType = "updated"
	EventStageChanged       EventType = "stage_changed"
	EventReopened           EventType = "reopened"
	EventScored             EventType = "scored"
	EventPriorityOverridden EventType = "priority_overridden"
	EventDeleted            EventType = "deleted"
	EventRestored           EventType = "restored"
	EventNoteAdded          EventType = "note_added"
	EventMessageSent        EventType = "message_sent"
)

// Role names that grant privileged lead operations.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Actor is whoever triggers a mutation. System actors have no roles.
type Actor struct {
	ID    string
	Roles []string
}

// SystemActor builds an actor for background processes.
func SystemActor(name string) Actor {
	return Actor{ID: "system:" + name}
}

// IsPrivileged reports whether the actor may delete, restore or reopen.
func (a Actor) IsPrivileged() bool {
	return slices.Contains(a.Roles, RoleAdmin) || slices.Contains(a.Roles, RoleManager)
}
