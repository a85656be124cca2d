package repository

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

type Room struct {
	ID        uuid.UUID
	Type      domain.RoomType
	Name      string
	LeadID    *uuid.UUID
	CreatedBy string
	MemberIDs []string
	CreatedAt time.Time
}

func (r Room) HasMember(subscriberID string) bool {
	return slices.Contains(r.MemberIDs, subscriberID)
}

func (r Room) Clone() Room {
	r.MemberIDs = slices.Clone(r.MemberIDs)
	if r.LeadID != nil {
		id := *r.LeadID
		r.LeadID = &id
	}
	return r
}

// Message ids are ULIDs, so ordering by id within a room matches ordering
// by (createdAt, id).
type Message struct {
	ID        string
	RoomID    uuid.UUID
	SenderID  string
	Content   string
	Mentions  []string
	CreatedAt time.Time
	EditedAt  *time.Time
	DeletedAt *time.Time
}

func (m Message) IsDeleted() bool { return m.DeletedAt != nil }

func (m Message) Clone() Message {
	m.Mentions = slices.Clone(m.Mentions)
	if m.EditedAt != nil {
		t := *m.EditedAt
		m.EditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		m.DeletedAt = &t
	}
	return m
}

// ReadCursor is the newest message a member has read in a room.
type ReadCursor struct {
	RoomID       uuid.UUID
	SubscriberID string
	MessageID    string
	UpdatedAt    time.Time
}

// ListMessagesParams pages forward through a room's history.
type ListMessagesParams struct {
	RoomID  uuid.UUID
	AfterID string
	Limit   int
}

func (p ListMessagesParams) Normalize() ListMessagesParams {
	if p.Limit <= 0 {
		p.Limit = DefaultMessageLimit
	}
	if p.Limit > MaxMessageLimit {
		p.Limit = MaxMessageLimit
	}
	return p
}
