package transport

import (
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
)

// Request DTOs
type CreateRoomRequest struct {
	Type      domain.RoomType `json:"type" validate:"required,oneof=direct group channel project support"`
	Name      string          `json:"name,omitempty" validate:"max=120"`
	MemberIDs []string        `json:"memberIds" validate:"max=500,dive,max=64"`
	LeadID    *uuid.UUID      `json:"leadId,omitempty"`
}

type AddMembersRequest struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1,max=500,dive,max=64"`
}

type PostMessageRequest struct {
	Content  string   `json:"content" validate:"required"`
	Mentions []string `json:"mentions,omitempty" validate:"max=50,dive,max=64"`
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

type ListRoomsRequest struct {
	Type string `form:"type" validate:"omitempty,oneof=direct group channel project support"`
}

type ListMessagesRequest struct {
	After string `form:"after" validate:"omitempty,max=26"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// Response DTOs
type RoomResponse struct {
	ID        uuid.UUID       `json:"id"`
	Type      domain.RoomType `json:"type"`
	Name      string          `json:"name,omitempty"`
	LeadID    *uuid.UUID      `json:"leadId,omitempty"`
	CreatedBy string          `json:"createdBy"`
	MemberIDs []string        `json:"memberIds"`
	CreatedAt time.Time       `json:"createdAt"`
}

type RoomListResponse struct {
	Items []RoomResponse `json:"items"`
}

type ReadReceipt struct {
	SubscriberID string    `json:"subscriberId"`
	ReadAt       time.Time `json:"readAt"`
}

type MessageResponse struct {
	ID        string        `json:"id"`
	RoomID    uuid.UUID     `json:"roomId"`
	SenderID  string        `json:"senderId"`
	Content   string        `json:"content"`
	Mentions  []string      `json:"mentions"`
	CreatedAt time.Time     `json:"createdAt"`
	EditedAt  *time.Time    `json:"editedAt,omitempty"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
	ReadBy    []ReadReceipt `json:"readBy"`
}

type MessageListResponse struct {
	Items []MessageResponse `json:"items"`
	// NextAfter is the id to pass as "after" for the next page; empty when
	// the page was not full.
	NextAfter string `json:"nextAfter,omitempty"`
}

type ReadCursorResponse struct {
	RoomID       uuid.UUID  `json:"roomId"`
	SubscriberID string     `json:"subscriberId"`
	MessageID    string     `json:"messageId,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}
