package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("subscriber is not a member")
)

// RoomStore persists rooms and their member sets.
type RoomStore interface {
	// CreateRoom stores the room and its members together.
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (Room, error)
	ListRoomsForMember(ctx context.Context, subscriberID string, roomType *domain.RoomType) ([]Room, error)
	// AddMembers ignores ids that are already members.
	AddMembers(ctx context.Context, roomID uuid.UUID, subscriberIDs []string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, roomID uuid.UUID, subscriberID string) error
	RoomMembers(ctx context.Context, roomID uuid.UUID) ([]string, error)
}

// MessageStore is the append-only message log of every room.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg Message) error
	GetMessage(ctx context.Context, roomID uuid.UUID, id string) (Message, error)
	// UpdateMessage writes content, editedAt and deletedAt. Id, sender and
	// createdAt never change.
	UpdateMessage(ctx context.Context, msg Message) error
	LastMessage(ctx context.Context, roomID uuid.UUID) (Message, bool, error)
	ListMessages(ctx context.Context, params ListMessagesParams) ([]Message, error)
}

// ReadCursorStore keeps one read position per member and room.
type ReadCursorStore interface {
	// AdvanceReadCursor moves the cursor to messageID unless it already
	// points at that message or a newer one, and returns the stored cursor.
	AdvanceReadCursor(ctx context.Context, cursor ReadCursor) (ReadCursor, error)
	ListReadCursors(ctx context.Context, roomID uuid.UUID) ([]ReadCursor, error)
}

// ChatRepository is the full store used by the chat service.
type ChatRepository interface {
	RoomStore
	MessageStore
	ReadCursorStore
}
