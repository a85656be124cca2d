package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
)

// Memory is an in-process chat store.
type Memory struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]Room
	messages map[uuid.UUID][]Message
	cursors  map[uuid.UUID]map[string]ReadCursor
}

func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[uuid.UUID]Room),
		messages: make(map[uuid.UUID][]Message),
		cursors:  make(map[uuid.UUID]map[string]ReadCursor),
	}
}

func (m *Memory) CreateRoom(_ context.Context, room Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *Memory) GetRoom(_ context.Context, id uuid.UUID) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (m *Memory) ListRoomsForMember(_ context.Context, subscriberID string, roomType *domain.RoomType) ([]Room, error) {
	m.mu.RLock()
	out := make([]Room, 0)
	for _, room := range m.rooms {
		if !room.HasMember(subscriberID) {
			continue
		}
		if roomType != nil && room.Type != *roomType {
			continue
		}
		out = append(out, room.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) AddMembers(_ context.Context, roomID uuid.UUID, subscriberIDs []string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	for _, id := range subscriberIDs {
		if !room.HasMember(id) {
			room.MemberIDs = append(room.MemberIDs, id)
		}
	}
	m.rooms[roomID] = room
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, roomID uuid.UUID, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	idx := slices.Index(room.MemberIDs, subscriberID)
	if idx < 0 {
		return ErrNotMember
	}
	room.MemberIDs = slices.Delete(room.MemberIDs, idx, idx+1)
	m.rooms[roomID] = room
	if cursors, ok := m.cursors[roomID]; ok {
		delete(cursors, subscriberID)
	}
	return nil
}

func (m *Memory) RoomMembers(_ context.Context, roomID uuid.UUID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return slices.Clone(room.MemberIDs), nil
}

func (m *Memory) InsertMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[msg.RoomID]; !ok {
		return ErrRoomNotFound
	}
	history := append(m.messages[msg.RoomID], msg.Clone())
	// callers insert in id order; keep the history sorted regardless
	if n := len(history); n > 1 && history[n-2].ID > history[n-1].ID {
		sort.Slice(history, func(i, j int) bool { return history[i].ID < history[j].ID })
	}
	m.messages[msg.RoomID] = history
	return nil
}

func (m *Memory) GetMessage(_ context.Context, roomID uuid.UUID, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages[roomID] {
		if msg.ID == id {
			return msg.Clone(), nil
		}
	}
	return Message{}, ErrMessageNotFound
}

func (m *Memory) UpdateMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.messages[msg.RoomID]
	for i := range history {
		if history[i].ID == msg.ID {
			stored := history[i]
			stored.Content = msg.Content
			stored.EditedAt = msg.Clone().EditedAt
			stored.DeletedAt = msg.Clone().DeletedAt
			history[i] = stored
			return nil
		}
	}
	return ErrMessageNotFound
}

func (m *Memory) LastMessage(_ context.Context, roomID uuid.UUID) (Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.messages[roomID]
	if len(history) == 0 {
		return Message{}, false, nil
	}
	return history[len(history)-1].Clone(), true, nil
}

func (m *Memory) ListMessages(_ context.Context, params ListMessagesParams) ([]Message, error) {
	params = params.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Message, 0)
	for _, msg := range m.messages[params.RoomID] {
		if msg.ID <= params.AfterID {
			continue
		}
		out = append(out, msg.Clone())
		if len(out) == params.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) AdvanceReadCursor(_ context.Context, cursor ReadCursor) (ReadCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.cursors[cursor.RoomID]
	if !ok {
		room = make(map[string]ReadCursor)
		m.cursors[cursor.RoomID] = room
	}
	if current, ok := room[cursor.SubscriberID]; ok && current.MessageID >= cursor.MessageID {
		return current, nil
	}
	room[cursor.SubscriberID] = cursor
	return cursor, nil
}

func (m *Memory) ListReadCursors(_ context.Context, roomID uuid.UUID) ([]ReadCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ReadCursor, 0, len(m.cursors[roomID]))
	for _, c := range m.cursors[roomID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberID < out[j].SubscriberID })
	return out, nil
}

var _ ChatRepository = (*Memory)(nil)
