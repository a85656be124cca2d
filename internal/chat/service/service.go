// Package service implements chat rooms and messages. Writes to one room
// are serialized, so message ids and room events leave in one order.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
	"solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/keylock"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/sanitize"
	"solar_portal_backend/platform/validator"
)

// Publisher delivers real-time events. *realtime.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, payload realtime.Payload, target realtime.Target) error
}

// LeadTimeline is the part of the lead service chat depends on.
type LeadTimeline interface {
	EnsureActive(ctx context.Context, leadID uuid.UUID) error
	RecordMessage(ctx context.Context, senderID string, leadID, roomID uuid.UUID, messageID string) error
}

type Service struct {
	repo  repository.ChatRepository
	hub   Publisher
	bus   events.Bus
	leads LeadTimeline
	val   *validator.Validator
	log   *logger.Logger
	locks *keylock.Map[uuid.UUID]
	ids   *idGenerator
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLeadTimeline enables lead-associated rooms.
func WithLeadTimeline(leads LeadTimeline) Option {
	return func(s *Service) { s.leads = leads }
}

func New(repo repository.ChatRepository, hub Publisher, bus events.Bus, val *validator.Validator, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		hub:   hub,
		bus:   bus,
		val:   val,
		log:   log,
		locks: keylock.New[uuid.UUID](),
		ids:   newIDGenerator(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom creates a room with the creator as a member.
func (s *Service) CreateRoom(ctx context.Context, actorID string, req transport.CreateRoomRequest) (transport.RoomResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.RoomResponse{}, err
	}
	members, err := domain.MembersForNewRoom(req.Type, actorID, req.MemberIDs)
	if err != nil {
		return transport.RoomResponse{}, apperr.Validation(err.Error())
	}
	if req.LeadID != nil {
		if err := s.checkLead(ctx, *req.LeadID); err != nil {
			return transport.RoomResponse{}, err
		}
	}

	room := repository.Room{
		ID:        uuid.New(),
		Type:      req.Type,
		Name:      sanitize.Text(req.Name),
		LeadID:    req.LeadID,
		CreatedBy: strings.TrimSpace(actorID),
		MemberIDs: members,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return transport.RoomResponse{}, s.storeError("chat.create_room", err)
	}
	return toRoomResponse(room), nil
}

func (s *Service) checkLead(ctx context.Context, leadID uuid.UUID) error {
	if s.leads == nil {
		return apperr.Validation("rooms cannot be linked to leads")
	}
	if err := s.leads.EnsureActive(ctx, leadID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}

// GetRoom returns a room the actor is a member of.
func (s *Service) GetRoom(ctx context.Context, actorID string, roomID uuid.UUID) (transport.RoomResponse, error) {
	room, err := s.memberRoom(ctx, actorID, roomID)
	if err != nil {
		return transport.RoomResponse{}, err
	}
	return toRoomResponse(room), nil
}

// ListRooms returns the actor's rooms, newest first, optionally of one type.
func (s *Service) ListRooms(ctx context.Context, actorID string, req transport.ListRoomsRequest) (transport.RoomListResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.RoomListResponse{}, err
	}
	var roomType *domain.RoomType
	if req.Type != "" {
		t := domain.RoomType(req.Type)
		roomType = &t
	}
	rooms, err := s.repo.ListRoomsForMember(ctx, actorID, roomType)
	if err != nil {
		return transport.RoomListResponse{}, s.storeError("chat.list_rooms", err)
	}
	items := make([]transport.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		items = append(items, toRoomResponse(room))
	}
	return transport.RoomListResponse{Items: items}, nil
}

// AddMembers invites subscribers to a room the actor belongs to.
func (s *Service) AddMembers(ctx context.Context, actorID string, roomID uuid.UUID, req transport.AddMembersRequest) (transport.RoomResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.RoomResponse{}, err
	}
	ids := domain.NormalizeMembers(req.MemberIDs)
	if len(ids) == 0 {
		return transport.RoomResponse{}, apperr.Validation("memberIds is empty")
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.memberRoom(ctx, actorID, roomID)
	if err != nil {
		return transport.RoomResponse{}, err
	}
	if domain.MembershipIsFixed(room.Type) {
		return transport.RoomResponse{}, apperr.Conflict(domain.ErrFixedMembership.Error())
	}
	if err := s.repo.AddMembers(ctx, roomID, ids, s.now().UTC()); err != nil {
		return transport.RoomResponse{}, s.storeError("chat.add_members", err)
	}
	room, err = s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return transport.RoomResponse{}, s.storeError("chat.get_room", err)
	}
	return toRoomResponse(room), nil
}

// RemoveMember lets a member leave, or the room creator remove anyone.
func (s *Service) RemoveMember(ctx context.Context, actorID string, roomID uuid.UUID, subscriberID string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.memberRoom(ctx, actorID, roomID)
	if err != nil {
		return err
	}
	if domain.MembershipIsFixed(room.Type) {
		return apperr.Conflict(domain.ErrFixedMembership.Error())
	}
	if subscriberID != actorID && room.CreatedBy != actorID {
		return apperr.Forbidden("only the room creator can remove other members")
	}
	if err := s.repo.RemoveMember(ctx, roomID, subscriberID); err != nil {
		return s.storeError("chat.remove_member", err)
	}
	return nil
}

// memberRoom loads a room and hides it from non-members.
func (s *Service) memberRoom(ctx context.Context, actorID string, roomID uuid.UUID) (repository.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return repository.Room{}, s.storeError("chat.get_room", err)
	}
	if !room.HasMember(actorID) {
		return repository.Room{}, apperr.NotFound("room not found")
	}
	return room, nil
}

// publish never fails the chat operation.
func (s *Service) publish(ctx context.Context, payload realtime.Payload, target realtime.Target) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(ctx, payload, target); err != nil {
		s.log.Error("chat event delivery failed", "kind", payload.Kind(), "error", err)
	}
}

func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return apperr.NotFound("room not found")
	case errors.Is(err, repository.ErrMessageNotFound):
		return apperr.NotFound("message not found")
	case errors.Is(err, repository.ErrNotMember):
		return apperr.NotFound("member not found")
	}
	s.log.DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, "chat store failure", err)
}

func (s *Service) validate(req interface{}) error {
	if s.val == nil {
		return nil
	}
	if err := s.val.Struct(req); err != nil {
		return apperr.Validation("invalid request").WithDetails(validator.FieldErrors(err))
	}
	return nil
}

func cleanContent(raw string) (string, error) {
	content := sanitize.Text(raw)
	switch {
	case content == "":
		return "", apperr.Validation(domain.ErrEmptyContent.Error())
	case utf8.RuneCountInString(content) > domain.MaxContentLength:
		return "", apperr.Validation(domain.ErrContentTooLong.Error())
	}
	return content, nil
}
