package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
	"solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/sanitize"
)

const mentionPreviewLength = 140

// PostMessage appends a message to a room the sender belongs to and fans
// it out: the room gets a message event, each mentioned subscriber a
// notification whether or not they are a member.
func (s *Service) PostMessage(ctx context.Context, actorID string, roomID uuid.UUID, req transport.PostMessageRequest) (transport.MessageResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.MessageResponse{}, err
	}
	content, err := cleanContent(req.Content)
	if err != nil {
		return transport.MessageResponse{}, err
	}
	mentions := withoutSubscriber(domain.NormalizeMembers(req.Mentions), actorID)

	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.memberRoom(ctx, actorID, roomID)
	if err != nil {
		return transport.MessageResponse{}, err
	}
	id, createdAt, err := s.nextMessageID(ctx, roomID)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	msg := repository.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  actorID,
		Content:   content,
		Mentions:  mentions,
		CreatedAt: createdAt,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return transport.MessageResponse{}, s.storeError("chat.insert_message", err)
	}

	s.publish(ctx, messageEvent(realtime.MessageCreated, msg), realtime.ToRoom(roomID))
	s.notifyMentions(ctx, room, msg)

	if room.LeadID != nil && s.leads != nil {
		if err := s.leads.RecordMessage(ctx, actorID, *room.LeadID, roomID, msg.ID); err != nil {
			s.log.Error("failed to record chat message on lead timeline",
				"leadId", room.LeadID.String(),
				"roomId", roomID.String(),
				"messageId", msg.ID,
				"error", err,
			)
		}
	}
	return toMessageResponse(msg, nil), nil
}

// nextMessageID picks the createdAt and id of a new message so that both
// sort after the room's current last message, even if the clock stepped
// back. Caller holds the room lock.
func (s *Service) nextMessageID(ctx context.Context, roomID uuid.UUID) (string, time.Time, error) {
	createdAt := s.now().UTC().Truncate(time.Millisecond)
	last, ok, err := s.repo.LastMessage(ctx, roomID)
	if err != nil {
		return "", time.Time{}, s.storeError("chat.last_message", err)
	}
	if ok && createdAt.Before(last.CreatedAt) {
		createdAt = last.CreatedAt
	}

	id, err := s.ids.next(createdAt)
	if err != nil || (ok && id.String() <= last.ID) {
		// a fresh millisecond always sorts after the last id
		createdAt = createdAt.Add(time.Millisecond)
		id, err = s.ids.next(createdAt)
	}
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, "failed to generate message id", err)
	}
	return id.String(), createdAt, nil
}

func (s *Service) notifyMentions(ctx context.Context, room repository.Room, msg repository.Message) {
	if len(msg.Mentions) == 0 {
		return
	}
	preview := sanitize.Truncate(msg.Content, mentionPreviewLength)
	roomID := room.ID
	for _, subscriberID := range msg.Mentions {
		s.publish(ctx, realtime.Notification{
			ID:        uuid.New(),
			Type:      realtime.NotificationMention,
			Title:     "You were mentioned",
			Body:      preview,
			ActorID:   msg.SenderID,
			LeadID:    room.LeadID,
			RoomID:    &roomID,
			MessageID: msg.ID,
			Mentions:  msg.Mentions,
		}, realtime.ToSubscribers(subscriberID))

		if s.bus != nil {
			s.bus.Publish(ctx, events.SubscriberMentioned{
				BaseEvent:    events.NewBaseEvent(),
				RoomID:       room.ID,
				RoomName:     room.Name,
				MessageID:    msg.ID,
				SenderID:     msg.SenderID,
				SubscriberID: subscriberID,
				Preview:      preview,
			})
		}
	}
}

// EditMessage replaces the content of the sender's own message. The id
// and position in the room stay the same.
func (s *Service) EditMessage(ctx context.Context, actorID string, roomID uuid.UUID, messageID string, req transport.EditMessageRequest) (transport.MessageResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.MessageResponse{}, err
	}
	content, err := cleanContent(req.Content)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	msg, err := s.ownMessage(ctx, actorID, roomID, messageID)
	if err != nil {
		return transport.MessageResponse{}, err
	}
	if msg.IsDeleted() {
		return transport.MessageResponse{}, apperr.Conflict("message was deleted")
	}
	if msg.Content == content {
		return toMessageResponse(msg, nil), nil
	}

	editedAt := s.now().UTC()
	msg.Content = content
	msg.EditedAt = &editedAt
	if err := s.repo.UpdateMessage(ctx, msg); err != nil {
		return transport.MessageResponse{}, s.storeError("chat.update_message", err)
	}
	s.publish(ctx, messageEvent(realtime.MessageEdited, msg), realtime.ToRoom(roomID))
	return toMessageResponse(msg, nil), nil
}

// DeleteMessage soft-deletes the sender's own message. Deleting twice is
// a no-op.
func (s *Service) DeleteMessage(ctx context.Context, actorID string, roomID uuid.UUID, messageID string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	msg, err := s.ownMessage(ctx, actorID, roomID, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted() {
		return nil
	}

	deletedAt := s.now().UTC()
	msg.DeletedAt = &deletedAt
	if err := s.repo.UpdateMessage(ctx, msg); err != nil {
		return s.storeError("chat.delete_message", err)
	}
	s.publish(ctx, messageEvent(realtime.MessageDeleted, msg), realtime.ToRoom(roomID))
	return nil
}

func (s *Service) ownMessage(ctx context.Context, actorID string, roomID uuid.UUID, messageID string) (repository.Message, error) {
	if _, err := s.memberRoom(ctx, actorID, roomID); err != nil {
		return repository.Message{}, err
	}
	msg, err := s.repo.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return repository.Message{}, s.storeError("chat.get_message", err)
	}
	if msg.SenderID != actorID {
		return repository.Message{}, apperr.Forbidden("only the sender can change a message")
	}
	return msg, nil
}

// ListMessages pages through a room in (createdAt, id) order. Clients
// re-fetch from their last seen id after a reconnect.
func (s *Service) ListMessages(ctx context.Context, actorID string, roomID uuid.UUID, req transport.ListMessagesRequest) (transport.MessageListResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.MessageListResponse{}, err
	}
	if _, err := s.memberRoom(ctx, actorID, roomID); err != nil {
		return transport.MessageListResponse{}, err
	}

	params := repository.ListMessagesParams{RoomID: roomID, AfterID: req.After, Limit: req.Limit}.Normalize()
	messages, err := s.repo.ListMessages(ctx, params)
	if err != nil {
		return transport.MessageListResponse{}, s.storeError("chat.list_messages", err)
	}
	cursors, err := s.repo.ListReadCursors(ctx, roomID)
	if err != nil {
		return transport.MessageListResponse{}, s.storeError("chat.list_read_cursors", err)
	}

	resp := transport.MessageListResponse{Items: make([]transport.MessageResponse, 0, len(messages))}
	for _, msg := range messages {
		resp.Items = append(resp.Items, toMessageResponse(msg, cursors))
	}
	if len(messages) == params.Limit {
		resp.NextAfter = messages[len(messages)-1].ID
	}
	return resp, nil
}

// SetTyping tells the other room members that the actor started or
// stopped typing. Nothing is stored; clients expire the indicator.
func (s *Service) SetTyping(ctx context.Context, actorID string, roomID uuid.UUID, isTyping bool) error {
	if _, err := s.memberRoom(ctx, actorID, roomID); err != nil {
		return err
	}
	s.publish(ctx, realtime.Typing{
		RoomID:       roomID,
		SubscriberID: actorID,
		IsTyping:     isTyping,
	}, realtime.ToRoom(roomID, actorID))
	return nil
}

// MarkRead moves the actor's read cursor to the room's latest message.
// The cursor never moves backward.
func (s *Service) MarkRead(ctx context.Context, actorID string, roomID uuid.UUID) (transport.ReadCursorResponse, error) {
	if _, err := s.memberRoom(ctx, actorID, roomID); err != nil {
		return transport.ReadCursorResponse{}, err
	}
	resp := transport.ReadCursorResponse{RoomID: roomID, SubscriberID: actorID}

	last, ok, err := s.repo.LastMessage(ctx, roomID)
	if err != nil {
		return transport.ReadCursorResponse{}, s.storeError("chat.last_message", err)
	}
	if !ok {
		return resp, nil
	}
	cursor, err := s.repo.AdvanceReadCursor(ctx, repository.ReadCursor{
		RoomID:       roomID,
		SubscriberID: actorID,
		MessageID:    last.ID,
		UpdatedAt:    s.now().UTC(),
	})
	if err != nil {
		return transport.ReadCursorResponse{}, s.storeError("chat.advance_read_cursor", err)
	}
	resp.MessageID = cursor.MessageID
	resp.UpdatedAt = &cursor.UpdatedAt
	return resp, nil
}

func withoutSubscriber(ids []string, subscriberID string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != subscriberID {
			out = append(out, id)
		}
	}
	return out
}
