package service

import (
	"slices"

	"solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/internal/realtime"
)

func toRoomResponse(room repository.Room) transport.RoomResponse {
	return transport.RoomResponse{
		ID:        room.ID,
		Type:      room.Type,
		Name:      room.Name,
		LeadID:    room.LeadID,
		CreatedBy: room.CreatedBy,
		MemberIDs: slices.Clone(room.MemberIDs),
		CreatedAt: room.CreatedAt,
	}
}

// toMessageResponse hides the content of deleted messages. A member has
// read a message when their cursor is at it or past it.
func toMessageResponse(msg repository.Message, cursors []repository.ReadCursor) transport.MessageResponse {
	resp := transport.MessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Mentions:  slices.Clone(msg.Mentions),
		CreatedAt: msg.CreatedAt,
		EditedAt:  msg.EditedAt,
		DeletedAt: msg.DeletedAt,
		ReadBy:    []transport.ReadReceipt{},
	}
	if resp.Mentions == nil {
		resp.Mentions = []string{}
	}
	if msg.IsDeleted() {
		resp.Content = ""
	}
	for _, c := range cursors {
		if c.SubscriberID != msg.SenderID && c.MessageID >= msg.ID {
			resp.ReadBy = append(resp.ReadBy, transport.ReadReceipt{SubscriberID: c.SubscriberID, ReadAt: c.UpdatedAt})
		}
	}
	return resp
}

func messageEvent(action realtime.MessageAction, msg repository.Message) realtime.MessageEvent {
	ev := realtime.MessageEvent{
		Action:    action,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Mentions:  slices.Clone(msg.Mentions),
		CreatedAt: msg.CreatedAt,
		EditedAt:  msg.EditedAt,
	}
	if action != realtime.MessageDeleted {
		ev.Content = msg.Content
	}
	return ev
}
