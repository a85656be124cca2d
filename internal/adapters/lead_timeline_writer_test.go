package adapters

import (
	"context"
	"testing"

	"solar_portal_backend/internal/chat/domain"
	chatrepo "solar_portal_backend/internal/chat/repository"
	chatservice "solar_portal_backend/internal/chat/service"
	chattransport "solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/internal/events"
	leadsdomain "solar_portal_backend/internal/leads/domain"
	leadsrepo "solar_portal_backend/internal/leads/repository"
	leadsservice "solar_portal_backend/internal/leads/service"
	leadstransport "solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

func TestChatMessagesLandOnLeadTimeline(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	bus := events.NewInMemoryBus(log)
	val := validator.New()

	leads := leadsservice.New(leadsrepo.NewMemory(), bus, val, log)
	hub := realtime.NewHub(realtime.NewRegistry(log), log)
	store := chatrepo.NewMemory()
	hub.SetMembershipResolver(store)
	chat := chatservice.New(store, hub, bus, val, log, chatservice.WithLeadTimeline(NewLeadTimelineWriter(leads)))

	agent := leadsdomain.Actor{ID: "agent-7", Roles: []string{"agent"}}
	manager := leadsdomain.Actor{ID: "manager-1", Roles: []string{leadsdomain.RoleManager}}
	lead, err := leads.Create(ctx, agent, leadstransport.CreateLeadRequest{Name: "De Vries", Source: leadsdomain.SourcePhone})
	if err != nil {
		t.Fatalf("Create lead: %v", err)
	}

	room, err := chat.CreateRoom(ctx, agent.ID, chattransport.CreateRoomRequest{Type: domain.RoomProject, LeadID: &lead.ID})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	msg, err := chat.PostMessage(ctx, agent.ID, room.ID, chattransport.PostMessageRequest{Content: "Called, sending proposal"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	trail, err := leads.ListEvents(ctx, agent, lead.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	last := trail[len(trail)-1]
	if last.Type != leadsdomain.EventMessageSent || last.ActorID != agent.ID || last.Metadata["messageId"] != msg.ID {
		t.Fatalf("expected message_sent for %s, got %+v", msg.ID, last)
	}

	if err := leads.SoftDelete(ctx, manager, lead.ID, "duplicate"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	_, err = chat.CreateRoom(ctx, agent.ID, chattransport.CreateRoomRequest{Type: domain.RoomProject, LeadID: &lead.ID})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("rooms cannot link to deleted leads, got %v", err)
	}
}
