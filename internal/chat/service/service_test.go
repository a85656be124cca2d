package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/domain"
	"solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/internal/events"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

type recordedMessage struct {
	senderID  string
	leadID    uuid.UUID
	roomID    uuid.UUID
	messageID string
}

// fakeTimeline stands in for the lead service.
type fakeTimeline struct {
	mu       sync.Mutex
	active   map[uuid.UUID]bool
	recorded []recordedMessage
}

func (f *fakeTimeline) EnsureActive(_ context.Context, leadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active[leadID] {
		return apperr.NotFound("lead not found")
	}
	return nil
}

func (f *fakeTimeline) RecordMessage(_ context.Context, senderID string, leadID, roomID uuid.UUID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, recordedMessage{senderID, leadID, roomID, messageID})
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc      *Service
	store    *repository.Memory
	registry *realtime.Registry
	bus      *events.InMemoryBus
	leads    *fakeTimeline
	clock    *fakeClock

	mu        sync.Mutex
	mentioned []events.SubscriberMentioned
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	f := &fixture{
		store:    repository.NewMemory(),
		registry: realtime.NewRegistry(log),
		bus:      events.NewInMemoryBus(log),
		leads:    &fakeTimeline{active: map[uuid.UUID]bool{}},
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	hub := realtime.NewHub(f.registry, log)
	hub.SetMembershipResolver(f.store)
	f.bus.Subscribe(events.SubscriberMentioned{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.mentioned = append(f.mentioned, e.(events.SubscriberMentioned))
		return nil
	}))
	f.svc = New(f.store, hub, f.bus, validator.New(), log, WithClock(f.clock.Now), WithLeadTimeline(f.leads))
	return f
}

func (f *fixture) connect(t *testing.T, subscriberID string) *realtime.ChannelSink {
	t.Helper()
	sink := realtime.NewChannelSink(64)
	if _, err := f.registry.Register(subscriberID, sink); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return sink
}

func (f *fixture) room(t *testing.T, roomType domain.RoomType, creator string, members ...string) transport.RoomResponse {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), creator, transport.CreateRoomRequest{Type: roomType, MemberIDs: members})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func (f *fixture) post(t *testing.T, sender string, roomID uuid.UUID, content string, mentions ...string) transport.MessageResponse {
	t.Helper()
	msg, err := f.svc.PostMessage(context.Background(), sender, roomID, transport.PostMessageRequest{Content: content, Mentions: mentions})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	return msg
}

func drain(sink *realtime.ChannelSink) []realtime.Event {
	var out []realtime.Event
	for {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func kinds(evs []realtime.Event) []realtime.Kind {
	out := make([]realtime.Kind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestCreateRoomMembershipRules(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name        string
		roomType    domain.RoomType
		members     []string
		wantErr     bool
		wantMembers int
	}{
		{"direct pair", domain.RoomDirect, []string{bob}, false, 2},
		{"direct pair with creator listed", domain.RoomDirect, []string{alice, bob, " bob "}, false, 2},
		{"direct with creator only", domain.RoomDirect, []string{alice}, true, 0},
		{"direct with three people", domain.RoomDirect, []string{bob, carol}, true, 0},
		{"group needs members", domain.RoomGroup, nil, true, 0},
		{"channel with members", domain.RoomChannel, []string{bob, carol}, false, 3},
		{"project may start empty", domain.RoomProject, nil, false, 1},
		{"support may start empty", domain.RoomSupport, []string{}, false, 1},
		{"unknown type", domain.RoomType("broadcast"), []string{bob}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := f.svc.CreateRoom(context.Background(), alice, transport.CreateRoomRequest{Type: tt.roomType, MemberIDs: tt.members})
			if tt.wantErr {
				requireKind(t, err, apperr.KindValidation)
				return
			}
			if err != nil {
				t.Fatalf("CreateRoom: %v", err)
			}
			if len(room.MemberIDs) != tt.wantMembers || room.MemberIDs[0] != alice {
				t.Fatalf("unexpected members %v", room.MemberIDs)
			}
			if room.CreatedBy != alice {
				t.Fatalf("expected creator alice, got %q", room.CreatedBy)
			}
		})
	}
}

func TestCreateRoomChecksLeadAssociation(t *testing.T) {
	f := newFixture(t)
	leadID := uuid.New()

	_, err := f.svc.CreateRoom(context.Background(), alice, transport.CreateRoomRequest{Type: domain.RoomProject, LeadID: &leadID})
	requireKind(t, err, apperr.KindNotFound)

	f.leads.active[leadID] = true
	room, err := f.svc.CreateRoom(context.Background(), alice, transport.CreateRoomRequest{Type: domain.RoomProject, LeadID: &leadID})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.LeadID == nil || *room.LeadID != leadID {
		t.Fatalf("room not linked to lead: %+v", room)
	}

	unlinked := New(f.store, nil, nil, validator.New(), logger.Discard())
	_, err = unlinked.CreateRoom(context.Background(), alice, transport.CreateRoomRequest{Type: domain.RoomProject, LeadID: &leadID})
	requireKind(t, err, apperr.KindValidation)
}

func TestMentionReachesNonMemberAndRoomGetsMessage(t *testing.T) {
	f := newFixture(t)
	leadID := uuid.New()
	f.leads.active[leadID] = true
	room, err := f.svc.CreateRoom(context.Background(), alice, transport.CreateRoomRequest{
		Type: domain.RoomGroup, MemberIDs: []string{bob}, LeadID: &leadID,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	aliceSink, bobSink, carolSink := f.connect(t, alice), f.connect(t, bob), f.connect(t, carol)

	msg := f.post(t, alice, room.ID, "<p>Can you check the quote, @carol?</p>", carol, alice, carol)
	if msg.Content != "Can you check the quote, @carol?" {
		t.Fatalf("content not sanitized: %q", msg.Content)
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0] != carol {
		t.Fatalf("mentions should be deduplicated without the sender, got %v", msg.Mentions)
	}

	for name, sink := range map[string]*realtime.ChannelSink{alice: aliceSink, bob: bobSink} {
		got := drain(sink)
		if len(got) != 1 || got[0].Kind != realtime.KindMessage {
			t.Fatalf("%s expected one message event, got %v", name, kinds(got))
		}
		payload := got[0].Payload.(realtime.MessageEvent)
		if payload.Action != realtime.MessageCreated || payload.MessageID != msg.ID || payload.RoomID != room.ID {
			t.Fatalf("%s got unexpected payload %+v", name, payload)
		}
	}

	got := drain(carolSink)
	if len(got) != 1 || got[0].Kind != realtime.KindNotification {
		t.Fatalf("carol expected only a notification, got %v", kinds(got))
	}
	note := got[0].Payload.(realtime.Notification)
	if note.Type != realtime.NotificationMention || note.MessageID != msg.ID || note.ActorID != alice {
		t.Fatalf("unexpected notification %+v", note)
	}
	if note.RoomID == nil || *note.RoomID != room.ID || note.LeadID == nil || *note.LeadID != leadID {
		t.Fatalf("notification should point at room and lead: %+v", note)
	}
	if len(note.Mentions) != 1 || note.Mentions[0] != carol {
		t.Fatalf("notification should carry the mentions, got %v", note.Mentions)
	}

	f.bus.Wait()
	f.mu.Lock()
	mentioned := f.mentioned
	f.mu.Unlock()
	if len(mentioned) != 1 || mentioned[0].SubscriberID != carol || mentioned[0].MessageID != msg.ID {
		t.Fatalf("expected one SubscriberMentioned for carol, got %+v", mentioned)
	}

	if len(f.leads.recorded) != 1 {
		t.Fatalf("expected the message on the lead timeline, got %d", len(f.leads.recorded))
	}
	rec := f.leads.recorded[0]
	if rec.leadID != leadID || rec.roomID != room.ID || rec.messageID != msg.ID || rec.senderID != alice {
		t.Fatalf("unexpected timeline record %+v", rec)
	}
}

func TestPostMessageRequiresMembership(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)

	_, err := f.svc.PostMessage(context.Background(), carol, room.ID, transport.PostMessageRequest{Content: "hello"})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.PostMessage(context.Background(), alice, uuid.New(), transport.PostMessageRequest{Content: "hello"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestPostMessageContentRules(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", "hello", false},
		{"markup only", "<br/><i></i>", true},
		{"blank", "   ", true},
		{"at the limit", strings.Repeat("é", domain.MaxContentLength), false},
		{"over the limit", strings.Repeat("a", domain.MaxContentLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PostMessage(context.Background(), alice, room.ID, transport.PostMessageRequest{Content: tt.content})
			if tt.wantErr {
				requireKind(t, err, apperr.KindValidation)
				return
			}
			if err != nil {
				t.Fatalf("PostMessage: %v", err)
			}
		})
	}
}

func TestMessagesStayOrderedWhenTheClockStepsBack(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)
	base := f.clock.Now()

	var posted []transport.MessageResponse
	for i, offset := range []time.Duration{0, 0, -time.Second, 0, 2 * time.Millisecond} {
		f.clock.Set(base.Add(offset))
		posted = append(posted, f.post(t, alice, room.ID, "message "+string(rune('a'+i))))
	}

	for i := 1; i < len(posted); i++ {
		prev, cur := posted[i-1], posted[i]
		if cur.ID <= prev.ID {
			t.Fatalf("id %d (%s) does not sort after %s", i, cur.ID, prev.ID)
		}
		if cur.CreatedAt.Before(prev.CreatedAt) {
			t.Fatalf("createdAt %d went backwards: %s < %s", i, cur.CreatedAt, prev.CreatedAt)
		}
	}

	listed, err := f.svc.ListMessages(context.Background(), bob, room.ID, transport.ListMessagesRequest{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(listed.Items) != len(posted) {
		t.Fatalf("expected %d messages, got %d", len(posted), len(listed.Items))
	}
	for i := range posted {
		if listed.Items[i].ID != posted[i].ID {
			t.Fatalf("position %d: expected %s, got %s", i, posted[i].ID, listed.Items[i].ID)
		}
	}
}

func TestConcurrentPostsKeepOneOrder(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)
	sink := f.connect(t, bob)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			if _, err := f.svc.PostMessage(context.Background(), sender, room.ID, transport.PostMessageRequest{Content: "hi"}); err != nil {
				t.Errorf("PostMessage: %v", err)
			}
		}([]string{alice, bob}[i%2])
	}
	wg.Wait()

	delivered := drain(sink)
	if len(delivered) != 20 {
		t.Fatalf("expected 20 deliveries, got %d", len(delivered))
	}
	for i := 1; i < len(delivered); i++ {
		prev := delivered[i-1].Payload.(realtime.MessageEvent).MessageID
		cur := delivered[i].Payload.(realtime.MessageEvent).MessageID
		if cur <= prev {
			t.Fatalf("delivery %d out of order: %s after %s", i, cur, prev)
		}
	}
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)
	msg := f.post(t, alice, room.ID, "first draft")
	bobSink := f.connect(t, bob)

	_, err := f.svc.EditMessage(context.Background(), bob, room.ID, msg.ID, transport.EditMessageRequest{Content: "hijack"})
	requireKind(t, err, apperr.KindForbidden)
	requireKind(t, f.svc.DeleteMessage(context.Background(), bob, room.ID, msg.ID), apperr.KindForbidden)

	f.clock.Set(f.clock.Now().Add(time.Minute))
	edited, err := f.svc.EditMessage(context.Background(), alice, room.ID, msg.ID, transport.EditMessageRequest{Content: "final"})
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if edited.ID != msg.ID || edited.Content != "final" || edited.EditedAt == nil || !edited.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("edit should keep id and position: %+v", edited)
	}

	if err := f.svc.DeleteMessage(context.Background(), alice, room.ID, msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := f.svc.DeleteMessage(context.Background(), alice, room.ID, msg.ID); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	_, err = f.svc.EditMessage(context.Background(), alice, room.ID, msg.ID, transport.EditMessageRequest{Content: "again"})
	requireKind(t, err, apperr.KindConflict)

	got := drain(bobSink)
	if len(got) != 2 {
		t.Fatalf("expected edited and deleted events, got %v", kinds(got))
	}
	if a := got[0].Payload.(realtime.MessageEvent).Action; a != realtime.MessageEdited {
		t.Fatalf("expected edited, got %s", a)
	}
	deleted := got[1].Payload.(realtime.MessageEvent)
	if deleted.Action != realtime.MessageDeleted || deleted.Content != "" {
		t.Fatalf("deleted event should carry no content: %+v", deleted)
	}

	listed, err := f.svc.ListMessages(context.Background(), bob, room.ID, transport.ListMessagesRequest{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(listed.Items) != 1 || listed.Items[0].DeletedAt == nil || listed.Items[0].Content != "" {
		t.Fatalf("deleted message should stay listed without content: %+v", listed.Items)
	}
}

func TestTypingSkipsTheTypist(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)
	aliceSink, bobSink, carolSink := f.connect(t, alice), f.connect(t, bob), f.connect(t, carol)

	if err := f.svc.SetTyping(context.Background(), alice, room.ID, true); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}
	if got := drain(aliceSink); len(got) != 0 {
		t.Fatalf("typist should not receive their own indicator, got %v", kinds(got))
	}
	if got := drain(carolSink); len(got) != 0 {
		t.Fatalf("non-member should not receive typing, got %v", kinds(got))
	}
	got := drain(bobSink)
	if len(got) != 1 || got[0].Kind != realtime.KindTyping {
		t.Fatalf("expected typing for bob, got %v", kinds(got))
	}
	if typing := got[0].Payload.(realtime.Typing); !typing.IsTyping || typing.SubscriberID != alice {
		t.Fatalf("unexpected typing payload %+v", typing)
	}

	requireKind(t, f.svc.SetTyping(context.Background(), carol, room.ID, true), apperr.KindNotFound)
}

func TestMarkReadIsMonotonic(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)

	empty, err := f.svc.MarkRead(context.Background(), bob, room.ID)
	if err != nil {
		t.Fatalf("MarkRead on empty room: %v", err)
	}
	if empty.MessageID != "" {
		t.Fatalf("empty room should leave no cursor, got %q", empty.MessageID)
	}

	first := f.post(t, alice, room.ID, "one")
	second := f.post(t, alice, room.ID, "two")
	cursor, err := f.svc.MarkRead(context.Background(), bob, room.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if cursor.MessageID != second.ID {
		t.Fatalf("cursor should be at the latest message, got %q", cursor.MessageID)
	}

	// an older position is never written back
	stored, err := f.store.AdvanceReadCursor(context.Background(), repository.ReadCursor{
		RoomID: room.ID, SubscriberID: bob, MessageID: first.ID, UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AdvanceReadCursor: %v", err)
	}
	if stored.MessageID != second.ID {
		t.Fatalf("cursor moved backward to %q", stored.MessageID)
	}

	third := f.post(t, alice, room.ID, "three")
	listed, err := f.svc.ListMessages(context.Background(), alice, room.ID, transport.ListMessagesRequest{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	readBy := map[string]int{}
	for _, item := range listed.Items {
		readBy[item.ID] = len(item.ReadBy)
	}
	if readBy[first.ID] != 1 || readBy[second.ID] != 1 || readBy[third.ID] != 0 {
		t.Fatalf("unexpected read receipts %v", readBy)
	}
}

func TestListMessagesPagesForward(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, domain.RoomGroup, alice, bob)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.post(t, alice, room.ID, "m").ID)
	}

	page, err := f.svc.ListMessages(context.Background(), bob, room.ID, transport.ListMessagesRequest{Limit: 2})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Items) != 2 || page.NextAfter != ids[1] {
		t.Fatalf("unexpected first page: %d items, next %q", len(page.Items), page.NextAfter)
	}

	rest, err := f.svc.ListMessages(context.Background(), bob, room.ID, transport.ListMessagesRequest{After: page.NextAfter, Limit: 10})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(rest.Items) != 3 || rest.Items[0].ID != ids[2] || rest.NextAfter != "" {
		t.Fatalf("unexpected second page: %+v", rest)
	}

	_, err = f.svc.ListMessages(context.Background(), carol, room.ID, transport.ListMessagesRequest{})
	requireKind(t, err, apperr.KindNotFound)
}

func TestMembershipChanges(t *testing.T) {
	f := newFixture(t)
	direct := f.room(t, domain.RoomDirect, alice, bob)
	group := f.room(t, domain.RoomGroup, alice, bob)

	_, err := f.svc.AddMembers(context.Background(), alice, direct.ID, transport.AddMembersRequest{MemberIDs: []string{carol}})
	requireKind(t, err, apperr.KindConflict)

	updated, err := f.svc.AddMembers(context.Background(), bob, group.ID, transport.AddMembersRequest{MemberIDs: []string{carol, alice}})
	if err != nil {
		t.Fatalf("AddMembers: %v", err)
	}
	if len(updated.MemberIDs) != 3 {
		t.Fatalf("expected 3 members, got %v", updated.MemberIDs)
	}

	requireKind(t, f.svc.RemoveMember(context.Background(), bob, group.ID, carol), apperr.KindForbidden)
	if err := f.svc.RemoveMember(context.Background(), carol, group.ID, carol); err != nil {
		t.Fatalf("leaving a room: %v", err)
	}
	if err := f.svc.RemoveMember(context.Background(), alice, group.ID, bob); err != nil {
		t.Fatalf("creator removing a member: %v", err)
	}
	requireKind(t, f.svc.RemoveMember(context.Background(), alice, group.ID, bob), apperr.KindNotFound)

	_, err = f.svc.GetRoom(context.Background(), bob, group.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestListRoomsFiltersByType(t *testing.T) {
	f := newFixture(t)
	f.room(t, domain.RoomDirect, alice, bob)
	f.room(t, domain.RoomGroup, alice, bob, carol)
	f.room(t, domain.RoomProject, carol)

	all, err := f.svc.ListRooms(context.Background(), bob, transport.ListRoomsRequest{})
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("bob should see 2 rooms, got %d", len(all.Items))
	}

	direct, err := f.svc.ListRooms(context.Background(), bob, transport.ListRoomsRequest{Type: string(domain.RoomDirect)})
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(direct.Items) != 1 || direct.Items[0].Type != domain.RoomDirect {
		t.Fatalf("expected one direct room, got %+v", direct.Items)
	}

	_, err = f.svc.ListRooms(context.Background(), bob, transport.ListRoomsRequest{Type: "broadcast"})
	requireKind(t, err, apperr.KindValidation)
}
