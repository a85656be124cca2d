package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
)

func newLead(name string, createdAt time.Time) Lead {
	return Lead{
		ID:        uuid.New(),
		Name:      name,
		Source:    domain.SourceSiteForm,
		Stage:     domain.StageNew,
		Status:    domain.StatusOpen,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func eventFor(lead Lead, t domain.EventType) LeadEvent {
	return LeadEvent{ID: uuid.New(), LeadID: lead.ID, Type: t, CreatedAt: time.Now()}
}

func TestMemoryRejectsWriteWithoutEvent(t *testing.T) {
	store := NewMemory()
	lead := newLead("Ann", time.Now())
	if err := store.Create(context.Background(), lead, LeadEvent{}); !errors.Is(err, ErrEventRequired) {
		t.Fatalf("expected ErrEventRequired, got %v", err)
	}
	if _, err := store.GetByID(context.Background(), lead.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lead must not be stored without its event, got %v", err)
	}
}

func TestMemoryEventFailureRollsBackSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	lead := newLead("Ann", time.Now())
	if err := store.Create(ctx, lead, eventFor(lead, domain.EventCreated)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("disk full")
	store.FailEventAppends(boom)
	changed := lead
	changed.Stage = domain.StageQualified
	if err := store.Save(ctx, changed, eventFor(lead, domain.EventStageChanged)); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	got, _ := store.GetByID(ctx, lead.ID)
	if got.Stage != domain.StageNew {
		t.Fatalf("stage must be unchanged after failed save, got %s", got.Stage)
	}
	events, _ := store.ListEvents(ctx, lead.ID)
	if len(events) != 1 {
		t.Fatalf("expected only the created event, got %d", len(events))
	}
}

func TestMemoryListFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	email := "Jan@Example.com"
	agent := "agent-1"
	leads := []Lead{
		newLead("Ann", base),
		newLead("Bob", base.Add(time.Minute)),
		newLead("Jan", base.Add(2*time.Minute)),
	}
	leads[1].AssigneeID = &agent
	leads[2].Email = &email
	deletedAt := base.Add(time.Hour)
	leads[0].DeletedAt = &deletedAt
	for _, l := range leads {
		if err := store.Create(ctx, l, eventFor(l, domain.EventCreated)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tests := []struct {
		name   string
		params ListParams
		want   []string
		total  int
	}{
		{name: "default excludes deleted, newest first", params: ListParams{}, want: []string{"Jan", "Bob"}, total: 2},
		{name: "include deleted", params: ListParams{IncludeDeleted: true}, want: []string{"Jan", "Bob", "Ann"}, total: 3},
		{name: "assignee", params: ListParams{AssigneeID: &agent}, want: []string{"Bob"}, total: 1},
		{name: "search email case-insensitive", params: ListParams{Search: "jan@example"}, want: []string{"Jan"}, total: 1},
		{name: "paging", params: ListParams{Limit: 1, Offset: 1}, want: []string{"Bob"}, total: 2},
		{name: "offset past end", params: ListParams{Offset: 10}, want: []string{}, total: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := store.List(ctx, tt.params)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if total != tt.total {
				t.Fatalf("expected total %d, got %d", tt.total, total)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d leads, got %d", len(tt.want), len(got))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
				}
			}
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	agent := "agent-1"
	lead := newLead("Ann", time.Now())
	lead.AssigneeID = &agent
	_ = store.Create(ctx, lead, eventFor(lead, domain.EventCreated))

	got, _ := store.GetByID(ctx, lead.ID)
	*got.AssigneeID = "someone-else"

	again, _ := store.GetByID(ctx, lead.ID)
	if *again.AssigneeID != "agent-1" {
		t.Fatalf("store leaked a shared pointer: %s", *again.AssigneeID)
	}
}

func TestListParamsNormalize(t *testing.T) {
	if got := (ListParams{}).Normalize().Limit; got != DefaultListLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
	if got := (ListParams{Limit: 500}).Normalize().Limit; got != MaxListLimit {
		t.Fatalf("expected max limit, got %d", got)
	}
}
