package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
)

// Memory is an in-process lead store. A lead write and its event append
// happen under one lock, so they are atomic like the Postgres transaction.
type Memory struct {
	mu         sync.RWMutex
	leads      map[uuid.UUID]Lead
	events     []LeadEvent
	failEvents error
}

func NewMemory() *Memory {
	return &Memory{leads: make(map[uuid.UUID]Lead)}
}

// FailEventAppends makes every following write fail with err before
// anything is stored. Pass nil to clear.
func (m *Memory) FailEventAppends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failEvents = err
}

func (m *Memory) Create(_ context.Context, lead Lead, event LeadEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkEvent(event); err != nil {
		return err
	}
	m.leads[lead.ID] = lead.Clone()
	m.events = append(m.events, cloneEvent(event))
	return nil
}

func (m *Memory) Save(_ context.Context, lead Lead, event LeadEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	if err := m.checkEvent(event); err != nil {
		return err
	}
	m.leads[lead.ID] = lead.Clone()
	m.events = append(m.events, cloneEvent(event))
	return nil
}

func (m *Memory) checkEvent(event LeadEvent) error {
	if event.ID == uuid.Nil || event.Type == "" {
		return ErrEventRequired
	}
	return m.failEvents
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, ok := m.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return lead.Clone(), nil
}

func (m *Memory) List(_ context.Context, params ListParams) ([]Lead, int, error) {
	params = params.Normalize()
	search := strings.ToLower(strings.TrimSpace(params.Search))

	m.mu.RLock()
	matched := make([]Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		if matchesList(lead, params, search) {
			matched = append(matched, lead.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	if params.Offset >= total {
		return []Lead{}, total, nil
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return matched[params.Offset:end], total, nil
}

func matchesList(lead Lead, params ListParams, search string) bool {
	if lead.IsDeleted() && !params.IncludeDeleted {
		return false
	}
	if params.Status != nil && lead.Status != *params.Status {
		return false
	}
	if params.Stage != nil && lead.Stage != *params.Stage {
		return false
	}
	if params.Source != nil && lead.Source != *params.Source {
		return false
	}
	if params.AssigneeID != nil && (lead.AssigneeID == nil || *lead.AssigneeID != *params.AssigneeID) {
		return false
	}
	if search == "" {
		return true
	}
	return containsFold(lead.Name, search) || containsFold(deref(lead.Email), search) || containsFold(deref(lead.Phone), search)
}

func (m *Memory) ListEvents(_ context.Context, leadID uuid.UUID) ([]LeadEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LeadEvent, 0)
	for _, ev := range m.events {
		if ev.LeadID == leadID {
			out = append(out, cloneEvent(ev))
		}
	}
	return out, nil
}

func (m *Memory) ListEventsByType(_ context.Context, eventType domain.EventType, limit int) ([]LeadEvent, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LeadEvent, 0)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].Type == eventType {
			out = append(out, cloneEvent(m.events[i]))
		}
	}
	return out, nil
}

func cloneEvent(ev LeadEvent) LeadEvent {
	ev.Metadata = maps.Clone(ev.Metadata)
	return ev
}

func containsFold(value, lowered string) bool {
	return strings.Contains(strings.ToLower(value), lowered)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

var _ LeadRepository = (*Memory)(nil)
