package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solar_portal_backend/internal/leads/domain"
)

// Repository is the Postgres-backed lead store.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, email, phone, source, stage, status, score, score_override, category,
	priority, priority_override, assignee_id, page_views, form_submits, pricing_page_views, demo_requests,
	email_opens, created_at, updated_at, last_activity_at, deleted_at, deleted_by, deletion_reason,
	restored_at, restored_by`

func leadArgs(l Lead) []interface{} {
	return []interface{}{
		l.ID, l.Name, l.Email, l.Phone, l.Source, l.Stage, l.Status, l.Score, l.ScoreOverride, l.Category,
		l.Priority, l.PriorityOverride, l.AssigneeID, l.Activity.PageViews, l.Activity.FormSubmits,
		l.Activity.PricingPageViews, l.Activity.DemoRequests, l.Activity.EmailOpens, l.CreatedAt, l.UpdatedAt,
		l.LastActivityAt, l.DeletedAt, l.DeletedBy, l.DeletionReason, l.RestoredAt, l.RestoredBy,
	}
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.Source, &l.Stage, &l.Status, &l.Score, &l.ScoreOverride, &l.Category,
		&l.Priority, &l.PriorityOverride, &l.AssigneeID, &l.Activity.PageViews, &l.Activity.FormSubmits,
		&l.Activity.PricingPageViews, &l.Activity.DemoRequests, &l.Activity.EmailOpens, &l.CreatedAt, &l.UpdatedAt,
		&l.LastActivityAt, &l.DeletedAt, &l.DeletedBy, &l.DeletionReason, &l.RestoredAt, &l.RestoredBy,
	)
	return l, err
}

func (r *Repository) Create(ctx context.Context, lead Lead, event LeadEvent) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO leads (`+leadColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		`, leadArgs(lead)...); err != nil {
			return fmt.Errorf("insert lead: %w", err)
		}
		return appendEvent(ctx, tx, event)
	})
}

func (r *Repository) Save(ctx context.Context, lead Lead, event LeadEvent) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leads SET
				name = $2, email = $3, phone = $4, source = $5, stage = $6, status = $7, score = $8,
				score_override = $9, category = $10, priority = $11, priority_override = $12, assignee_id = $13,
				page_views = $14, form_submits = $15, pricing_page_views = $16, demo_requests = $17,
				email_opens = $18, created_at = $19, updated_at = $20, last_activity_at = $21, deleted_at = $22,
				deleted_by = $23, deletion_reason = $24, restored_at = $25, restored_by = $26
			WHERE id = $1
		`, leadArgs(lead)...)
		if err != nil {
			return fmt.Errorf("update lead: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return appendEvent(ctx, tx, event)
	})
}

func appendEvent(ctx context.Context, tx pgx.Tx, event LeadEvent) error {
	if event.ID == uuid.Nil || event.Type == "" {
		return ErrEventRequired
	}
	meta := event.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO lead_events (id, lead_id, type, actor_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.LeadID, event.Type, event.ActorID, event.Description, metaJSON, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append lead event: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	params = params.Normalize()
	whereClause, args, argIdx := buildLeadListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildLeadListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"TRUE"}
	if !params.IncludeDeleted {
		whereClauses = append(whereClauses, "deleted_at IS NULL")
	}
	args := []interface{}{}
	argIdx := 1

	addEquals := func(column string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Status != nil {
		addEquals("status", *params.Status)
	}
	if params.Stage != nil {
		addEquals("stage", *params.Stage)
	}
	if params.Source != nil {
		addEquals("source", *params.Source)
	}
	if params.AssigneeID != nil {
		addEquals("assignee_id", *params.AssigneeID)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", argIdx, argIdx, argIdx,
		))
		args = append(args, "%"+search+"%")
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func (r *Repository) ListEvents(ctx context.Context, leadID uuid.UUID) ([]LeadEvent, error) {
	return r.queryEvents(ctx, `
		SELECT id, lead_id, type, actor_id, description, metadata, created_at
		FROM lead_events WHERE lead_id = $1
		ORDER BY seq ASC
	`, leadID)
}

// ListEventsByType returns the newest events of one type first.
func (r *Repository) ListEventsByType(ctx context.Context, eventType domain.EventType, limit int) ([]LeadEvent, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return r.queryEvents(ctx, `
		SELECT id, lead_id, type, actor_id, description, metadata, created_at
		FROM lead_events WHERE type = $1
		ORDER BY seq DESC
		LIMIT $2
	`, eventType, limit)
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]LeadEvent, 0)
	for rows.Next() {
		var (
			ev       LeadEvent
			metaJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.LeadID, &ev.Type, &ev.ActorID, &ev.Description, &metaJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

var _ LeadRepository = (*Repository)(nil)
