package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solar_portal_backend/internal/chat/domain"
)

// Repository is the Postgres-backed chat store.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = `r.id, r.type, r.name, r.lead_id, r.created_by, r.created_at,
	COALESCE(ARRAY(SELECT m.subscriber_id FROM chat_room_members m WHERE m.room_id = r.id ORDER BY m.joined_at, m.subscriber_id), '{}')`

func scanRoom(row pgx.Row) (Room, error) {
	var room Room
	err := row.Scan(&room.ID, &room.Type, &room.Name, &room.LeadID, &room.CreatedBy, &room.CreatedAt, &room.MemberIDs)
	return room, err
}

const messageColumns = `id, room_id, sender_id, content, mentions, created_at, edited_at, deleted_at`

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.Mentions, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt)
	return msg, err
}

func (r *Repository) CreateRoom(ctx context.Context, room Room) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_rooms (id, type, name, lead_id, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, room.ID, room.Type, room.Name, room.LeadID, room.CreatedBy, room.CreatedAt); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		return insertMembers(ctx, tx, room.ID, room.MemberIDs, room.CreatedAt)
	})
}

func insertMembers(ctx context.Context, tx pgx.Tx, roomID uuid.UUID, subscriberIDs []string, joinedAt time.Time) error {
	batch := &pgx.Batch{}
	for _, id := range subscriberIDs {
		batch.Queue(`
			INSERT INTO chat_room_members (room_id, subscriber_id, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (room_id, subscriber_id) DO NOTHING
		`, roomID, id, joinedAt)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert room members: %w", err)
	}
	return nil
}

func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms r WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	return room, err
}

func (r *Repository) ListRoomsForMember(ctx context.Context, subscriberID string, roomType *domain.RoomType) ([]Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms r
		JOIN chat_room_members me ON me.room_id = r.id AND me.subscriber_id = $1
		WHERE ($2::text IS NULL OR r.type = $2)
		ORDER BY r.created_at DESC, r.id DESC
	`
	var typeArg *string
	if roomType != nil {
		value := string(*roomType)
		typeArg = &value
	}
	rows, err := r.pool.Query(ctx, query, subscriberID, typeArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *Repository) AddMembers(ctx context.Context, roomID uuid.UUID, subscriberIDs []string, joinedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRoomNotFound
		}
		return insertMembers(ctx, tx, roomID, subscriberIDs, joinedAt)
	})
}

func (r *Repository) RemoveMember(ctx context.Context, roomID uuid.UUID, subscriberID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM chat_room_members WHERE room_id = $1 AND subscriber_id = $2`, roomID, subscriberID)
		if err != nil {
			return fmt.Errorf("remove room member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotMember
		}
		_, err = tx.Exec(ctx, `DELETE FROM chat_read_cursors WHERE room_id = $1 AND subscriber_id = $2`, roomID, subscriberID)
		return err
	})
}

func (r *Repository) RoomMembers(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.MemberIDs, nil
}

func (r *Repository) InsertMessage(ctx context.Context, msg Message) error {
	mentions := msg.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Content, mentions, msg.CreatedAt, msg.EditedAt, msg.DeletedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *Repository) GetMessage(ctx context.Context, roomID uuid.UUID, id string) (Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM chat_messages WHERE room_id = $1 AND id = $2
	`, roomID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (r *Repository) UpdateMessage(ctx context.Context, msg Message) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_messages SET content = $3, edited_at = $4, deleted_at = $5
		WHERE room_id = $1 AND id = $2
	`, msg.RoomID, msg.ID, msg.Content, msg.EditedAt, msg.DeletedAt)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repository) LastMessage(ctx context.Context, roomID uuid.UUID) (Message, bool, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM chat_messages WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, roomID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

func (r *Repository) ListMessages(ctx context.Context, params ListMessagesParams) ([]Message, error) {
	params = params.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE room_id = $1 AND id > $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, params.RoomID, params.AfterID, params.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *Repository) AdvanceReadCursor(ctx context.Context, cursor ReadCursor) (ReadCursor, error) {
	var stored ReadCursor
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_read_cursors (room_id, subscriber_id, message_id, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id, subscriber_id) DO UPDATE
			SET message_id = EXCLUDED.message_id, updated_at = EXCLUDED.updated_at
			WHERE chat_read_cursors.message_id < EXCLUDED.message_id
		`, cursor.RoomID, cursor.SubscriberID, cursor.MessageID, cursor.UpdatedAt); err != nil {
			return fmt.Errorf("advance read cursor: %w", err)
		}
		return tx.QueryRow(ctx, `
			SELECT room_id, subscriber_id, message_id, updated_at
			FROM chat_read_cursors WHERE room_id = $1 AND subscriber_id = $2
		`, cursor.RoomID, cursor.SubscriberID).Scan(&stored.RoomID, &stored.SubscriberID, &stored.MessageID, &stored.UpdatedAt)
	})
	return stored, err
}

func (r *Repository) ListReadCursors(ctx context.Context, roomID uuid.UUID) ([]ReadCursor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room_id, subscriber_id, message_id, updated_at
		FROM chat_read_cursors WHERE room_id = $1
		ORDER BY subscriber_id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursors := make([]ReadCursor, 0)
	for rows.Next() {
		var c ReadCursor
		if err := rows.Scan(&c.RoomID, &c.SubscriberID, &c.MessageID, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

var _ ChatRepository = (*Repository)(nil)
