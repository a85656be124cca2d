package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubscriberNotFound = errors.New("subscriber not found")

// Subscriber is the addressable part of a user account.
type Subscriber struct {
	ID          string
	Email       string
	DisplayName string
}

// SubscriberDirectory resolves subscriber ids to contact details.
type SubscriberDirectory interface {
	GetSubscriber(ctx context.Context, subscriberID string) (Subscriber, error)
}

// PostgresDirectory reads the users table owned by the authentication service.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) GetSubscriber(ctx context.Context, subscriberID string) (Subscriber, error) {
	id, err := uuid.Parse(strings.TrimSpace(subscriberID))
	if err != nil {
		return Subscriber{}, ErrSubscriberNotFound
	}

	var sub Subscriber
	err = d.pool.QueryRow(ctx, `
		SELECT id::text, email, COALESCE(display_name, '')
		FROM users
		WHERE id = $1
	`, id).Scan(&sub.ID, &sub.Email, &sub.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscriber{}, ErrSubscriberNotFound
	}
	if err != nil {
		return Subscriber{}, err
	}
	return sub, nil
}
