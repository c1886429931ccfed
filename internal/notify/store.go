// Package notify turns domain events into persisted user notifications and
// outbound email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Notification is one in-app message for a user.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists notifications in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Insert writes a notification row.
func (s *Store) Insert(ctx context.Context, n Notification) (Notification, error) {
	meta := n.Metadata
	if len(meta) == 0 {
		meta = []byte("{}")
	}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, body, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		n.UserID, n.Type, n.Title, n.Body, meta).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert: %w", err)
	}
	n.Metadata = meta
	return n, nil
}

// ListForUser returns the user's notifications, newest first, plus the
// unread count.
func (s *Store) ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Notification, int64, error) {
	var unread int64
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).
		Scan(&unread)
	if err != nil {
		return nil, 0, fmt.Errorf("notify: count unread: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, type, title, body, metadata, read_at, created_at
		  FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, perPage, common.Offset(page, perPage))
	if err != nil {
		return nil, 0, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Metadata, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("notify: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, unread, rows.Err()
}

// MarkRead marks one of the user's notifications as read.
func (s *Store) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("notification")
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Store) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		 WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("notify: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
