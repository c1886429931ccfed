// Package audit persists a trail of admin actions to the system_logs table.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Entry is one recorded action.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Recorder writes audit entries. Record never fails the calling request:
// a broken audit trail is logged, not surfaced to the user.
type Recorder struct {
	Pool *pgxpool.Pool
	Log  zerolog.Logger
}

// Record stores one entry. Metadata is marshalled to JSONB; a nil value
// becomes an empty object.
func (r *Recorder) Record(ctx context.Context, actorID uuid.UUID, action, targetType, targetID string, metadata any) {
	if r == nil || r.Pool == nil {
		return
	}
	encoded := []byte("{}")
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			encoded = data
		}
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO system_logs (actor_id, action, target_type, target_id, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		actorID, action, targetType, targetID, encoded)
	if err != nil {
		r.Log.Error().Err(err).Str("action", action).Msg("audit insert failed")
	}
}

// List returns entries newest first, optionally filtered by actor.
func (r *Recorder) List(ctx context.Context, actorID *uuid.UUID, limit, offset int) ([]Entry, error) {
	query := `SELECT id, actor_id, action, target_type, target_id, metadata, created_at
	          FROM system_logs`
	args := []any{}
	if actorID != nil {
		query += ` WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, *actorID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
