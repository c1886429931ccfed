package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists events in the domain_events table.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertEvent writes one event row and returns it.
func (s *PGStore) InsertEvent(ctx context.Context, topic string, payload []byte) (Event, error) {
	var ev Event
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, payload)
		VALUES ($1, $2)
		RETURNING id, topic, payload, created_at`,
		topic, payload).
		Scan(&ev.ID, &ev.Topic, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("events: insert: %w", err)
	}
	return ev, nil
}
