package availability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

const snapshotCacheKey = "availability:snapshot"

// Source fetches availability snapshots, caching them briefly in Redis so a
// burst of cart operations does not hammer Postgres. The cache is
// invalidated whenever a booking mutates reservation state.
type Source struct {
	Pool  *pgxpool.Pool
	Cache *redis.Client
	TTL   time.Duration
	Now   func() time.Time
}

func (s *Source) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Load returns the current snapshot of bookable items and future active
// reservations.
func (s *Source) Load(ctx context.Context) (Snapshot, error) {
	if s == nil || s.Pool == nil {
		return Snapshot{}, errors.New("availability: source not configured")
	}
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}
	snap, err := s.fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s.toCache(ctx, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot; the next Load hits Postgres.
func (s *Source) Invalidate(ctx context.Context) {
	if s == nil || s.Cache == nil {
		return
	}
	_ = s.Cache.Del(ctx, snapshotCacheKey).Err()
}

func (s *Source) fetch(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Items: map[uuid.UUID]ItemStock{}}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, quantity, visible
		FROM items`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var stock ItemStock
		if err := rows.Scan(&stock.ItemID, &stock.Name, &stock.Quantity, &stock.Visible); err != nil {
			return Snapshot{}, err
		}
		snap.Items[stock.ItemID] = stock
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	resRows, err := s.Pool.Query(ctx, `
		SELECT id, booking_id, item_id, start_date, end_date, quantity, is_active
		FROM item_reservations
		WHERE is_active AND end_date >= $1`, today)
	if err != nil {
		return Snapshot{}, err
	}
	defer resRows.Close()
	for resRows.Next() {
		var (
			res        Reservation
			start, end time.Time
		)
		if err := resRows.Scan(&res.ID, &res.BookingID, &res.ItemID, &start, &end, &res.Quantity, &res.IsActive); err != nil {
			return Snapshot{}, err
		}
		r, err := daterange.New(start, end)
		if err != nil {
			return Snapshot{}, err
		}
		res.Range = r
		snap.Reservations = append(snap.Reservations, res)
	}
	if err := resRows.Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

type cachedSnapshot struct {
	Items        []ItemStock   `json:"items"`
	Reservations []Reservation `json:"reservations"`
}

func (s *Source) fromCache(ctx context.Context) (Snapshot, bool) {
	if s.Cache == nil || s.TTL <= 0 {
		return Snapshot{}, false
	}
	data, err := s.Cache.Get(ctx, snapshotCacheKey).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return Snapshot{}, false
	}
	snap := Snapshot{Items: make(map[uuid.UUID]ItemStock, len(cached.Items)), Reservations: cached.Reservations}
	for _, stock := range cached.Items {
		snap.Items[stock.ItemID] = stock
	}
	return snap, true
}

func (s *Source) toCache(ctx context.Context, snap Snapshot) {
	if s.Cache == nil || s.TTL <= 0 {
		return
	}
	cached := cachedSnapshot{Reservations: snap.Reservations, Items: make([]ItemStock, 0, len(snap.Items))}
	for _, stock := range snap.Items {
		cached.Items = append(cached.Items, stock)
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	_ = s.Cache.Set(ctx, snapshotCacheKey, data, s.TTL).Err()
}
