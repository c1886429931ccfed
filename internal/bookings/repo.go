package bookings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

// ReservationInput is one line to reserve when creating a booking.
type ReservationInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// Repo persists bookings and their reservations in Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

const bookingColumns = `id, user_id, status, start_date, end_date, decided_by, decided_at, created_at, updated_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var (
		b          Booking
		start, end time.Time
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Status, &start, &end, &b.DecidedBy, &b.DecidedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, common.NotFoundError("booking")
		}
		return Booking{}, err
	}
	r, err := daterange.New(start, end)
	if err != nil {
		return Booking{}, err
	}
	b.Range = r
	return b, nil
}

// Create inserts the booking and one active reservation per line in a
// single transaction.
func (r *Repo) Create(ctx context.Context, userID uuid.UUID, rng daterange.Range, lines []ReservationInput) (Booking, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (user_id, status, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+bookingColumns,
		userID, StatusPending, rng.Start, rng.End))
	if err != nil {
		return Booking{}, err
	}
	for _, line := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO item_reservations (booking_id, item_id, start_date, end_date, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			b.ID, line.ItemID, rng.Start, rng.End, line.Quantity)
		if err != nil {
			return Booking{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return r.Get(ctx, b.ID)
}

// Get loads one booking with its reservation lines.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Booking, error) {
	b, err := scanBooking(r.Pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return Booking{}, err
	}
	items, err := r.itemsFor(ctx, []uuid.UUID{id})
	if err != nil {
		return Booking{}, err
	}
	b.Items = items[id]
	if b.Items == nil {
		b.Items = []Item{}
	}
	return b, nil
}

// ListForUser returns a user's bookings, newest first.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Booking, int64, error) {
	return r.list(ctx, `WHERE user_id = $1`, []any{userID}, page, perPage)
}

// List returns bookings for the admin console, optionally filtered by
// status and user.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	where := ``
	args := []any{}
	appendCond := func(cond string, arg any) {
		args = append(args, arg)
		if where == "" {
			where = "WHERE "
		} else {
			where += " AND "
		}
		where += cond + argPlaceholder(len(args))
	}
	if f.Status != "" {
		appendCond("status = ", f.Status)
	}
	if f.UserID != uuid.Nil {
		appendCond("user_id = ", f.UserID)
	}
	return r.list(ctx, where, args, f.Page, f.PerPage)
}

func argPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (r *Repo) list(ctx context.Context, where string, args []any, page, perPage int) ([]Booking, int64, error) {
	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM bookings `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.Pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings `+where+`
		ORDER BY created_at DESC
		LIMIT `+argPlaceholder(len(args)+1)+` OFFSET `+argPlaceholder(len(args)+2),
		append(args, perPage, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Booking, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		b.Items = []Item{}
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		items, err := r.itemsFor(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range out {
			if lines, ok := items[out[i].ID]; ok {
				out[i].Items = lines
			}
		}
	}
	return out, total, nil
}

func (r *Repo) itemsFor(ctx context.Context, bookingIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT ir.booking_id, ir.id, ir.item_id, i.name, ir.quantity, ir.is_active
		FROM item_reservations ir
		JOIN items i ON i.id = ir.item_id
		WHERE ir.booking_id = ANY($1)
		ORDER BY i.name`, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item)
	for rows.Next() {
		var (
			bookingID uuid.UUID
			item      Item
		)
		if err := rows.Scan(&bookingID, &item.ID, &item.ItemID, &item.ItemName, &item.Quantity, &item.IsActive); err != nil {
			return nil, err
		}
		out[bookingID] = append(out[bookingID], item)
	}
	return out, rows.Err()
}

// Decide moves a pending booking to approved or rejected. Rejection
// releases the held reservations. The status guard makes concurrent
// decisions lose cleanly with ErrNoRows.
func (r *Repo) Decide(ctx context.Context, id uuid.UUID, status string, decidedBy uuid.UUID) (Booking, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, decided_by = $3, decided_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+bookingColumns,
		id, status, decidedBy, StatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, common.NewAppError("INVALID_STATE", "booking is no longer pending", 409, nil)
		}
		return Booking{}, err
	}
	if status == StatusRejected {
		if _, err := tx.Exec(ctx,
			`UPDATE item_reservations SET is_active = FALSE WHERE booking_id = $1`, id); err != nil {
			return Booking{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return r.Get(ctx, id)
}

// Cancel moves an open booking to cancelled and releases its reservations.
func (r *Repo) Cancel(ctx context.Context, id uuid.UUID) (Booking, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+bookingColumns,
		id, StatusCancelled, StatusPending, StatusApproved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, common.NewAppError("INVALID_STATE", "booking cannot be cancelled", 409, nil)
		}
		return Booking{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE item_reservations SET is_active = FALSE WHERE booking_id = $1`, id); err != nil {
		return Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return r.Get(ctx, id)
}
