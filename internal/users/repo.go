package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Repo persists user profiles in Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, email, display_name, phone, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Get returns one user by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NotFoundError("user")
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

// Upsert creates the profile row on first contact and refreshes the email
// on subsequent logins. Role and status are never touched by an upsert.
func (r *Repo) Upsert(ctx context.Context, id uuid.UUID, email string) (User, bool, error) {
	var created bool
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = now()
		RETURNING `+userColumns+`, (xmax = 0)`,
		id, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.Role, &u.Status,
		&u.CreatedAt, &u.UpdatedAt, &created); err != nil {
		return User{}, false, fmt.Errorf("users: upsert: %w", err)
	}
	return u, created, nil
}

// UpdateProfile updates self-service fields.
func (r *Repo) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (User, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE users SET display_name = $2, phone = $3, updated_at = now()
		 WHERE id = $1
		RETURNING `+userColumns, id, in.DisplayName, in.Phone)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NotFoundError("user")
		}
		return User{}, fmt.Errorf("users: update profile: %w", err)
	}
	return u, nil
}

// List returns users filtered by status and search text.
func (r *Repo) List(ctx context.Context, status, search string, page, perPage int) ([]User, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR display_name ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	args = append(args, perPage, common.Offset(page, perPage))
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, cond, len(args)-1, len(args))
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// SetRole changes a user's role.
func (r *Repo) SetRole(ctx context.Context, id uuid.UUID, role string) (User, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, role)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NotFoundError("user")
		}
		return User{}, fmt.Errorf("users: set role: %w", err)
	}
	return u, nil
}

// SetStatus changes a user's account status.
func (r *Repo) SetStatus(ctx context.Context, id uuid.UUID, status string) (User, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE users SET status = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, status)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NotFoundError("user")
		}
		return User{}, fmt.Errorf("users: set status: %w", err)
	}
	return u, nil
}

// AdminIDs returns the ids of every admin and head admin account that can
// act.
func (r *Repo) AdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id FROM users
		 WHERE role IN ($1, $2) AND status IN ($3, $4)`,
		RoleAdmin, RoleHeadAdmin, StatusApproved, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("users: admin ids: %w", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("users: scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// EmailFor returns a user's email address.
func (r *Repo) EmailFor(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	err := r.Pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, id).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NotFoundError("user")
		}
		return "", fmt.Errorf("users: email for: %w", err)
	}
	return email, nil
}
