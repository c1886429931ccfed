package items

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Repo persists categories and items in Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

const itemColumns = `id, category_id, name, description, image_path, location, quantity, visible, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Description, &it.ImagePath,
		&it.Location, &it.Quantity, &it.Visible, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// List returns items matching the filter plus the total match count.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Item, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if !f.IncludeHidden {
		where = append(where, "visible")
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM items WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("items: count: %w", err)
	}

	args = append(args, f.PerPage, common.Offset(f.Page, f.PerPage))
	query := fmt.Sprintf(`SELECT %s FROM items WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		itemColumns, cond, len(args)-1, len(args))
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("items: list: %w", err)
	}
	defer rows.Close()

	out := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("items: scan: %w", err)
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// Get returns one item by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFoundError("item")
		}
		return Item{}, fmt.Errorf("items: get: %w", err)
	}
	return it, nil
}

// Create inserts a new item.
func (r *Repo) Create(ctx context.Context, in ItemInput) (Item, error) {
	visible := true
	if in.Visible != nil {
		visible = *in.Visible
	}
	images := in.ImagePath
	if images == nil {
		images = []string{}
	}
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO items (category_id, name, description, image_path, location, quantity, visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		in.CategoryID, in.Name, in.Description, images, in.Location, in.Quantity, visible)
	it, err := scanItem(row)
	if err != nil {
		return Item{}, fmt.Errorf("items: create: %w", err)
	}
	return it, nil
}

// Update replaces an item's editable fields.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, in ItemInput) (Item, error) {
	visible := true
	if in.Visible != nil {
		visible = *in.Visible
	}
	images := in.ImagePath
	if images == nil {
		images = []string{}
	}
	row := r.Pool.QueryRow(ctx, `
		UPDATE items
		   SET category_id = $2, name = $3, description = $4, image_path = $5,
		       location = $6, quantity = $7, visible = $8, updated_at = now()
		 WHERE id = $1
		RETURNING `+itemColumns,
		id, in.CategoryID, in.Name, in.Description, images, in.Location, in.Quantity, visible)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFoundError("item")
		}
		return Item{}, fmt.Errorf("items: update: %w", err)
	}
	return it, nil
}

// SetVisibility toggles whether an item is offered for booking.
func (r *Repo) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (Item, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE items SET visible = $2, updated_at = now() WHERE id = $1
		RETURNING `+itemColumns, id, visible)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFoundError("item")
		}
		return Item{}, fmt.Errorf("items: set visibility: %w", err)
	}
	return it, nil
}

// Delete removes an item. Items referenced by reservations are protected by
// the foreign key and surface a conflict.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("items: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("item")
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, description, image_path, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("items: list categories: %w", err)
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImagePath, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("items: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repo) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	var c Category
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO categories (name, description, image_path)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, image_path, created_at`,
		in.Name, in.Description, in.ImagePath).
		Scan(&c.ID, &c.Name, &c.Description, &c.ImagePath, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, common.NewAppError("CATEGORY_NAME_TAKEN", "a category with that name already exists", http.StatusConflict, err)
		}
		return Category{}, fmt.Errorf("items: create category: %w", err)
	}
	return c, nil
}

// UpdateCategory replaces a category's fields.
func (r *Repo) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (Category, error) {
	var c Category
	err := r.Pool.QueryRow(ctx, `
		UPDATE categories SET name = $2, description = $3, image_path = $4
		 WHERE id = $1
		RETURNING id, name, description, image_path, created_at`,
		id, in.Name, in.Description, in.ImagePath).
		Scan(&c.ID, &c.Name, &c.Description, &c.ImagePath, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, common.NotFoundError("category")
		}
		if isUniqueViolation(err) {
			return Category{}, common.NewAppError("CATEGORY_NAME_TAKEN", "a category with that name already exists", http.StatusConflict, err)
		}
		return Category{}, fmt.Errorf("items: update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category; items keep existing with a null
// category.
func (r *Repo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("items: delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("category")
	}
	return nil
}
