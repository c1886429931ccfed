package items

import (
	"context"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

// Store is the persistence surface the service needs; Repo is the Postgres
// implementation.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]Item, int64, error)
	Get(ctx context.Context, id uuid.UUID) (Item, error)
	Create(ctx context.Context, in ItemInput) (Item, error)
	Update(ctx context.Context, id uuid.UUID, in ItemInput) (Item, error)
	SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// SnapshotInvalidator drops the cached availability snapshot after stock
// mutations so carts validate against fresh numbers.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service validates catalogue mutations and keeps the availability cache
// coherent.
type Service struct {
	Store     Store
	Validate  *validator.Validate
	Snapshots SnapshotInvalidator
	Log       zerolog.Logger
}

func (s *Service) check(in any) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(in); err != nil {
		return common.ValidationError(err.Error())
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.Snapshots != nil {
		s.Snapshots.Invalidate(ctx)
	}
}

// List returns catalogue items. Hidden items are only included on request,
// which handlers restrict to admins.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Item, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	return s.Store.List(ctx, f)
}

// Get returns one item; hidden items are withheld unless includeHidden.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeHidden bool) (Item, error) {
	it, err := s.Store.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !it.Visible && !includeHidden {
		return Item{}, common.NotFoundError("item")
	}
	return it, nil
}

// Create validates and inserts a new item.
func (s *Service) Create(ctx context.Context, in ItemInput) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Item{}, err
	}
	it, err := s.Store.Create(ctx, in)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	s.Log.Info().Str("item_id", it.ID.String()).Str("name", it.Name).Msg("item created")
	return it, nil
}

// Update validates and replaces an item.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in ItemInput) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Item{}, err
	}
	it, err := s.Store.Update(ctx, id, in)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return it, nil
}

// SetVisibility shows or hides an item from the public catalogue.
func (s *Service) SetVisibility(ctx context.Context, id uuid.UUID, visible bool) (Item, error) {
	it, err := s.Store.SetVisibility(ctx, id, visible)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return it, nil
}

// Delete removes an item from the catalogue.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.Store.ListCategories(ctx)
}

// CreateCategory validates and inserts a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Category{}, err
	}
	return s.Store.CreateCategory(ctx, in)
}

// UpdateCategory validates and replaces a category.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Category{}, err
	}
	return s.Store.UpdateCategory(ctx, id, in)
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.Store.DeleteCategory(ctx, id)
}

// Line resolves an item into a cart line, satisfying the cart package's
// LineSource. Hidden items cannot be added to a cart.
func (s *Service) Line(ctx context.Context, itemID uuid.UUID) (cart.Line, error) {
	it, err := s.Get(ctx, itemID, false)
	if err != nil {
		return cart.Line{}, err
	}
	if it.Quantity <= 0 {
		return cart.Line{}, common.ValidationError(fmt.Sprintf("%s has no bookable stock", it.Name))
	}
	return cart.Line{
		ItemID:    it.ID,
		ItemName:  it.Name,
		ImagePath: it.ImagePath,
		Location:  it.Location,
	}, nil
}
