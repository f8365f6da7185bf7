package restaurants

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	menuItemNotFound = "Menu item not found"
	menuImagesDir    = "menu_items"
)

type MenuItem struct {
	db.MenuItem
	ImageURL *string `json:"image_url"`
}

func (s *Service) menuItemView(m db.MenuItem) MenuItem {
	return MenuItem{MenuItem: m, ImageURL: storage.URLPtr(s.appCtx.Storage, m.Image)}
}

type Menu struct {
	Restaurant Ref        `json:"restaurant"`
	MenuItems  []MenuItem `json:"menu_items"`
}

// Menu lists a restaurant's items grouped by category.
func (s *Service) Menu(ctx context.Context, restaurantID uint64) (*Menu, error) {
	r, err := s.find(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	items, err := s.menu.ListByRestaurant(ctx, r.ID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := &Menu{Restaurant: Ref{ID: r.ID, Name: r.Name}, MenuItems: make([]MenuItem, 0, len(items))}
	for _, m := range items {
		out.MenuItems = append(out.MenuItems, s.menuItemView(m))
	}
	return out, nil
}

// MenuItemInput is pre-filled from the stored item on update.
type MenuItemInput struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Category    string           `json:"category" validate:"required,max=100"`
	IsAvailable *bool            `json:"is_available"`
	IsFeatured  bool             `json:"is_featured"`
	DietaryInfo []string         `json:"dietary_info"`
	Ingredients []string         `json:"ingredients"`
	Allergens   []string         `json:"allergens"`
}

func (in *MenuItemInput) Rules(errs validation.Errors) {
	if in.Price != nil && in.Price.IsNegative() {
		errs.Add("price", "The price field must be at least 0.")
	}
}

func menuInputFrom(m *db.MenuItem) MenuItemInput {
	price := m.Price
	available := m.IsAvailable
	return MenuItemInput{
		Name:        m.Name,
		Description: m.Description,
		Price:       &price,
		Category:    m.Category,
		IsAvailable: &available,
		IsFeatured:  m.IsFeatured,
		DietaryInfo: m.DietaryInfo,
		Ingredients: m.Ingredients,
		Allergens:   m.Allergens,
	}
}

func applyMenu(m *db.MenuItem, in MenuItemInput) {
	m.Name = in.Name
	m.Description = in.Description
	m.Price = in.Price.Round(2)
	m.Category = in.Category
	m.IsAvailable = in.IsAvailable == nil || *in.IsAvailable
	m.IsFeatured = in.IsFeatured
	m.DietaryInfo = in.DietaryInfo
	m.Ingredients = in.Ingredients
	m.Allergens = in.Allergens
}

// CreateMenuItem adds an item to a restaurant the caller manages.
func (s *Service) CreateMenuItem(ctx context.Context, id auth.Identity, restaurantID uint64, in MenuItemInput, image *storage.File) (*MenuItem, error) {
	r, err := s.owned(ctx, id, restaurantID)
	if err != nil {
		return nil, err
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if image != nil {
		storage.ImageRule.Check(errs, "image", *image)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	m := db.MenuItem{RestaurantID: r.ID}
	applyMenu(&m, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, menuImagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		m.Image = &path
	}
	if err := s.menu.Create(ctx, &m); err != nil {
		if m.Image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *m.Image)
		}
		return nil, svcErr.Map(err)
	}
	out := s.menuItemView(m)
	return &out, nil
}

func (s *Service) ShowMenuItem(ctx context.Context, restaurantID, itemID uint64) (*MenuItem, error) {
	m, err := s.menu.FindInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, menuItemNotFound))
	}
	out := s.menuItemView(*m)
	return &out, nil
}

// UpdateMenuItem applies a partial update; a new image replaces the old blob.
func (s *Service) UpdateMenuItem(ctx context.Context, id auth.Identity, restaurantID, itemID uint64, patch validation.Patch, image *storage.File) (*MenuItem, error) {
	if _, err := s.owned(ctx, id, restaurantID); err != nil {
		return nil, err
	}
	m, err := s.menu.FindInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, menuItemNotFound))
	}

	in := menuInputFrom(m)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if image != nil {
		storage.ImageRule.Check(errs, "image", *image)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	old := m.Image
	applyMenu(m, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, menuImagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		m.Image = &path
	}
	if err := s.menu.Save(ctx, m); err != nil {
		if image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *m.Image)
		}
		return nil, svcErr.Map(err)
	}
	if image != nil && old != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *old)
	}
	out := s.menuItemView(*m)
	return &out, nil
}

func (s *Service) DeleteMenuItem(ctx context.Context, id auth.Identity, restaurantID, itemID uint64) error {
	if _, err := s.owned(ctx, id, restaurantID); err != nil {
		return err
	}
	m, err := s.menu.FindInRestaurant(ctx, restaurantID, itemID)
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, menuItemNotFound))
	}
	if err := s.menu.Delete(ctx, m); err != nil {
		return svcErr.Map(err)
	}
	if m.Image != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *m.Image)
	}
	return nil
}
