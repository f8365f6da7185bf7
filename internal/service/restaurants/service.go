// Package restaurants serves restaurant listings with their menus, reviews
// and specials.
package restaurants

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	PerPage        = 10
	ReviewsPerPage = 10

	restaurantNotFound = "Restaurant not found"
	notOwner           = "You are not authorized to manage this restaurant"
	logosDir           = "restaurant_logos"
	coversDir          = "restaurant_covers"
)

type Service struct {
	appCtx      *app.AppContext
	restaurants *repository.RestaurantRepository
	menu        *repository.MenuItemRepository
	reviews     *repository.ReviewRepository
	specials    *repository.SpecialRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		restaurants: repository.NewRestaurantRepository(appCtx.DB),
		menu:        repository.NewMenuItemRepository(appCtx.DB),
		reviews:     repository.NewReviewRepository(appCtx.DB),
		specials:    repository.NewSpecialRepository(appCtx.DB),
	}
}

// Restaurant is a restaurant with blob URLs and its rating aggregate. The
// relation fields are only set on Show.
type Restaurant struct {
	db.Restaurant
	LogoURL       *string   `json:"logo_url"`
	CoverPhotoURL *string   `json:"cover_photo_url"`
	AverageRating float64   `json:"average_rating"`
	ReviewsCount  int64     `json:"reviews_count"`
	MenuItems     []MenuItem `json:"menu_items,omitempty"`
	Specials      []Special  `json:"specials,omitempty"`
	Reviews       []Review   `json:"reviews,omitempty"`
}

// Ref is the short restaurant header nested lists are returned under.
type Ref struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func (s *Service) restaurantView(r db.Restaurant, stats repository.RatingStats) *Restaurant {
	out := &Restaurant{
		LogoURL:       storage.URLPtr(s.appCtx.Storage, r.Logo),
		CoverPhotoURL: storage.URLPtr(s.appCtx.Storage, r.CoverPhoto),
		AverageRating: stats.AverageRating,
		ReviewsCount:  stats.ReviewsCount,
	}
	for _, m := range r.MenuItems {
		out.MenuItems = append(out.MenuItems, s.menuItemView(m))
	}
	for _, sp := range r.Specials {
		out.Specials = append(out.Specials, s.specialView(sp))
	}
	for _, rev := range r.Reviews {
		out.Reviews = append(out.Reviews, s.reviewView(rev))
	}
	r.MenuItems, r.Specials, r.Reviews = nil, nil, nil
	out.Restaurant = r
	return out
}

// List pages through restaurants, optionally filtered by cuisine and price.
func (s *Service) List(ctx context.Context, f repository.RestaurantFilter, page int) (pagination.Page[*Restaurant], error) {
	rows, err := s.restaurants.List(ctx, f, pagination.Params{Page: page, PerPage: PerPage})
	if err != nil {
		return pagination.Page[*Restaurant]{}, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(rows.Items))
	for _, r := range rows.Items {
		ids = append(ids, r.ID)
	}
	stats, err := s.restaurants.Ratings(ctx, ids)
	if err != nil {
		return pagination.Page[*Restaurant]{}, svcErr.Map(err)
	}
	return pagination.Map(rows, func(r db.Restaurant) *Restaurant {
		return s.restaurantView(r, stats[r.ID])
	}), nil
}

// Input is the editable part of a restaurant. Updates pre-fill it from the
// stored row.
type Input struct {
	Name         string         `json:"name" validate:"required,max=255"`
	Description  string         `json:"description" validate:"required"`
	Address      string         `json:"address" validate:"required"`
	Latitude     *float64       `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64       `json:"longitude" validate:"omitempty,longitude"`
	Phone        string         `json:"phone" validate:"required,max=20"`
	Email        string         `json:"email" validate:"required,email,max=255"`
	Website      string         `json:"website" validate:"omitempty,url,max=255"`
	CuisineType  string         `json:"cuisine_type" validate:"required,max=100"`
	PriceRange   string         `json:"price_range" validate:"required,oneof=$ $$ $$$ $$$$"`
	OpeningHours map[string]any `json:"opening_hours"`
	IsActive     bool           `json:"is_active"`
}

func inputFrom(r *db.Restaurant) Input {
	return Input{
		Name:         r.Name,
		Description:  r.Description,
		Address:      r.Address,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Phone:        r.Phone,
		Email:        r.Email,
		Website:      r.Website,
		CuisineType:  r.CuisineType,
		PriceRange:   r.PriceRange,
		OpeningHours: r.OpeningHours,
		IsActive:     r.IsActive,
	}
}

func apply(r *db.Restaurant, in Input) {
	r.Name = in.Name
	r.Description = in.Description
	r.Address = in.Address
	r.Latitude = in.Latitude
	r.Longitude = in.Longitude
	r.Phone = in.Phone
	r.Email = in.Email
	r.Website = in.Website
	r.CuisineType = in.CuisineType
	r.PriceRange = in.PriceRange
	r.OpeningHours = datatypes.JSONMap(in.OpeningHours)
	r.IsActive = in.IsActive
}

// Images are the optional logo and cover uploads of a create or update.
type Images struct {
	Logo       *storage.File
	CoverPhoto *storage.File
}

func (im Images) check(errs validation.Errors) {
	if im.Logo != nil {
		storage.ImageRule.Check(errs, "logo", *im.Logo)
	}
	if im.CoverPhoto != nil {
		storage.ImageRule.Check(errs, "cover_photo", *im.CoverPhoto)
	}
}

// saveImages stores whichever images were uploaded and returns their paths, empty
// for the ones that were not.
func (s *Service) saveImages(ctx context.Context, im Images) (logo, cover string, err error) {
	if im.Logo != nil {
		if logo, err = storage.Save(ctx, s.appCtx.Storage, logosDir, *im.Logo); err != nil {
			return "", "", err
		}
	}
	if im.CoverPhoto != nil {
		if cover, err = storage.Save(ctx, s.appCtx.Storage, coversDir, *im.CoverPhoto); err != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, logo)
			return "", "", err
		}
	}
	return logo, cover, nil
}

// Create registers a restaurant owned by the caller.
func (s *Service) Create(ctx context.Context, id auth.Identity, in Input, im Images) (*Restaurant, error) {
	in.IsActive = true
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	im.check(errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	logo, cover, err := s.saveImages(ctx, im)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	r := db.Restaurant{OwnerID: id.UserID, SubscriptionStatus: db.SubscriptionFree}
	apply(&r, in)
	if logo != "" {
		r.Logo = &logo
	}
	if cover != "" {
		r.CoverPhoto = &cover
	}
	if err := s.restaurants.Create(ctx, &r); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, logo, cover)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("restaurant created", "restaurant_id", r.ID, "owner_id", id.UserID)
	return s.restaurantView(r, repository.RatingStats{}), nil
}

// Show returns a restaurant with its menu, specials and reviews.
func (s *Service) Show(ctx context.Context, restaurantID uint64) (*Restaurant, error) {
	r, err := s.restaurants.FindDetailed(ctx, restaurantID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, restaurantNotFound))
	}
	stats, err := s.restaurants.Ratings(ctx, []uint64{r.ID})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.restaurantView(*r, stats[r.ID]), nil
}

// Update applies a partial update. New images replace the old blobs.
func (s *Service) Update(ctx context.Context, id auth.Identity, restaurantID uint64, patch validation.Patch, im Images) (*Restaurant, error) {
	r, err := s.owned(ctx, id, restaurantID)
	if err != nil {
		return nil, err
	}

	in := inputFrom(r)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	im.check(errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	logo, cover, err := s.saveImages(ctx, im)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	var replaced []string
	apply(r, in)
	if logo != "" {
		if r.Logo != nil {
			replaced = append(replaced, *r.Logo)
		}
		r.Logo = &logo
	}
	if cover != "" {
		if r.CoverPhoto != nil {
			replaced = append(replaced, *r.CoverPhoto)
		}
		r.CoverPhoto = &cover
	}
	if err := s.restaurants.Save(ctx, r); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, logo, cover)
		return nil, svcErr.Map(err)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, replaced...)
	return s.Show(ctx, r.ID)
}

// Delete removes a restaurant with its menu, reviews, specials and every blob
// they reference. Owners and admins only.
func (s *Service) Delete(ctx context.Context, id auth.Identity, restaurantID uint64) error {
	r, err := s.owned(ctx, id, restaurantID)
	if err != nil {
		return err
	}

	var blobs []string
	if r.Logo != nil {
		blobs = append(blobs, *r.Logo)
	}
	if r.CoverPhoto != nil {
		blobs = append(blobs, *r.CoverPhoto)
	}
	for _, list := range []func(context.Context, uint64) ([]string, error){s.menu.Images, s.specials.Images, s.reviews.Photos} {
		paths, err := list(ctx, r.ID)
		if err != nil {
			return svcErr.Map(err)
		}
		blobs = append(blobs, paths...)
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.restaurants.WithTx(tx).DeleteCascade(ctx, r.ID)
	})
	if err != nil {
		s.appCtx.Logger.Error("delete restaurant failed", "restaurant_id", r.ID, "err", err)
		return svcErr.Map(err)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, blobs...)
	return nil
}

func (s *Service) find(ctx context.Context, restaurantID uint64) (*db.Restaurant, error) {
	r, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, restaurantNotFound))
	}
	return r, nil
}

// owned loads a restaurant the caller may manage.
func (s *Service) owned(ctx context.Context, id auth.Identity, restaurantID uint64) (*db.Restaurant, error) {
	r, err := s.find(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !id.CanModify(r.OwnerID) {
		return nil, svcErr.Forbidden(notOwner)
	}
	return r, nil
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
