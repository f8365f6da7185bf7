package restaurants

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	specialNotFound  = "Special offer not found"
	specialImagesDir = "special_offers"
)

type Special struct {
	db.RestaurantSpecial
	ImageURL *string `json:"image_url"`
}

func (s *Service) specialView(sp db.RestaurantSpecial) Special {
	sp.Restaurant = nil
	return Special{RestaurantSpecial: sp, ImageURL: storage.URLPtr(s.appCtx.Storage, sp.Image)}
}

type SpecialList struct {
	Restaurant Ref       `json:"restaurant"`
	Specials   []Special `json:"specials"`
}

// Specials lists a restaurant's specials by start date.
func (s *Service) Specials(ctx context.Context, restaurantID uint64) (*SpecialList, error) {
	r, err := s.find(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.specials.ListByRestaurant(ctx, r.ID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := &SpecialList{Restaurant: Ref{ID: r.ID, Name: r.Name}, Specials: make([]Special, 0, len(rows))}
	for _, sp := range rows {
		out.Specials = append(out.Specials, s.specialView(sp))
	}
	return out, nil
}

// SpecialInput is pre-filled from the stored special on update, so the
// discount rule sees the merged discount type and value.
type SpecialInput struct {
	Title           string           `json:"title" validate:"required,max=255"`
	Description     string           `json:"description" validate:"required"`
	DiscountType    string           `json:"discount_type" validate:"required,oneof=percentage fixed_amount buy_one_get_one free_item"`
	DiscountValue   *decimal.Decimal `json:"discount_value"`
	StartDate       string           `json:"start_date" validate:"required,date"`
	EndDate         string           `json:"end_date" validate:"required,date"`
	TermsConditions string           `json:"terms_conditions"`
	IsActive        *bool            `json:"is_active"`
	DaysValid       []string         `json:"days_valid" validate:"omitempty,dive,weekday"`
}

func (in *SpecialInput) Rules(errs validation.Errors) {
	valueless := in.DiscountType == db.DiscountBuyOneGetOne || in.DiscountType == db.DiscountFreeItem
	switch {
	case in.DiscountValue == nil && !valueless:
		errs.Add("discount_value", "The discount value field is required unless discount type is in buy_one_get_one, free_item.")
	case in.DiscountValue != nil && in.DiscountValue.IsNegative():
		errs.Add("discount_value", "The discount value field must be at least 0.")
	}
	if !errs.Has("start_date") && !errs.Has("end_date") && in.EndDate < in.StartDate {
		errs.Add("end_date", "The end date field must be a date after or equal to start date.")
	}
}

func specialInputFrom(sp *db.RestaurantSpecial) SpecialInput {
	active := sp.IsActive
	in := SpecialInput{
		Title:           sp.Title,
		Description:     sp.Description,
		DiscountType:    sp.DiscountType,
		StartDate:       time.Time(sp.StartDate).Format(validation.DateLayout),
		EndDate:         time.Time(sp.EndDate).Format(validation.DateLayout),
		TermsConditions: sp.TermsConditions,
		IsActive:        &active,
		DaysValid:       sp.DaysValid,
	}
	if sp.DiscountValue.Valid {
		v := sp.DiscountValue.Decimal
		in.DiscountValue = &v
	}
	return in
}

func applySpecial(sp *db.RestaurantSpecial, in SpecialInput) {
	sp.Title = in.Title
	sp.Description = in.Description
	sp.DiscountType = in.DiscountType
	sp.DiscountValue = decimal.NullDecimal{}
	if in.DiscountValue != nil {
		sp.DiscountValue = decimal.NewNullDecimal(in.DiscountValue.Round(2))
	}
	sp.StartDate = datatypes.Date(validation.ParseDate(in.StartDate))
	sp.EndDate = datatypes.Date(validation.ParseDate(in.EndDate))
	sp.TermsConditions = in.TermsConditions
	sp.IsActive = in.IsActive == nil || *in.IsActive
	sp.DaysValid = nil
	for _, d := range in.DaysValid {
		sp.DaysValid = append(sp.DaysValid, strings.ToLower(d))
	}
}

// CreateSpecial adds a promotion to a restaurant the caller manages.
func (s *Service) CreateSpecial(ctx context.Context, id auth.Identity, restaurantID uint64, in SpecialInput, image *storage.File) (*Special, error) {
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

	sp := db.RestaurantSpecial{RestaurantID: r.ID}
	applySpecial(&sp, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, specialImagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		sp.Image = &path
	}
	if err := s.specials.Create(ctx, &sp); err != nil {
		if sp.Image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *sp.Image)
		}
		return nil, svcErr.Map(err)
	}
	out := s.specialView(sp)
	return &out, nil
}

func (s *Service) ShowSpecial(ctx context.Context, restaurantID, specialID uint64) (*Special, error) {
	sp, err := s.specials.FindInRestaurant(ctx, restaurantID, specialID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, specialNotFound))
	}
	out := s.specialView(*sp)
	return &out, nil
}

// UpdateSpecial applies a partial update; a new image replaces the old blob.
func (s *Service) UpdateSpecial(ctx context.Context, id auth.Identity, restaurantID, specialID uint64, patch validation.Patch, image *storage.File) (*Special, error) {
	if _, err := s.owned(ctx, id, restaurantID); err != nil {
		return nil, err
	}
	sp, err := s.specials.FindInRestaurant(ctx, restaurantID, specialID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, specialNotFound))
	}

	in := specialInputFrom(sp)
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

	old := sp.Image
	applySpecial(sp, in)
	if image != nil {
		path, err := storage.Save(ctx, s.appCtx.Storage, specialImagesDir, *image)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
		sp.Image = &path
	}
	if err := s.specials.Save(ctx, sp); err != nil {
		if image != nil {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *sp.Image)
		}
		return nil, svcErr.Map(err)
	}
	if image != nil && old != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *old)
	}
	out := s.specialView(*sp)
	return &out, nil
}

func (s *Service) DeleteSpecial(ctx context.Context, id auth.Identity, restaurantID, specialID uint64) error {
	if _, err := s.owned(ctx, id, restaurantID); err != nil {
		return err
	}
	sp, err := s.specials.FindInRestaurant(ctx, restaurantID, specialID)
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, specialNotFound))
	}
	if err := s.specials.Delete(ctx, sp); err != nil {
		return svcErr.Map(err)
	}
	if sp.Image != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, *sp.Image)
	}
	return nil
}

// Card is the restaurant summary attached to an active special.
type Card struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Logo    *string `json:"logo"`
	LogoURL *string `json:"logo_url"`
}

type ActiveSpecial struct {
	Special
	Restaurant *Card `json:"restaurant"`
}

// ActiveSpecials returns switched-on specials valid today, across every
// restaurant. An empty days_valid means every weekday.
func (s *Service) ActiveSpecials(ctx context.Context) ([]ActiveSpecial, error) {
	now := s.appCtx.Now()
	rows, err := s.specials.Active(ctx, now)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	today := strings.ToLower(now.Weekday().String())

	out := make([]ActiveSpecial, 0, len(rows))
	for _, sp := range rows {
		if len(sp.DaysValid) > 0 && !slices.Contains(sp.DaysValid, today) {
			continue
		}
		item := ActiveSpecial{Special: s.specialView(sp)}
		if r := sp.Restaurant; r != nil {
			item.Restaurant = &Card{
				ID:      r.ID,
				Name:    r.Name,
				Address: r.Address,
				Logo:    r.Logo,
				LogoURL: storage.URLPtr(s.appCtx.Storage, r.Logo),
			}
		}
		out = append(out, item)
	}
	return out, nil
}
