package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

type RestaurantRepository struct {
	crud[db.Restaurant]
}

func NewRestaurantRepository(database *gorm.DB) *RestaurantRepository {
	return &RestaurantRepository{crud[db.Restaurant]{db: database}}
}

func (r *RestaurantRepository) WithTx(tx *gorm.DB) *RestaurantRepository {
	return NewRestaurantRepository(tx)
}

type RestaurantFilter struct {
	CuisineType string
	PriceRange  string
}

func (r *RestaurantRepository) List(ctx context.Context, f RestaurantFilter, p pagination.Params) (pagination.Page[db.Restaurant], error) {
	q := r.db.WithContext(ctx).Model(&db.Restaurant{})
	if f.CuisineType != "" {
		q = q.Where("cuisine_type = ?", f.CuisineType)
	}
	if f.PriceRange != "" {
		q = q.Where("price_range = ?", f.PriceRange)
	}
	return pagination.Paginate[db.Restaurant](q, p, newestFirst)
}

// FindDetailed loads a restaurant with its menu, specials and reviews.
func (r *RestaurantRepository) FindDetailed(ctx context.Context, id uint64) (*db.Restaurant, error) {
	var rest db.Restaurant
	err := r.db.WithContext(ctx).
		Preload("MenuItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Specials", func(tx *gorm.DB) *gorm.DB { return tx.Order("start_date ASC").Order("id ASC") }).
		Preload("Reviews", newestFirst).
		Preload("Reviews.User").
		First(&rest, id).Error
	if err != nil {
		return nil, err
	}
	return &rest, nil
}

// RatingStats is the review aggregate shown next to a restaurant.
type RatingStats struct {
	AverageRating float64
	ReviewsCount  int64
}

// Ratings aggregates reviews per restaurant. Restaurants without reviews are
// absent from the map.
func (r *RestaurantRepository) Ratings(ctx context.Context, ids []uint64) (map[uint64]RatingStats, error) {
	out := make(map[uint64]RatingStats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		RestaurantID uint64
		Avg          float64
		N            int64
	}
	err := r.db.WithContext(ctx).Model(&db.RestaurantReview{}).
		Select("restaurant_id, AVG(rating) AS avg, COUNT(*) AS n").
		Where("restaurant_id IN ?", ids).
		Group("restaurant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.RestaurantID] = RatingStats{AverageRating: row.Avg, ReviewsCount: row.N}
	}
	return out, nil
}

// DeleteCascade removes the restaurant and everything hanging off it.
func (r *RestaurantRepository) DeleteCascade(ctx context.Context, id uint64) error {
	for _, child := range []any{&db.MenuItem{}, &db.RestaurantReview{}, &db.RestaurantSpecial{}} {
		if err := r.db.WithContext(ctx).Where("restaurant_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Delete(&db.Restaurant{}, id).Error
}

type MenuItemRepository struct {
	crud[db.MenuItem]
}

func NewMenuItemRepository(database *gorm.DB) *MenuItemRepository {
	return &MenuItemRepository{crud[db.MenuItem]{db: database}}
}

func (r *MenuItemRepository) ListByRestaurant(ctx context.Context, restaurantID uint64) ([]db.MenuItem, error) {
	var items []db.MenuItem
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("category ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *MenuItemRepository) FindInRestaurant(ctx context.Context, restaurantID, id uint64) (*db.MenuItem, error) {
	return r.FindOne(ctx, "restaurant_id = ? AND id = ?", restaurantID, id)
}

// Images returns every menu item image path of a restaurant, for blob cleanup.
func (r *MenuItemRepository) Images(ctx context.Context, restaurantID uint64) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&db.MenuItem{}).
		Where("restaurant_id = ? AND image IS NOT NULL", restaurantID).
		Pluck("image", &paths).Error
	return paths, err
}

type ReviewRepository struct {
	crud[db.RestaurantReview]
}

func NewReviewRepository(database *gorm.DB) *ReviewRepository {
	return &ReviewRepository{crud[db.RestaurantReview]{db: database}}
}

func (r *ReviewRepository) ListByRestaurant(ctx context.Context, restaurantID uint64, p pagination.Params) (pagination.Page[db.RestaurantReview], error) {
	q := r.db.WithContext(ctx).Model(&db.RestaurantReview{}).Where("restaurant_id = ?", restaurantID)
	return pagination.Paginate[db.RestaurantReview](q, p, func(tx *gorm.DB) *gorm.DB {
		return newestFirst(tx.Preload("User"))
	})
}

func (r *ReviewRepository) FindInRestaurant(ctx context.Context, restaurantID, id uint64) (*db.RestaurantReview, error) {
	var rev db.RestaurantReview
	err := r.db.WithContext(ctx).Preload("User").
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&rev).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// FindByAuthor returns userID's review of restaurantID.
func (r *ReviewRepository) FindByAuthor(ctx context.Context, restaurantID, userID uint64) (*db.RestaurantReview, error) {
	var rev db.RestaurantReview
	err := r.db.WithContext(ctx).Preload("User").
		Where("restaurant_id = ? AND user_id = ?", restaurantID, userID).
		First(&rev).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// Photos returns every review photo path of a restaurant, for blob cleanup.
func (r *ReviewRepository) Photos(ctx context.Context, restaurantID uint64) ([]string, error) {
	var reviews []db.RestaurantReview
	if err := r.db.WithContext(ctx).Select("photos").Where("restaurant_id = ?", restaurantID).Find(&reviews).Error; err != nil {
		return nil, err
	}
	var paths []string
	for _, rev := range reviews {
		paths = append(paths, rev.Photos...)
	}
	return paths, nil
}

type SpecialRepository struct {
	crud[db.RestaurantSpecial]
}

func NewSpecialRepository(database *gorm.DB) *SpecialRepository {
	return &SpecialRepository{crud[db.RestaurantSpecial]{db: database}}
}

func (r *SpecialRepository) ListByRestaurant(ctx context.Context, restaurantID uint64) ([]db.RestaurantSpecial, error) {
	var out []db.RestaurantSpecial
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("start_date ASC").Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *SpecialRepository) FindInRestaurant(ctx context.Context, restaurantID, id uint64) (*db.RestaurantSpecial, error) {
	return r.FindOne(ctx, "restaurant_id = ? AND id = ?", restaurantID, id)
}

// Active returns specials that are switched on and whose date range covers
// day, with their restaurant. The weekday check is left to the caller since
// days_valid is a JSON column.
func (r *SpecialRepository) Active(ctx context.Context, day time.Time) ([]db.RestaurantSpecial, error) {
	d := dateOnly(day)
	var out []db.RestaurantSpecial
	err := r.db.WithContext(ctx).
		Preload("Restaurant").
		Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, d, d).
		Order("end_date ASC").Order("id ASC").
		Find(&out).Error
	return out, err
}

// Images returns every special image path of a restaurant, for blob cleanup.
func (r *SpecialRepository) Images(ctx context.Context, restaurantID uint64) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&db.RestaurantSpecial{}).
		Where("restaurant_id = ? AND image IS NOT NULL", restaurantID).
		Pluck("image", &paths).Error
	return paths, err
}
