package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DiscountPercentage   = "percentage"
	DiscountFixedAmount  = "fixed_amount"
	DiscountBuyOneGetOne = "buy_one_get_one"
	DiscountFreeItem     = "free_item"

	SubscriptionFree    = "free"
	SubscriptionBasic   = "basic"
	SubscriptionPremium = "premium"
)

type Restaurant struct {
	ID                    uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID               uint64            `gorm:"not null;index" json:"owner_id"`
	Name                  string            `gorm:"size:255;not null" json:"name"`
	Description           string            `gorm:"type:text" json:"description"`
	Address               string            `gorm:"size:255;not null" json:"address"`
	Latitude              *float64          `json:"latitude"`
	Longitude             *float64          `json:"longitude"`
	Phone                 string            `gorm:"size:20" json:"phone"`
	Email                 string            `gorm:"size:255" json:"email"`
	Website               string            `gorm:"size:255" json:"website"`
	Logo                  *string           `gorm:"size:255" json:"logo"`
	CoverPhoto            *string           `gorm:"size:255" json:"cover_photo"`
	CuisineType           string            `gorm:"size:100;index" json:"cuisine_type"`
	PriceRange            string            `gorm:"size:4;index" json:"price_range"`
	OpeningHours          datatypes.JSONMap `json:"opening_hours"`
	IsActive              bool              `gorm:"not null;index" json:"is_active"`
	SubscriptionStatus    string            `gorm:"size:16;not null;default:free" json:"subscription_status"`
	SubscriptionExpiresAt *time.Time        `json:"subscription_expires_at"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	MenuItems []MenuItem          `gorm:"foreignKey:RestaurantID" json:"menu_items,omitempty"`
	Specials  []RestaurantSpecial `gorm:"foreignKey:RestaurantID" json:"specials,omitempty"`
	Reviews   []RestaurantReview  `gorm:"foreignKey:RestaurantID" json:"reviews,omitempty"`
}

type MenuItem struct {
	ID           uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID uint64                      `gorm:"not null;index" json:"restaurant_id"`
	Name         string                      `gorm:"size:255;not null" json:"name"`
	Description  string                      `gorm:"type:text" json:"description"`
	Price        decimal.Decimal             `gorm:"type:decimal(10,2);not null" json:"price"`
	Category     string                      `gorm:"size:100;index" json:"category"`
	Image        *string                     `gorm:"size:255" json:"image"`
	IsAvailable  bool                        `gorm:"not null" json:"is_available"`
	IsFeatured   bool                        `gorm:"not null" json:"is_featured"`
	DietaryInfo  datatypes.JSONSlice[string] `json:"dietary_info"`
	Ingredients  datatypes.JSONSlice[string] `json:"ingredients"`
	Allergens    datatypes.JSONSlice[string] `json:"allergens"`
	CreatedAt    time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// RestaurantReview is unique per (restaurant_id, user_id).
type RestaurantReview struct {
	ID           uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID uint64                      `gorm:"not null;uniqueIndex:idx_reviews_restaurant_user,priority:1" json:"restaurant_id"`
	UserID       uint64                      `gorm:"not null;uniqueIndex:idx_reviews_restaurant_user,priority:2;index" json:"user_id"`
	Rating       int                         `gorm:"not null" json:"rating"`
	Comment      string                      `gorm:"type:text;not null" json:"comment"`
	VisitDate    *datatypes.Date             `json:"visit_date"`
	Photos       datatypes.JSONSlice[string] `json:"photos"`
	IsVerified   bool                        `gorm:"not null" json:"is_verified"`
	CreatedAt    time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// RestaurantSpecial is a dated promotion. An empty DaysValid means every day.
type RestaurantSpecial struct {
	ID              uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID    uint64                      `gorm:"not null;index" json:"restaurant_id"`
	Title           string                      `gorm:"size:255;not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	DiscountType    string                      `gorm:"size:32;not null" json:"discount_type"`
	DiscountValue   decimal.NullDecimal         `gorm:"type:decimal(10,2)" json:"discount_value"`
	StartDate       datatypes.Date              `gorm:"not null;index:idx_specials_active_dates,priority:2" json:"start_date"`
	EndDate         datatypes.Date              `gorm:"not null;index:idx_specials_active_dates,priority:3" json:"end_date"`
	Image           *string                     `gorm:"size:255" json:"image"`
	TermsConditions string                      `gorm:"type:text" json:"terms_conditions"`
	IsActive        bool                        `gorm:"not null;index:idx_specials_active_dates,priority:1" json:"is_active"`
	DaysValid       datatypes.JSONSlice[string] `json:"days_valid"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`

	Restaurant *Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}
