package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
)

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	crud[db.User]
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{crud[db.User]{db: database}}
}

// WithTx returns a repository bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return NewUserRepository(tx)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*db.User, error) {
	return r.FindOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*db.User, error) {
	return r.FindOne(ctx, "username = ?", username)
}

// LockByID loads the user row with SELECT ... FOR UPDATE so concurrent
// writers to the same user's rows queue behind each other.
func (r *UserRepository) LockByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := lockForUpdate(r.db.WithContext(ctx)).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIDs loads the users with the given ids, in id order.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	var users []db.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

// MissingIDs returns the ids that have no user row, preserving input order.
//
// Example:
//
//	repo.MissingIDs(ctx, []uint64{1, 99}) // -> [99] when user 99 does not exist
func (r *UserRepository) MissingIDs(ctx context.Context, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	var missing []uint64
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// SetProfilePhoto mirrors the primary photo path onto the user row.
func (r *UserRepository) SetProfilePhoto(ctx context.Context, userID uint64, path *string) error {
	return r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).
		Update("profile_photo", path).Error
}

// ListByCountry returns every other user from the same country, newest first.
func (r *UserRepository) ListByCountry(ctx context.Context, country string, excludeID uint64) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("country = ? AND id <> ?", country, excludeID).
		Order("created_at DESC").Order("id DESC").
		Find(&users).Error
	return users, err
}

// Countries returns the distinct, sorted, non-empty countries.
func (r *UserRepository) Countries(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&db.User{}).
		Where("country IS NOT NULL AND country <> ''").
		Distinct("country").Order("country").
		Pluck("country", &out).Error
	return out, err
}

// UserFilter holds the attribute filters that run in SQL. Interest and
// distance filters need per-row work and are applied by the caller.
type UserFilter struct {
	MinAge             *int
	MaxAge             *int
	Gender             string
	Nationality        string
	MinHeight          *int
	MaxHeight          *int
	RelationshipStatus string
	Location           string
}

func (f UserFilter) apply(q *gorm.DB) *gorm.DB {
	if f.MinAge != nil {
		q = q.Where("users.age >= ?", *f.MinAge)
	}
	if f.MaxAge != nil {
		q = q.Where("users.age <= ?", *f.MaxAge)
	}
	if f.Gender != "" {
		q = q.Where("users.gender = ?", f.Gender)
	}
	if f.Nationality != "" {
		q = q.Where("users.nationality = ?", f.Nationality)
	}
	if f.MinHeight != nil {
		q = q.Where("users.height >= ?", *f.MinHeight)
	}
	if f.MaxHeight != nil {
		q = q.Where("users.height <= ?", *f.MaxHeight)
	}
	if f.RelationshipStatus != "" {
		q = q.Where("users.relationship_status = ?", f.RelationshipStatus)
	}
	if f.Location != "" {
		q = q.Where("users.location LIKE ?", "%"+f.Location+"%")
	}
	return q
}

// Filter returns every user except excludeID matching f. When requireCoords is
// set, users without both latitude and longitude are dropped.
func (r *UserRepository) Filter(ctx context.Context, excludeID uint64, f UserFilter, requireCoords bool) ([]db.User, error) {
	q := f.apply(r.db.WithContext(ctx).Model(&db.User{}).Where("users.id <> ?", excludeID))
	if requireCoords {
		q = q.Where("users.latitude IS NOT NULL AND users.longitude IS NOT NULL")
	}
	var users []db.User
	err := q.Order("users.id").Find(&users).Error
	return users, err
}

// PotentialMatches returns up to limit random candidates for userID.
//
// Behavior:
//   - Excludes userID, anyone userID already liked or disliked, and anyone
//     userID has an active match with.
//   - Only users with at least one photo qualify.
//   - Photos are preloaded primary first, then by order.
//   - f applies as in Filter.
//   - limit <= 0 means no limit.
func (r *UserRepository) PotentialMatches(ctx context.Context, userID uint64, f UserFilter, requireCoords bool, limit int) ([]db.User, error) {
	liked := r.db.Model(&db.UserLike{}).Select("liked_user_id").Where("user_id = ?", userID)
	matched := r.db.Model(&db.Match{}).Select("matched_user_id").Where("user_id = ? AND is_active = ?", userID, true)
	hasPhoto := r.db.Model(&db.UserPhoto{}).Select("1").Where("user_photos.user_id = users.id")

	q := r.db.WithContext(ctx).Model(&db.User{}).
		Where("users.id <> ?", userID).
		Where("users.id NOT IN (?)", liked).
		Where("users.id NOT IN (?)", matched).
		Where("EXISTS (?)", hasPhoto)
	q = f.apply(q)
	if requireCoords {
		q = q.Where("users.latitude IS NOT NULL AND users.longitude IS NOT NULL")
	}

	var users []db.User
	err := randomOrder(q).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("is_primary DESC").Order("sort_order ASC").Order("id ASC")
		}).
		Scopes(limitTo(limit)).
		Find(&users).Error
	return users, err
}
