package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
)

type PhotoRepository struct {
	crud[db.UserPhoto]
}

func NewPhotoRepository(database *gorm.DB) *PhotoRepository {
	return &PhotoRepository{crud[db.UserPhoto]{db: database}}
}

func (r *PhotoRepository) WithTx(tx *gorm.DB) *PhotoRepository {
	return NewPhotoRepository(tx)
}

// ListByUser returns a user's gallery: primary first, then by order, newest
// first within the same order.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID uint64) ([]db.UserPhoto, error) {
	var photos []db.UserPhoto
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC").Order("sort_order ASC").Order("created_at DESC").Order("id DESC").
		Find(&photos).Error
	return photos, err
}

// ClearPrimary unsets is_primary on every photo of userID except keepID.
func (r *PhotoRepository) ClearPrimary(ctx context.Context, userID, keepID uint64) error {
	return r.db.WithContext(ctx).Model(&db.UserPhoto{}).
		Where("user_id = ? AND id <> ? AND is_primary = ?", userID, keepID, true).
		Update("is_primary", false).Error
}

// MarkPrimary sets is_primary on one photo.
func (r *PhotoRepository) MarkPrimary(ctx context.Context, photoID uint64) error {
	return r.db.WithContext(ctx).Model(&db.UserPhoto{}).
		Where("id = ?", photoID).
		Update("is_primary", true).Error
}

// NextForPrimary picks the photo that takes over when the primary is deleted:
// lowest order, then oldest.
func (r *PhotoRepository) NextForPrimary(ctx context.Context, userID uint64) (*db.UserPhoto, error) {
	var p db.UserPhoto
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sort_order ASC").Order("created_at ASC").Order("id ASC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPrimary counts primary photos for userID. Used to assert the
// at-most-one invariant.
func (r *PhotoRepository) CountPrimary(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.UserPhoto{}).
		Where("user_id = ? AND is_primary = ?", userID, true).
		Count(&n).Error
	return n, err
}

// CountOwned counts how many of ids belong to userID.
func (r *PhotoRepository) CountOwned(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.UserPhoto{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Count(&n).Error
	return n, err
}

// SetOrder updates one photo's position.
func (r *PhotoRepository) SetOrder(ctx context.Context, photoID uint64, order int) error {
	return r.db.WithContext(ctx).Model(&db.UserPhoto{}).
		Where("id = ?", photoID).
		Update("sort_order", order).Error
}
