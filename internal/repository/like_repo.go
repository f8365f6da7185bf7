package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/socialtinder/internal/db"
)

// LikeRepository encapsulates all queries related to likes/dislikes between
// users and the matches they produce.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return NewLikeRepository(tx)
}

// Upsert inserts or updates the decision made by userID on likedUserID.
//
// Behavior:
//   - If the (user_id, liked_user_id) pair exists, its action is overwritten.
//   - Otherwise a new row is inserted.
//   - The unique index makes concurrent upserts for one pair converge on one row.
//
// Example:
//
//	repo.Upsert(ctx, 1, 2, db.LikeActionLike) // user 1 liked user 2
func (r *LikeRepository) Upsert(ctx context.Context, userID, likedUserID uint64, action string) (*db.UserLike, error) {
	like := db.UserLike{UserID: userID, LikedUserID: likedUserID, Action: action}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "liked_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
		}).
		Create(&like).Error
	if err != nil {
		return nil, err
	}
	// the upsert leaves ID unset on conflict; reload for a complete row
	return r.Get(ctx, userID, likedUserID)
}

func (r *LikeRepository) Get(ctx context.Context, userID, likedUserID uint64) (*db.UserLike, error) {
	var like db.UserLike
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND liked_user_id = ?", userID, likedUserID).
		First(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// Delete removes the decision and reports how many rows went away.
func (r *LikeRepository) Delete(ctx context.Context, userID, likedUserID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND liked_user_id = ?", userID, likedUserID).
		Delete(&db.UserLike{})
	return res.RowsAffected, res.Error
}

// HasLiked checks whether userID currently likes (not dislikes) likedUserID.
//
// Example:
//
//	repo.HasLiked(ctx, 2, 1) // -> true if user 2 liked user 1 back
func (r *LikeRepository) HasLiked(ctx context.Context, userID, likedUserID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.UserLike{}).
		Where("user_id = ? AND liked_user_id = ? AND action = ?", userID, likedUserID, db.LikeActionLike).
		Count(&count).Error
	return count > 0, err
}

// LikedSet returns the ids userID likes, restricted to among when non-empty.
func (r *LikeRepository) LikedSet(ctx context.Context, userID uint64, among []uint64) (map[uint64]bool, error) {
	q := r.db.WithContext(ctx).Model(&db.UserLike{}).
		Where("user_id = ? AND action = ?", userID, db.LikeActionLike)
	if len(among) > 0 {
		q = q.Where("liked_user_id IN ?", among)
	}
	var ids []uint64
	if err := q.Pluck("liked_user_id", &ids).Error; err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// LikedBySet returns the ids that like userID, restricted to among when non-empty.
func (r *LikeRepository) LikedBySet(ctx context.Context, userID uint64, among []uint64) (map[uint64]bool, error) {
	q := r.db.WithContext(ctx).Model(&db.UserLike{}).
		Where("liked_user_id = ? AND action = ?", userID, db.LikeActionLike)
	if len(among) > 0 {
		q = q.Where("user_id IN ?", among)
	}
	var ids []uint64
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// MyLikes lists userID's likes with the liked user, newest first.
func (r *LikeRepository) MyLikes(ctx context.Context, userID uint64) ([]db.UserLike, error) {
	var likes []db.UserLike
	err := r.db.WithContext(ctx).
		Preload("LikedUser").
		Where("user_id = ? AND action = ?", userID, db.LikeActionLike).
		Order("updated_at DESC").Order("id DESC").
		Find(&likes).Error
	return likes, err
}

// LikedBy lists who likes userID, newest first.
//
// Behavior:
//   - Only action = like rows count.
//   - Ordered by updated_at DESC, id DESC.
func (r *LikeRepository) LikedBy(ctx context.Context, userID uint64) ([]db.UserLike, error) {
	var likes []db.UserLike
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("liked_user_id = ? AND action = ?", userID, db.LikeActionLike).
		Order("updated_at DESC").Order("id DESC").
		Find(&likes).Error
	return likes, err
}

// CountLikers returns how many users currently like userID.
func (r *LikeRepository) CountLikers(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.UserLike{}).
		Where("liked_user_id = ? AND action = ?", userID, db.LikeActionLike).
		Count(&count).Error
	return count, err
}

// ActivateMatch writes the match in both directions.
//
// Behavior:
//   - Missing rows are inserted; existing ones are re-activated with a new
//     matched_at.
//   - Safe to call again for an already active pair.
func (r *LikeRepository) ActivateMatch(ctx context.Context, a, b uint64, at time.Time) error {
	rows := []db.Match{
		{UserID: a, MatchedUserID: b, IsActive: true, MatchedAt: at},
		{UserID: b, MatchedUserID: a, IsActive: true, MatchedAt: at},
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "matched_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_active", "matched_at", "updated_at"}),
		}).
		Create(&rows).Error
}

// DeactivateMatch clears the match in both directions and reports whether an
// active match existed.
func (r *LikeRepository) DeactivateMatch(ctx context.Context, a, b uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("((user_id = ? AND matched_user_id = ?) OR (user_id = ? AND matched_user_id = ?)) AND is_active = ?", a, b, b, a, true).
		Update("is_active", false)
	return res.RowsAffected > 0, res.Error
}

// MatchedSet returns the ids userID has an active match with.
func (r *LikeRepository) MatchedSet(ctx context.Context, userID uint64, among []uint64) (map[uint64]bool, error) {
	q := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if len(among) > 0 {
		q = q.Where("matched_user_id IN ?", among)
	}
	var ids []uint64
	if err := q.Pluck("matched_user_id", &ids).Error; err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// Matches lists userID's active matches with the other user and their photos.
func (r *LikeRepository) Matches(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Preload("MatchedUser").
		Preload("MatchedUser.Photos", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("is_primary DESC").Order("sort_order ASC").Order("id ASC")
		}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("matched_at DESC").Order("id DESC").
		Find(&matches).Error
	return matches, err
}

func toSet(ids []uint64) map[uint64]bool {
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
