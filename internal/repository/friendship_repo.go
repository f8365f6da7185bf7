package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/socialtinder/internal/db"
)

type FriendshipRepository struct {
	crud[db.Friendship]
}

func NewFriendshipRepository(database *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{crud[db.Friendship]{db: database}}
}

func (r *FriendshipRepository) WithTx(tx *gorm.DB) *FriendshipRepository {
	return NewFriendshipRepository(tx)
}

// Find returns the directed edge userID -> friendID.
func (r *FriendshipRepository) Find(ctx context.Context, userID, friendID uint64) (*db.Friendship, error) {
	return r.FindOne(ctx, "user_id = ? AND friend_id = ?", userID, friendID)
}

// FindPending returns a pending request from requesterID to userID.
func (r *FriendshipRepository) FindPending(ctx context.Context, requesterID, userID uint64) (*db.Friendship, error) {
	return r.FindOne(ctx, "user_id = ? AND friend_id = ? AND status = ?", requesterID, userID, db.FriendshipPending)
}

// UpsertAccepted writes userID -> friendID as accepted, inserting it when missing.
func (r *FriendshipRepository) UpsertAccepted(ctx context.Context, userID, friendID uint64) error {
	row := db.Friendship{UserID: userID, FriendID: friendID, Status: db.FriendshipAccepted}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "friend_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(&row).Error
}

// AcceptedFriendIDs returns the ids of userID's accepted friends.
func (r *FriendshipRepository) AcceptedFriendIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Friendship{}).
		Where("user_id = ? AND status = ?", userID, db.FriendshipAccepted).
		Pluck("friend_id", &ids).Error
	return ids, err
}

// ListAccepted returns userID's accepted edges with the friend loaded.
func (r *FriendshipRepository) ListAccepted(ctx context.Context, userID uint64) ([]db.Friendship, error) {
	var rows []db.Friendship
	err := r.db.WithContext(ctx).Preload("Friend").
		Where("user_id = ? AND status = ?", userID, db.FriendshipAccepted).
		Order("updated_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// PendingFor returns requests sent to userID that are still pending.
func (r *FriendshipRepository) PendingFor(ctx context.Context, userID uint64) ([]db.Friendship, error) {
	var rows []db.Friendship
	err := r.db.WithContext(ctx).Preload("User").
		Where("friend_id = ? AND status = ?", userID, db.FriendshipPending).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}
