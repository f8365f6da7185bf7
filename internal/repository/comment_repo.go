package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

type CommentRepository struct {
	crud[db.PostComment]
}

func NewCommentRepository(database *gorm.DB) *CommentRepository {
	return &CommentRepository{crud[db.PostComment]{db: database}}
}

// FindInPost returns the comment only if it belongs to postID.
func (r *CommentRepository) FindInPost(ctx context.Context, postID, commentID uint64) (*db.PostComment, error) {
	var c db.PostComment
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Replies", newestFirst).
		Preload("Replies.User").
		Where("post_id = ? AND id = ?", postID, commentID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByPost pages through a post's top-level comments with their replies.
func (r *CommentRepository) ListByPost(ctx context.Context, postID uint64, p pagination.Params) (pagination.Page[db.PostComment], error) {
	q := r.db.WithContext(ctx).Model(&db.PostComment{}).Where("post_id = ? AND parent_id IS NULL", postID)
	return pagination.Paginate[db.PostComment](q, p, func(tx *gorm.DB) *gorm.DB {
		return newestFirst(tx.Preload("User").Preload("Replies", newestFirst).Preload("Replies.User"))
	})
}

// ListByUser pages through everything userID has commented.
func (r *CommentRepository) ListByUser(ctx context.Context, userID uint64, p pagination.Params) (pagination.Page[db.PostComment], error) {
	q := r.db.WithContext(ctx).Model(&db.PostComment{}).Where("user_id = ?", userID)
	return pagination.Paginate[db.PostComment](q, p, func(tx *gorm.DB) *gorm.DB {
		return newestFirst(tx.Preload("User"))
	})
}

// Recent returns the newest limit comments on postID; limit <= 0 returns all.
func (r *CommentRepository) Recent(ctx context.Context, postID uint64, limit int) ([]db.PostComment, error) {
	var out []db.PostComment
	err := newestFirst(r.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID)).
		Scopes(limitTo(limit)).Find(&out).Error
	return out, err
}

// DeleteWithReplies removes a comment and its whole reply tree.
//
// Behavior:
//   - Walks the tree one level at a time, collecting reply ids.
//   - Deletes the collected rows in one statement inside a transaction.
//
// Example:
//
//	1 <- 2 <- 3 and 1 <- 4: deleting 1 removes 1, 2, 3 and 4.
func (r *CommentRepository) DeleteWithReplies(ctx context.Context, commentID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint64{commentID}
		for level := []uint64{commentID}; len(level) > 0; {
			var next []uint64
			if err := tx.Model(&db.PostComment{}).Where("parent_id IN ?", level).Pluck("id", &next).Error; err != nil {
				return err
			}
			ids = append(ids, next...)
			level = next
		}
		return tx.Where("id IN ?", ids).Delete(&db.PostComment{}).Error
	})
}
