package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

type PostRepository struct {
	crud[db.Post]
}

func NewPostRepository(database *gorm.DB) *PostRepository {
	return &PostRepository{crud[db.Post]{db: database}}
}

func (r *PostRepository) WithTx(tx *gorm.DB) *PostRepository {
	return NewPostRepository(tx)
}

func withAuthor(q *gorm.DB) *gorm.DB {
	return newestFirst(q.Preload("User"))
}

// List pages through posts, optionally only one author's.
func (r *PostRepository) List(ctx context.Context, userID *uint64, p pagination.Params) (pagination.Page[db.Post], error) {
	q := r.db.WithContext(ctx).Model(&db.Post{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	return pagination.Paginate[db.Post](q, p, withAuthor)
}

// ListByAuthors pages through posts written by any of userIDs.
func (r *PostRepository) ListByAuthors(ctx context.Context, userIDs []uint64, p pagination.Params) (pagination.Page[db.Post], error) {
	q := r.db.WithContext(ctx).Model(&db.Post{}).Where("user_id IN ?", userIDs)
	return pagination.Paginate[db.Post](q, p, withAuthor)
}

// Trending returns posts created since `since`, ranked by likes + comments.
//
// Behavior:
//   - Ties fall back to newest first.
//   - At most limit posts.
func (r *PostRepository) Trending(ctx context.Context, since time.Time, limit int) ([]db.Post, error) {
	likes := r.db.Model(&db.PostLike{}).Select("COUNT(*)").Where("post_likes.post_id = posts.id")
	comments := r.db.Model(&db.PostComment{}).Select("COUNT(*)").Where("post_comments.post_id = posts.id")

	var posts []db.Post
	err := r.db.WithContext(ctx).Model(&db.Post{}).
		Preload("User").
		Where("posts.created_at >= ?", since).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "((?) + (?)) DESC, posts.created_at DESC, posts.id DESC",
			Vars:               []any{likes, comments},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// DeleteCascade removes the post with its likes and comments.
func (r *PostRepository) DeleteCascade(ctx context.Context, postID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&db.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&db.PostComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Post{}, postID).Error
	})
}

// PostStats are the per-post counters shown alongside a post.
type PostStats struct {
	LikesCount    int64
	CommentsCount int64
	LikedByMe     bool
}

// Stats loads counters for postIDs as seen by viewerID.
func (r *PostRepository) Stats(ctx context.Context, postIDs []uint64, viewerID uint64) (map[uint64]PostStats, error) {
	out := make(map[uint64]PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	type countRow struct {
		PostID uint64
		N      int64
	}
	var likeRows, commentRows []countRow
	if err := r.db.WithContext(ctx).Model(&db.PostLike{}).
		Select("post_id, COUNT(*) AS n").Where("post_id IN ?", postIDs).
		Group("post_id").Scan(&likeRows).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&db.PostComment{}).
		Select("post_id, COUNT(*) AS n").Where("post_id IN ?", postIDs).
		Group("post_id").Scan(&commentRows).Error; err != nil {
		return nil, err
	}
	var mine []uint64
	if err := r.db.WithContext(ctx).Model(&db.PostLike{}).
		Where("post_id IN ? AND user_id = ?", postIDs, viewerID).
		Pluck("post_id", &mine).Error; err != nil {
		return nil, err
	}

	for _, row := range likeRows {
		s := out[row.PostID]
		s.LikesCount = row.N
		out[row.PostID] = s
	}
	for _, row := range commentRows {
		s := out[row.PostID]
		s.CommentsCount = row.N
		out[row.PostID] = s
	}
	for _, id := range mine {
		s := out[id]
		s.LikedByMe = true
		out[id] = s
	}
	return out, nil
}

// FindLike returns userID's like on postID.
func (r *PostRepository) FindLike(ctx context.Context, postID, userID uint64) (*db.PostLike, error) {
	var like db.PostLike
	err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).First(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

func (r *PostRepository) CreateLike(ctx context.Context, like *db.PostLike) error {
	return r.db.WithContext(ctx).Create(like).Error
}

func (r *PostRepository) DeleteLike(ctx context.Context, postID, userID uint64) error {
	return r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&db.PostLike{}).Error
}

func (r *PostRepository) CountLikes(ctx context.Context, postID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.PostLike{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

// Likes lists who liked postID, newest first.
func (r *PostRepository) Likes(ctx context.Context, postID uint64) ([]db.PostLike, error) {
	var likes []db.PostLike
	err := newestFirst(r.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID)).Find(&likes).Error
	return likes, err
}
