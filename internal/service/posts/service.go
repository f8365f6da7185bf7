// Package posts serves posts, likes, comments and the friend feed.
package posts

import (
	"context"
	"time"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	PerPage         = 10
	CommentsPerPage = 20
	TrendingLimit   = 10
	TrendingWindow  = 7 * 24 * time.Hour
	// WallComments is how many recent comments the social wall embeds per post.
	WallComments = 3

	maxImages     = 5
	postNotFound  = "Post not found"
	imagesDir     = "post_images"
	notYourUpdate = "You are not authorized to update this post"
	notYourDelete = "You are not authorized to delete this post"
)

type Service struct {
	appCtx   *app.AppContext
	posts    *repository.PostRepository
	comments *repository.CommentRepository
	friends  *repository.FriendshipRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		posts:    repository.NewPostRepository(appCtx.DB),
		comments: repository.NewCommentRepository(appCtx.DB),
		friends:  repository.NewFriendshipRepository(appCtx.DB),
	}
}

// Post is a post with its author, image URLs and counters for the viewer.
type Post struct {
	db.Post
	User          *view.User `json:"user"`
	ImageURLs     []string   `json:"image_urls"`
	LikesCount    int64      `json:"likes_count"`
	CommentsCount int64      `json:"comments_count"`
	LikedByMe     bool       `json:"liked_by_me"`
	Comments      []Comment  `json:"comments,omitempty"`
}

// decorate builds Post views for rows, with counters as seen by viewerID.
func (s *Service) decorate(ctx context.Context, viewerID uint64, rows []db.Post) ([]Post, error) {
	ids := make([]uint64, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ID)
	}
	stats, err := s.posts.Stats(ctx, ids, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]Post, 0, len(rows))
	for _, p := range rows {
		st := stats[p.ID]
		out = append(out, Post{
			Post:          p,
			User:          view.NewUser(s.appCtx.Storage, p.User),
			ImageURLs:     storage.URLs(s.appCtx.Storage, p.Images),
			LikesCount:    st.LikesCount,
			CommentsCount: st.CommentsCount,
			LikedByMe:     st.LikedByMe,
		})
	}
	return out, nil
}

func (s *Service) decoratePage(ctx context.Context, viewerID uint64, page pagination.Page[db.Post]) (pagination.Page[Post], error) {
	items, err := s.decorate(ctx, viewerID, page.Items)
	if err != nil {
		return pagination.Page[Post]{}, err
	}
	return pagination.WithItems(page, items), nil
}

func (s *Service) decorateOne(ctx context.Context, viewerID uint64, p *db.Post) (*Post, error) {
	out, err := s.decorate(ctx, viewerID, []db.Post{*p})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List pages through all posts, or one author's when authorID is set.
func (s *Service) List(ctx context.Context, id auth.Identity, authorID *uint64, page int) (pagination.Page[Post], error) {
	rows, err := s.posts.List(ctx, authorID, pagination.Params{Page: page, PerPage: PerPage})
	if err != nil {
		return pagination.Page[Post]{}, svcErr.Map(err)
	}
	return s.decoratePage(ctx, id.UserID, rows)
}

type CreateInput struct {
	Content  string   `json:"content" validate:"required"`
	Location string   `json:"location" validate:"max=255"`
	Tags     []string `json:"tags" validate:"omitempty,dive,max=50"`
	IsPublic *bool    `json:"is_public"`
}

// Create stores a post and its uploaded images.
func (s *Service) Create(ctx context.Context, id auth.Identity, in CreateInput, images []storage.File) (*Post, error) {
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	storage.ImageRule.CheckAll(errs, "images", images, maxImages)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	paths, err := storage.SaveAll(ctx, s.appCtx.Storage, imagesDir, images)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	p := db.Post{
		UserID:   id.UserID,
		Content:  in.Content,
		Images:   paths,
		Location: in.Location,
		Tags:     in.Tags,
		IsPublic: in.IsPublic == nil || *in.IsPublic,
	}
	if err := s.posts.Create(ctx, &p); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, paths...)
		return nil, svcErr.Map(err)
	}
	return s.Show(ctx, id, p.ID)
}

// Show returns a post with every comment, newest first.
func (s *Service) Show(ctx context.Context, id auth.Identity, postID uint64) (*Post, error) {
	p, err := s.posts.FindByID(ctx, postID, "User")
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}
	out, err := s.decorateOne(ctx, id.UserID, p)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.Recent(ctx, postID, 0)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out.Comments = s.commentViews(comments)
	return out, nil
}

// UpdateInput is pre-filled from the post before the request is applied.
type UpdateInput struct {
	Content  string   `json:"content" validate:"required"`
	Location string   `json:"location" validate:"max=255"`
	Tags     []string `json:"tags" validate:"omitempty,dive,max=50"`
	IsPublic bool     `json:"is_public"`
}

// Update edits the caller's own post. Images are not replaced.
func (s *Service) Update(ctx context.Context, id auth.Identity, postID uint64, patch validation.Patch) (*Post, error) {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}
	if p.UserID != id.UserID {
		return nil, svcErr.Forbidden(notYourUpdate)
	}

	in := UpdateInput{Content: p.Content, Location: p.Location, Tags: p.Tags, IsPublic: p.IsPublic}
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}

	p.Content, p.Location, p.Tags, p.IsPublic = in.Content, in.Location, in.Tags, in.IsPublic
	if err := s.posts.Save(ctx, p); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.Show(ctx, id, p.ID)
}

// Delete removes a post with its likes, comments and image blobs. Owners and
// admins only.
func (s *Service) Delete(ctx context.Context, id auth.Identity, postID uint64) error {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}
	if !id.CanModify(p.UserID) {
		return svcErr.Forbidden(notYourDelete)
	}
	if err := s.posts.DeleteCascade(ctx, p.ID); err != nil {
		s.appCtx.Logger.Error("delete post failed", "post_id", p.ID, "err", err)
		return svcErr.Map(err)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, p.Images...)
	return nil
}

type LikeToggle struct {
	PostID     uint64 `json:"post_id"`
	LikedByMe  bool   `json:"liked_by_me"`
	LikesCount int64  `json:"likes_count"`
}

// ToggleLike likes the post, or unlikes it when the caller already did.
func (s *Service) ToggleLike(ctx context.Context, id auth.Identity, postID uint64) (*LikeToggle, error) {
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}

	res := &LikeToggle{PostID: postID}
	_, err := s.posts.FindLike(ctx, postID, id.UserID)
	switch {
	case err == nil:
		if err := s.posts.DeleteLike(ctx, postID, id.UserID); err != nil {
			return nil, svcErr.Map(err)
		}
	case isMissing(err):
		res.LikedByMe = true
		// a concurrent like for the same pair already did the work
		if err := s.posts.CreateLike(ctx, &db.PostLike{PostID: postID, UserID: id.UserID}); err != nil && !svcErr.IsDuplicate(err) {
			return nil, svcErr.Map(err)
		}
	default:
		return nil, svcErr.Map(err)
	}

	n, err := s.posts.CountLikes(ctx, postID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	res.LikesCount = n
	return res, nil
}

// Likes lists the users who liked postID.
func (s *Service) Likes(ctx context.Context, postID uint64) ([]*view.User, error) {
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}
	likes, err := s.posts.Likes(ctx, postID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]*view.User, 0, len(likes))
	for _, l := range likes {
		if l.User != nil {
			out = append(out, view.NewUser(s.appCtx.Storage, l.User))
		}
	}
	return out, nil
}

// Feed pages through posts by the caller and their accepted friends.
func (s *Service) Feed(ctx context.Context, id auth.Identity, page int) (pagination.Page[Post], error) {
	ids, err := s.circle(ctx, id.UserID)
	if err != nil {
		return pagination.Page[Post]{}, err
	}
	rows, err := s.posts.ListByAuthors(ctx, ids, pagination.Params{Page: page, PerPage: PerPage})
	if err != nil {
		return pagination.Page[Post]{}, svcErr.Map(err)
	}
	return s.decoratePage(ctx, id.UserID, rows)
}

// Wall is Feed plus the newest WallComments comments on each post.
func (s *Service) Wall(ctx context.Context, id auth.Identity, page int) (pagination.Page[Post], error) {
	out, err := s.Feed(ctx, id, page)
	if err != nil {
		return out, err
	}
	for i := range out.Items {
		comments, err := s.comments.Recent(ctx, out.Items[i].ID, WallComments)
		if err != nil {
			return out, svcErr.Map(err)
		}
		out.Items[i].Comments = s.commentViews(comments)
	}
	return out, nil
}

func (s *Service) circle(ctx context.Context, userID uint64) ([]uint64, error) {
	ids, err := s.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return append(ids, userID), nil
}

// Trending ranks posts from the last TrendingWindow by likes plus comments.
func (s *Service) Trending(ctx context.Context, id auth.Identity) ([]Post, error) {
	rows, err := s.posts.Trending(ctx, s.appCtx.Now().Add(-TrendingWindow), TrendingLimit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.decorate(ctx, id.UserID, rows)
}
