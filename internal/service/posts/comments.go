package posts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const commentNotFound = "Comment not found"

type Comment struct {
	db.PostComment
	User    *view.User `json:"user"`
	Replies []Comment  `json:"replies,omitempty"`
}

func (s *Service) commentView(c db.PostComment) Comment {
	out := Comment{PostComment: c, User: view.NewUser(s.appCtx.Storage, c.User)}
	if len(c.Replies) > 0 {
		out.Replies = s.commentViews(c.Replies)
	}
	return out
}

func (s *Service) commentViews(rows []db.PostComment) []Comment {
	out := make([]Comment, 0, len(rows))
	for _, c := range rows {
		out = append(out, s.commentView(c))
	}
	return out
}

func (s *Service) commentPage(page pagination.Page[db.PostComment]) pagination.Page[Comment] {
	return pagination.Map(page, s.commentView)
}

// Comments pages through a post's top-level comments with their replies.
func (s *Service) Comments(ctx context.Context, postID uint64, page int) (pagination.Page[Comment], error) {
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		return pagination.Page[Comment]{}, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}
	rows, err := s.comments.ListByPost(ctx, postID, pagination.Params{Page: page, PerPage: CommentsPerPage})
	if err != nil {
		return pagination.Page[Comment]{}, svcErr.Map(err)
	}
	return s.commentPage(rows), nil
}

type CommentInput struct {
	Content  string  `json:"content" validate:"required,max=500"`
	ParentID *uint64 `json:"parent_id"`
}

// AddComment comments on postID. A reply's parent must be on the same post.
func (s *Service) AddComment(ctx context.Context, id auth.Identity, postID uint64, in CommentInput) (*Comment, error) {
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, postNotFound))
	}

	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if in.ParentID != nil {
		if _, err := s.comments.FindInPost(ctx, postID, *in.ParentID); isMissing(err) {
			errs.Add("parent_id", "The selected parent id is invalid.")
		} else if err != nil {
			return nil, svcErr.Map(err)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	c := db.PostComment{PostID: postID, UserID: id.UserID, ParentID: in.ParentID, Content: in.Content}
	if err := s.comments.Create(ctx, &c); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.ShowComment(ctx, postID, c.ID)
}

func (s *Service) ShowComment(ctx context.Context, postID, commentID uint64) (*Comment, error) {
	c, err := s.comments.FindInPost(ctx, postID, commentID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, commentNotFound))
	}
	out := s.commentView(*c)
	return &out, nil
}

type CommentUpdateInput struct {
	Content string `json:"content" validate:"required,max=500"`
}

// UpdateComment edits the caller's own comment.
func (s *Service) UpdateComment(ctx context.Context, id auth.Identity, postID, commentID uint64, in CommentUpdateInput) (*Comment, error) {
	c, err := s.comments.FindInPost(ctx, postID, commentID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, commentNotFound))
	}
	if c.UserID != id.UserID {
		return nil, svcErr.Forbidden("You are not authorized to update this comment")
	}
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}

	c.Content = in.Content
	if err := s.appCtx.DB.WithContext(ctx).Model(c).Update("content", in.Content).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	return s.ShowComment(ctx, postID, c.ID)
}

// DeleteComment removes a comment and its replies. Authors and admins only.
func (s *Service) DeleteComment(ctx context.Context, id auth.Identity, postID, commentID uint64) error {
	c, err := s.comments.FindInPost(ctx, postID, commentID)
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, commentNotFound))
	}
	if !id.CanModify(c.UserID) {
		return svcErr.Forbidden("You are not authorized to delete this comment")
	}
	if err := s.comments.DeleteWithReplies(ctx, c.ID); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// UserComments pages through everything userID commented, newest first.
func (s *Service) UserComments(ctx context.Context, userID uint64, page int) (pagination.Page[Comment], error) {
	rows, err := s.comments.ListByUser(ctx, userID, pagination.Params{Page: page, PerPage: CommentsPerPage})
	if err != nil {
		return pagination.Page[Comment]{}, svcErr.Map(err)
	}
	return s.commentPage(rows), nil
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
