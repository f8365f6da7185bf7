package restaurants

import (
	"context"
	"slices"
	"time"

	"gorm.io/datatypes"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	reviewNotFound  = "Review not found"
	reviewPhotosDir = "review_photos"
	alreadyReviewed = "You have already reviewed this restaurant. Please update your existing review."
	notReviewed     = "You have not reviewed this restaurant yet"
	notYourReview   = "You are not authorized to modify this review"
)

type Review struct {
	db.RestaurantReview
	User      *view.User `json:"user,omitempty"`
	PhotoURLs []string   `json:"photo_urls"`
}

func (s *Service) reviewView(r db.RestaurantReview) Review {
	return Review{
		RestaurantReview: r,
		User:             view.NewUser(s.appCtx.Storage, r.User),
		PhotoURLs:        storage.URLs(s.appCtx.Storage, r.Photos),
	}
}

type ReviewList struct {
	Restaurant Ref                       `json:"restaurant"`
	Reviews    pagination.Page[Review] `json:"reviews"`
}

// Reviews pages through a restaurant's reviews, newest first.
func (s *Service) Reviews(ctx context.Context, restaurantID uint64, page int) (*ReviewList, error) {
	r, err := s.find(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.reviews.ListByRestaurant(ctx, r.ID, pagination.Params{Page: page, PerPage: ReviewsPerPage})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ReviewList{Restaurant: Ref{ID: r.ID, Name: r.Name}, Reviews: pagination.Map(rows, s.reviewView)}, nil
}

// ReviewInput is pre-filled from the stored review on update.
type ReviewInput struct {
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   string  `json:"comment" validate:"required"`
	VisitDate *string `json:"visit_date" validate:"omitempty,date"`
}

func reviewInputFrom(r *db.RestaurantReview) ReviewInput {
	in := ReviewInput{Rating: r.Rating, Comment: r.Comment}
	if r.VisitDate != nil {
		v := time.Time(*r.VisitDate).Format(validation.DateLayout)
		in.VisitDate = &v
	}
	return in
}

func applyReview(r *db.RestaurantReview, in ReviewInput) {
	r.Rating = in.Rating
	r.Comment = in.Comment
	r.VisitDate = nil
	if in.VisitDate != nil && *in.VisitDate != "" {
		d := datatypes.Date(validation.ParseDate(*in.VisitDate))
		r.VisitDate = &d
	}
}

// CreateReview records the caller's one review of a restaurant.
func (s *Service) CreateReview(ctx context.Context, id auth.Identity, restaurantID uint64, in ReviewInput, photos []storage.File) (*Review, error) {
	r, err := s.find(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	storage.ImageRule.CheckAll(errs, "photos", photos, 0)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.reviews.FindByAuthor(ctx, r.ID, id.UserID); err == nil {
		return nil, svcErr.DomainRule(alreadyReviewed)
	} else if !isMissing(err) {
		return nil, svcErr.Map(err)
	}

	paths, err := storage.SaveAll(ctx, s.appCtx.Storage, reviewPhotosDir, photos)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	rev := db.RestaurantReview{RestaurantID: r.ID, UserID: id.UserID, Photos: paths}
	applyReview(&rev, in)
	if err := s.reviews.Create(ctx, &rev); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, paths...)
		return nil, svcErr.Map(svcErr.Duplicate(err, alreadyReviewed))
	}
	return s.ShowReview(ctx, r.ID, rev.ID)
}

func (s *Service) ShowReview(ctx context.Context, restaurantID, reviewID uint64) (*Review, error) {
	rev, err := s.reviews.FindInRestaurant(ctx, restaurantID, reviewID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, reviewNotFound))
	}
	out := s.reviewView(*rev)
	return &out, nil
}

// MyReview returns the caller's review of a restaurant.
func (s *Service) MyReview(ctx context.Context, id auth.Identity, restaurantID uint64) (*Review, error) {
	rev, err := s.reviews.FindByAuthor(ctx, restaurantID, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, notReviewed))
	}
	out := s.reviewView(*rev)
	return &out, nil
}

// UpdateReview applies a partial update. Uploaded photos are appended to the
// ones already on the review.
func (s *Service) UpdateReview(ctx context.Context, id auth.Identity, restaurantID, reviewID uint64, patch validation.Patch, photos []storage.File) (*Review, error) {
	rev, err := s.authored(ctx, id, restaurantID, reviewID)
	if err != nil {
		return nil, err
	}

	in := reviewInputFrom(rev)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	storage.ImageRule.CheckAll(errs, "photos", photos, 0)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	paths, err := storage.SaveAll(ctx, s.appCtx.Storage, reviewPhotosDir, photos)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	applyReview(rev, in)
	rev.Photos = append(slices.Clone(rev.Photos), paths...)
	rev.User = nil
	if err := s.reviews.Save(ctx, rev); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, paths...)
		return nil, svcErr.Map(err)
	}
	return s.ShowReview(ctx, restaurantID, rev.ID)
}

// DeleteReview removes a review and its photos. Authors and admins only.
func (s *Service) DeleteReview(ctx context.Context, id auth.Identity, restaurantID, reviewID uint64) error {
	rev, err := s.authored(ctx, id, restaurantID, reviewID)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, rev); err != nil {
		return svcErr.Map(err)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, rev.Photos...)
	return nil
}

func (s *Service) authored(ctx context.Context, id auth.Identity, restaurantID, reviewID uint64) (*db.RestaurantReview, error) {
	rev, err := s.reviews.FindInRestaurant(ctx, restaurantID, reviewID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, reviewNotFound))
	}
	if !id.CanModify(rev.UserID) {
		return nil, svcErr.Forbidden(notYourReview)
	}
	return rev, nil
}
