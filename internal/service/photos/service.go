// Package photos manages a user's photo gallery and its primary photo.
package photos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	photoNotFound = "Photo not found"
	notOwner      = "Unauthorized access"
)

type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	photos *repository.PhotoRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		photos: repository.NewPhotoRepository(appCtx.DB),
	}
}

// List returns userID's gallery, primary first.
func (s *Service) List(ctx context.Context, userID uint64) ([]view.Photo, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	rows, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return view.NewPhotos(s.appCtx.Storage, rows), nil
}

type StoreInput struct {
	IsPrimary bool `json:"is_primary"`
	Order     int  `json:"order" validate:"min=0"`
}

// Store uploads a new gallery photo.
//
// Behavior:
//   - A primary upload takes over from the previous primary and is mirrored
//     into users.profile_photo in the same transaction.
//   - The blob is removed again if the row cannot be written.
func (s *Service) Store(ctx context.Context, id auth.Identity, in StoreInput, photo *storage.File) (*view.Photo, error) {
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if photo == nil {
		errs.Add("photo", "The photo field is required.")
	} else {
		storage.GalleryPhotoRule.Check(errs, "photo", *photo)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	path, err := storage.Save(ctx, s.appCtx.Storage, "user_photos", *photo)
	if err != nil {
		return nil, svcErr.Internal(err)
	}

	row := db.UserPhoto{UserID: id.UserID, PhotoPath: path, IsPrimary: in.IsPrimary, Order: in.Order}
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IsPrimary {
			if _, err := s.users.WithTx(tx).LockByID(ctx, id.UserID); err != nil {
				return err
			}
		}
		if err := s.photos.WithTx(tx).Create(ctx, &row); err != nil {
			return err
		}
		if !in.IsPrimary {
			return nil
		}
		return s.makePrimary(ctx, tx, id.UserID, &row)
	})
	if err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, path)
		s.appCtx.Logger.Error("store photo failed", "user_id", id.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	v := view.NewPhoto(s.appCtx.Storage, row)
	return &v, nil
}

func (s *Service) Show(ctx context.Context, photoID uint64) (*view.Photo, error) {
	p, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, photoNotFound))
	}
	v := view.NewPhoto(s.appCtx.Storage, *p)
	return &v, nil
}

// UpdateInput only touches the fields that are present.
type UpdateInput struct {
	IsPrimary *bool `json:"is_primary"`
	Order     *int  `json:"order" validate:"omitempty,min=0"`
}

// Update changes a photo's order or primary flag.
//
// Behavior:
//   - Ownership is checked up front; the photo is then re-read under the
//     user row lock so a concurrent primary change is never overwritten.
//   - Only sort_order and is_primary are written.
func (s *Service) Update(ctx context.Context, id auth.Identity, photoID uint64, in UpdateInput) (*view.Photo, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, id, photoID); err != nil {
		return nil, err
	}

	var p *db.UserPhoto
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.lockedPhoto(ctx, tx, id.UserID, photoID); err != nil {
			return err
		}
		photos := s.photos.WithTx(tx)
		if in.Order != nil && *in.Order != p.Order {
			if err := photos.SetOrder(ctx, p.ID, *in.Order); err != nil {
				return err
			}
			p.Order = *in.Order
		}
		switch {
		case in.IsPrimary == nil:
			return nil
		case *in.IsPrimary:
			return s.makePrimary(ctx, tx, id.UserID, p)
		case p.IsPrimary:
			if err := photos.ClearPrimary(ctx, id.UserID, 0); err != nil {
				return err
			}
			p.IsPrimary = false
			return s.users.WithTx(tx).SetProfilePhoto(ctx, id.UserID, nil)
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, photoNotFound))
	}
	v := view.NewPhoto(s.appCtx.Storage, *p)
	return &v, nil
}

// SetPrimary makes photoID the caller's primary photo.
func (s *Service) SetPrimary(ctx context.Context, id auth.Identity, photoID uint64) (*view.Photo, error) {
	if _, err := s.owned(ctx, id, photoID); err != nil {
		return nil, err
	}
	var p *db.UserPhoto
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.lockedPhoto(ctx, tx, id.UserID, photoID); err != nil {
			return err
		}
		return s.makePrimary(ctx, tx, id.UserID, p)
	})
	if err != nil {
		s.appCtx.Logger.Error("set primary failed", "user_id", id.UserID, "photo_id", photoID, "err", err)
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, photoNotFound))
	}
	v := view.NewPhoto(s.appCtx.Storage, *p)
	return &v, nil
}

// lockedPhoto takes the user row lock, then re-reads the photo inside tx.
// Every primary change for a user queues behind that lock, so the returned
// row is current until tx ends.
func (s *Service) lockedPhoto(ctx context.Context, tx *gorm.DB, userID, photoID uint64) (*db.UserPhoto, error) {
	if _, err := s.users.WithTx(tx).LockByID(ctx, userID); err != nil {
		return nil, err
	}
	p, err := s.photos.WithTx(tx).FindOne(ctx, "id = ? AND user_id = ?", photoID, userID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// makePrimary must run inside tx after the user row lock is taken.
func (s *Service) makePrimary(ctx context.Context, tx *gorm.DB, userID uint64, p *db.UserPhoto) error {
	photos := s.photos.WithTx(tx)
	if err := photos.ClearPrimary(ctx, userID, p.ID); err != nil {
		return err
	}
	if err := photos.MarkPrimary(ctx, p.ID); err != nil {
		return err
	}
	p.IsPrimary = true
	return s.users.WithTx(tx).SetProfilePhoto(ctx, userID, &p.PhotoPath)
}

// Delete removes a photo and its blob. When it was the primary, the next
// photo by order takes over, or profile_photo is cleared.
func (s *Service) Delete(ctx context.Context, id auth.Identity, photoID uint64) error {
	if _, err := s.owned(ctx, id, photoID); err != nil {
		return err
	}

	var p *db.UserPhoto
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.lockedPhoto(ctx, tx, id.UserID, photoID); err != nil {
			return err
		}
		photos := s.photos.WithTx(tx)
		if err := photos.Delete(ctx, p); err != nil {
			return err
		}
		if !p.IsPrimary {
			return nil
		}
		next, err := photos.NextForPrimary(ctx, id.UserID)
		if isMissing(err) {
			return s.users.WithTx(tx).SetProfilePhoto(ctx, id.UserID, nil)
		} else if err != nil {
			return err
		}
		return s.makePrimary(ctx, tx, id.UserID, next)
	})
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, photoNotFound))
	}

	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, p.PhotoPath)
	return nil
}

type OrderItem struct {
	ID    uint64 `json:"id" validate:"required"`
	Order *int   `json:"order" validate:"required,min=0"`
}

type ReorderInput struct {
	PhotoOrder []OrderItem `json:"photo_order" validate:"required,min=1,dive"`
}

// Reorder sets the order of several photos at once. Every id must belong to
// the caller, otherwise nothing changes.
func (s *Service) Reorder(ctx context.Context, id auth.Identity, in ReorderInput) ([]view.Photo, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}

	seen := map[uint64]bool{}
	ids := make([]uint64, 0, len(in.PhotoOrder))
	for _, it := range in.PhotoOrder {
		if !seen[it.ID] {
			seen[it.ID] = true
			ids = append(ids, it.ID)
		}
	}
	owned, err := s.photos.CountOwned(ctx, id.UserID, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if owned != int64(len(ids)) {
		return nil, svcErr.Forbidden("One or more photos do not belong to the user")
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)
		for _, it := range in.PhotoOrder {
			if err := photos.SetOrder(ctx, it.ID, *it.Order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.List(ctx, id.UserID)
}

// owned loads photoID and checks the caller owns it.
func (s *Service) owned(ctx context.Context, id auth.Identity, photoID uint64) (*db.UserPhoto, error) {
	p, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, photoNotFound))
	}
	if p.UserID != id.UserID {
		return nil, svcErr.Forbidden(notOwner)
	}
	return p, nil
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
