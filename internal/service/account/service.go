package account

import (
	"context"
	"errors"
	"strings"
	"time"

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

// Service owns registration, login/logout and the caller's own profile.
type Service struct {
	appCtx *app.AppContext
	jwt    *auth.JWTService
	users  *repository.UserRepository
	photos *repository.PhotoRepository
}

func NewService(appCtx *app.AppContext, jwt *auth.JWTService) *Service {
	return &Service{
		appCtx: appCtx,
		jwt:    jwt,
		users:  repository.NewUserRepository(appCtx.DB),
		photos: repository.NewPhotoRepository(appCtx.DB),
	}
}

type RegisterInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	Country     string  `json:"country" validate:"required,max=100"`
	PhoneNumber string  `json:"phone_number" validate:"required,max=20"`
	Username    *string `json:"username" validate:"omitempty,min=3,max=64"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what register and login hand back.
type Session struct {
	User  *view.User `json:"user"`
	Token auth.Token `json:"token"`
}

const (
	emailTaken    = "The email has already been taken."
	usernameTaken = "The username has already been taken."
)

// Register creates an account and signs the caller in.
//
// Behavior:
//   - Email is stored lowercased; email and username must be unique.
//   - A unique violation from a concurrent signup is reported exactly like
//     the pre-check.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = blankToNil(in.Username)
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	if err := s.checkTaken(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	now := s.appCtx.Now()
	u := db.User{
		Name:         in.Name,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Country:      in.Country,
		PhoneNumber:  in.PhoneNumber,
		LastActive:   &now,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if svcErr.IsDuplicate(err) {
			return nil, s.duplicateSignup(ctx, in.Email, in.Username)
		}
		s.appCtx.Logger.Error("create user failed", "err", err)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Metrics.UsersRegistered.Inc()
	s.appCtx.Logger.Info("user registered", "user_id", u.ID)

	return s.session(&u)
}

// checkTaken reports which of email and username already belong to someone.
func (s *Service) checkTaken(ctx context.Context, email string, username *string) error {
	errs := validation.Errors{}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		errs.Add("email", emailTaken)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.Map(err)
	}
	if username != nil {
		if _, err := s.users.FindByUsername(ctx, *username); err == nil {
			errs.Add("username", usernameTaken)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.Map(err)
		}
	}
	return errs.Err()
}

// duplicateSignup names the field a concurrent signup took first. The
// winner's row is committed by now, so the same lookups find it.
func (s *Service) duplicateSignup(ctx context.Context, email string, username *string) error {
	if err := s.checkTaken(ctx, email, username); err != nil {
		return err
	}
	return validation.Errors{"email": {emailTaken}}.Err()
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// Login checks credentials. Unknown email and wrong password look the same.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Map(err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, svcErr.Unauthenticated("Invalid credentials")
	}

	now := s.appCtx.Now()
	u.LastActive = &now
	if err := s.appCtx.DB.WithContext(ctx).Model(u).UpdateColumn("last_active", now).Error; err != nil {
		s.appCtx.Logger.Warn("touch last_active failed", "user_id", u.ID, "err", err)
	}
	return s.session(u)
}

func (s *Service) session(u *db.User) (*Session, error) {
	tok, err := s.jwt.GenerateAccessToken(u.ID, u.IsAdmin)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return &Session{User: view.NewUser(s.appCtx.Storage, u), Token: tok}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, id auth.Identity) error {
	ttl := time.Unix(id.TokenExpiry, 0).Sub(s.appCtx.Now())
	if err := s.appCtx.RedisCache.RevokeToken(ctx, id.TokenID, ttl); err != nil {
		s.appCtx.Logger.Error("revoke token failed", "user_id", id.UserID, "err", err)
		return svcErr.Internal(err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, id auth.Identity) (*view.User, error) {
	u, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	return view.NewUser(s.appCtx.Storage, u), nil
}

// ProfileInput is the editable part of a user. It is pre-filled from the
// stored row before the request is applied.
type ProfileInput struct {
	Description        string   `json:"description" validate:"max=1000"`
	Age                *int     `json:"age" validate:"omitempty,min=18,max=100"`
	Nationality        string   `json:"nationality" validate:"max=100"`
	Gender             string   `json:"gender" validate:"omitempty,oneof=male female other"`
	Height             *int     `json:"height" validate:"omitempty,min=100,max=250"`
	Interests          []string `json:"interests" validate:"omitempty,max=20,dive,max=50"`
	Location           string   `json:"location" validate:"max=255"`
	Latitude           *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude          *float64 `json:"longitude" validate:"omitempty,longitude"`
	Username           *string  `json:"username" validate:"omitempty,min=3,max=64"`
	Bio                string   `json:"bio" validate:"max=1000"`
	RelationshipStatus string   `json:"relationship_status" validate:"omitempty,oneof=single in_relationship married complicated"`
	LookingFor         string   `json:"looking_for" validate:"omitempty,oneof=male female both"`
	Education          string   `json:"education" validate:"max=255"`
	Occupation         string   `json:"occupation" validate:"max=255"`
	Instagram          string   `json:"instagram" validate:"max=255"`
	Facebook           string   `json:"facebook" validate:"max=255"`
	Twitter            string   `json:"twitter" validate:"max=255"`
}

func profileInputFrom(u *db.User) ProfileInput {
	return ProfileInput{
		Description:        u.Description,
		Age:                u.Age,
		Nationality:        u.Nationality,
		Gender:             u.Gender,
		Height:             u.Height,
		Interests:          u.Interests,
		Location:           u.Location,
		Latitude:           u.Latitude,
		Longitude:          u.Longitude,
		Username:           u.Username,
		Bio:                u.Bio,
		RelationshipStatus: u.RelationshipStatus,
		LookingFor:         u.LookingFor,
		Education:          u.Education,
		Occupation:         u.Occupation,
		Instagram:          u.Instagram,
		Facebook:           u.Facebook,
		Twitter:            u.Twitter,
	}
}

// UpdateProfile applies a partial update and an optional new profile photo.
//
// Behavior:
//   - Fields missing from the request keep their stored values.
//   - A new photo replaces profile_photo; the old blob is deleted unless a
//     gallery photo still points at it.
func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, patch validation.Patch, photo *storage.File) (*view.User, error) {
	u, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}

	in := profileInputFrom(u)
	if patch != nil {
		if err := patch(&in); err != nil {
			return nil, err
		}
	}
	in.Username = blankToNil(in.Username)
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if photo != nil {
		storage.ProfilePhotoRule.Check(errs, "profile_photo", *photo)
	}
	if in.Username != nil && (u.Username == nil || *u.Username != *in.Username) {
		if _, err := s.users.FindByUsername(ctx, *in.Username); err == nil {
			errs.Add("username", usernameTaken)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.Map(err)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	oldPhoto := u.ProfilePhoto
	var newPath string
	if photo != nil {
		newPath, err = storage.Save(ctx, s.appCtx.Storage, "profile_photos", *photo)
		if err != nil {
			return nil, svcErr.Internal(err)
		}
	}

	applyProfile(u, in)
	if newPath != "" {
		u.ProfilePhoto = &newPath
	}
	if err := s.users.Save(ctx, u); err != nil {
		if newPath != "" {
			storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, newPath)
		}
		if svcErr.IsDuplicate(err) {
			return nil, validation.Errors{"username": {usernameTaken}}.Err()
		}
		return nil, svcErr.Map(err)
	}

	if newPath != "" && oldPhoto != nil && *oldPhoto != "" {
		s.dropOrphanedPhoto(ctx, u.ID, *oldPhoto)
	}
	return view.NewUser(s.appCtx.Storage, u), nil
}

func applyProfile(u *db.User, in ProfileInput) {
	u.Description = in.Description
	u.Age = in.Age
	u.Nationality = in.Nationality
	u.Gender = in.Gender
	u.Height = in.Height
	u.Interests = in.Interests
	u.Location = in.Location
	u.Latitude = in.Latitude
	u.Longitude = in.Longitude
	u.Username = in.Username
	u.Bio = in.Bio
	u.RelationshipStatus = in.RelationshipStatus
	u.LookingFor = in.LookingFor
	u.Education = in.Education
	u.Occupation = in.Occupation
	u.Instagram = in.Instagram
	u.Facebook = in.Facebook
	u.Twitter = in.Twitter
}

// dropOrphanedPhoto deletes a replaced profile photo blob when no gallery
// row references it.
func (s *Service) dropOrphanedPhoto(ctx context.Context, userID uint64, path string) {
	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Warn("list photos failed", "user_id", userID, "err", err)
		return
	}
	for _, p := range photos {
		if p.PhotoPath == path {
			return
		}
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, path)
}
