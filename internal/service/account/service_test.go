package account_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/account"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/testutil"
	"github.com/oggyb/socialtinder/internal/validation"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	app   *app.AppContext
	svc   *account.Service
	jwt   *auth.JWTService
	clock *testutil.Clock
	store *storage.MemoryStore
}

func setupService(t *testing.T) fixture {
	t.Helper()
	appCtx, clock, store := testutil.NewApp(t)
	jwt := auth.NewJWTService("test-secret", "socialtinder", time.Hour, clock.Now)
	return fixture{app: appCtx, svc: account.NewService(appCtx, jwt), jwt: jwt, clock: clock, store: store}
}

func register(t *testing.T, f fixture, email string) *account.Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), account.RegisterInput{
		Name: "Ann", Email: email, Password: "password123", Country: "Netherlands", PhoneNumber: "0612345678",
	})
	require.NoError(t, err)
	return sess
}

func identityFor(t *testing.T, f fixture, tok string) auth.Identity {
	t.Helper()
	claims, err := f.jwt.ValidateToken(tok)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	return auth.Identity{UserID: uid, IsAdmin: claims.IsAdmin, TokenID: claims.ID, TokenExpiry: claims.ExpiresAt.Unix()}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	sess := register(t, f, "Ann@Example.com")
	assert.Equal(t, "ann@example.com", sess.User.Email)
	assert.Equal(t, "Bearer", sess.Token.TokenType)

	_, err := f.svc.Login(ctx, account.LoginInput{Email: "ann@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, account.LoginInput{Email: "ann@example.com", Password: "wrong-password"})
	require.Error(t, err)
	e := svcErr.Map(err)
	assert.Equal(t, svcErr.KindUnauthenticated, e.Kind)
	assert.Equal(t, "Invalid credentials", e.Message)

	_, err = f.svc.Login(ctx, account.LoginInput{Email: "nobody@example.com", Password: "password123"})
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := setupService(t)
	register(t, f, "ann@example.com")

	_, err := f.svc.Register(context.Background(), account.RegisterInput{
		Name: "Other", Email: "ANN@example.com", Password: "password123", Country: "NL", PhoneNumber: "1",
	})
	require.Error(t, err)
	e := svcErr.Map(err)
	assert.Equal(t, svcErr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "email")
}

func TestConcurrentSignupReportsTheCollidingField(t *testing.T) {
	f := setupService(t)
	taken := "ann"

	var armed atomic.Bool
	armed.Store(true)
	err := f.app.DB.Callback().Create().Before("gorm:begin_transaction").Register("test:rival_signup", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" && armed.CompareAndSwap(true, false) {
			testutil.CreateUser(t, f.app.DB, func(u *db.User) { u.Username = &taken })
		}
	})
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), account.RegisterInput{
		Name: "Ann", Email: "ann@example.com", Username: &taken,
		Password: "password123", Country: "Netherlands", PhoneNumber: "0612345678",
	})
	e := svcErr.Map(err)
	require.NotNil(t, e)
	assert.Equal(t, svcErr.KindValidation, e.Kind)
	assert.Equal(t, []string{"The username has already been taken."}, e.Fields["username"])
	assert.NotContains(t, e.Fields, "email")
}

func TestBlankUsernameIsStoredAsNull(t *testing.T) {
	f := setupService(t)
	blank := "  "

	for _, email := range []string{"a@example.com", "b@example.com"} {
		sess, err := f.svc.Register(context.Background(), account.RegisterInput{
			Name: "Ann", Email: email, Username: &blank,
			Password: "password123", Country: "Netherlands", PhoneNumber: "0612345678",
		})
		require.NoError(t, err)
		assert.Nil(t, sess.User.Username)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.Register(context.Background(), account.RegisterInput{Email: "not-an-email", Password: "short"})
	require.Error(t, err)
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	sess := register(t, f, "ann@example.com")
	id := identityFor(t, f, sess.Token.AccessToken)

	require.NoError(t, f.svc.Logout(ctx, id))
	revoked, err := f.app.RedisCache.IsTokenRevoked(ctx, id.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	sess := register(t, f, "ann@example.com")
	id := identityFor(t, f, sess.Token.AccessToken)

	var first validation.Patch = func(dst any) error {
		in := dst.(*account.ProfileInput)
		age := 30
		in.Age = &age
		in.Bio = "hello"
		in.Interests = []string{"music", "travel"}
		return nil
	}
	u, err := f.svc.UpdateProfile(ctx, id, first, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, *u.Age)

	var second validation.Patch = func(dst any) error {
		dst.(*account.ProfileInput).Gender = "female"
		return nil
	}
	u, err = f.svc.UpdateProfile(ctx, id, second, nil)
	require.NoError(t, err)
	assert.Equal(t, "female", u.Gender)
	assert.Equal(t, "hello", u.Bio)
	assert.Equal(t, 30, *u.Age)
	assert.Equal(t, []string{"music", "travel"}, []string(u.Interests))
}

func TestUpdateProfileRejectsBadValues(t *testing.T) {
	f := setupService(t)
	sess := register(t, f, "ann@example.com")
	id := identityFor(t, f, sess.Token.AccessToken)

	var patch validation.Patch = func(dst any) error {
		in := dst.(*account.ProfileInput)
		age := 12
		in.Age = &age
		in.Gender = "robot"
		return nil
	}
	_, err := f.svc.UpdateProfile(context.Background(), id, patch, &storage.File{Name: "x.exe", Size: 10, Data: []byte("MZ")})
	require.Error(t, err)
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "age")
	assert.Contains(t, fields, "gender")
	assert.Contains(t, fields, "profile_photo")
}

func TestUpdateProfilePhotoReplacesBlob(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	sess := register(t, f, "ann@example.com")
	id := identityFor(t, f, sess.Token.AccessToken)

	photo := &storage.File{Name: "me.png", ContentType: "image/png", Size: int64(len(pngBytes)), Data: pngBytes}
	u, err := f.svc.UpdateProfile(ctx, id, nil, photo)
	require.NoError(t, err)
	require.NotNil(t, u.ProfilePhoto)
	first := *u.ProfilePhoto
	assert.True(t, f.store.Has(first))
	require.NotNil(t, u.ProfilePhotoURL)

	u, err = f.svc.UpdateProfile(ctx, id, nil, photo)
	require.NoError(t, err)
	assert.NotEqual(t, first, *u.ProfilePhoto)
	assert.False(t, f.store.Has(first), "old blob deleted")
	assert.Equal(t, 1, f.store.Len())
}

func TestUpdateProfileKeepsGalleryBlob(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	sess := register(t, f, "ann@example.com")
	id := identityFor(t, f, sess.Token.AccessToken)

	photo := &storage.File{Name: "me.png", ContentType: "image/png", Size: int64(len(pngBytes)), Data: pngBytes}
	u, err := f.svc.UpdateProfile(ctx, id, nil, photo)
	require.NoError(t, err)
	first := *u.ProfilePhoto

	// pretend the gallery owns the current profile photo
	require.NoError(t, f.app.DB.Create(&db.UserPhoto{UserID: id.UserID, PhotoPath: first, IsPrimary: true}).Error)

	_, err = f.svc.UpdateProfile(ctx, id, nil, photo)
	require.NoError(t, err)
	assert.True(t, f.store.Has(first))
}
