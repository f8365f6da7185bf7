package photos_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/photos"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func png(name string) *storage.File {
	return &storage.File{Name: name, ContentType: "image/png", Size: int64(len(pngBytes)), Data: pngBytes}
}

type fixture struct {
	app   *app.AppContext
	svc   *photos.Service
	store *storage.MemoryStore
	user  *db.User
	id    auth.Identity
}

func setup(t *testing.T) fixture {
	t.Helper()
	appCtx, _, store := testutil.NewApp(t)
	u := testutil.CreateUser(t, appCtx.DB, nil)
	return fixture{app: appCtx, svc: photos.NewService(appCtx), store: store, user: u, id: auth.Identity{UserID: u.ID}}
}

func (f fixture) profilePhoto(t *testing.T) *string {
	t.Helper()
	u, err := repository.NewUserRepository(f.app.DB).FindByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u.ProfilePhoto
}

func (f fixture) primaries(t *testing.T) int64 {
	t.Helper()
	n, err := repository.NewPhotoRepository(f.app.DB).CountPrimary(context.Background(), f.user.ID)
	require.NoError(t, err)
	return n
}

func TestStoreValidatesUpload(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Store(context.Background(), f.id, photos.StoreInput{Order: -1}, nil)
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "photo")
	assert.Contains(t, fields, "order")

	big := png("big.png")
	big.Size = 6 * storage.MB
	_, err = f.svc.Store(context.Background(), f.id, photos.StoreInput{}, big)
	assert.Contains(t, svcErr.Map(err).Fields, "photo")
	assert.Zero(t, f.store.Len())
}

func TestSetPrimaryTwiceKeepsOnePrimary(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	a, err := f.svc.Store(ctx, f.id, photos.StoreInput{IsPrimary: true}, png("a.png"))
	require.NoError(t, err)
	b, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 1}, png("b.png"))
	require.NoError(t, err)
	assert.Equal(t, a.PhotoPath, *f.profilePhoto(t))
	assert.Equal(t, "http://localhost/storage/"+a.PhotoPath, a.PhotoURL)

	_, err = f.svc.SetPrimary(ctx, f.id, b.ID)
	require.NoError(t, err)
	_, err = f.svc.SetPrimary(ctx, f.id, b.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.primaries(t))
	assert.Equal(t, b.PhotoPath, *f.profilePhoto(t))

	list, err := f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestConcurrentSetPrimary(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	var ids []uint64
	for i := 0; i < 5; i++ {
		p, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: i}, png("p.png"))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for _, pid := range ids {
		wg.Add(1)
		go func(pid uint64) {
			defer wg.Done()
			_, err := f.svc.SetPrimary(ctx, f.id, pid)
			assert.NoError(t, err)
		}(pid)
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.primaries(t))
	list, err := f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, list[0].IsPrimary)
	assert.Equal(t, list[0].PhotoPath, *f.profilePhoto(t))
}

func TestDeletePrimaryPromotesNext(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	a, err := f.svc.Store(ctx, f.id, photos.StoreInput{IsPrimary: true, Order: 0}, png("a.png"))
	require.NoError(t, err)
	b, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 3}, png("b.png"))
	require.NoError(t, err)
	c, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 1}, png("c.png"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.id, a.ID))
	assert.False(t, f.store.Has(a.PhotoPath))
	assert.Equal(t, c.PhotoPath, *f.profilePhoto(t), "lowest order takes over")

	require.NoError(t, f.svc.Delete(ctx, f.id, c.ID))
	assert.Equal(t, b.PhotoPath, *f.profilePhoto(t))

	require.NoError(t, f.svc.Delete(ctx, f.id, b.ID))
	assert.Nil(t, f.profilePhoto(t))
	assert.Zero(t, f.store.Len())
}

func TestOwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	other := testutil.CreateUser(t, f.app.DB, nil)
	p, err := f.svc.Store(ctx, f.id, photos.StoreInput{}, png("a.png"))
	require.NoError(t, err)

	intruder := auth.Identity{UserID: other.ID}
	_, err = f.svc.SetPrimary(ctx, intruder, p.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))
	assert.True(t, svcErr.Is(f.svc.Delete(ctx, intruder, p.ID), svcErr.KindForbidden))

	order := 2
	_, err = f.svc.Reorder(ctx, intruder, photos.ReorderInput{PhotoOrder: []photos.OrderItem{{ID: p.ID, Order: &order}}})
	e := svcErr.Map(err)
	assert.Equal(t, svcErr.KindForbidden, e.Kind)
	assert.Equal(t, "One or more photos do not belong to the user", e.Message)

	_, err = f.svc.Show(ctx, 9999)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestReorderAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 0}, png("a.png"))
	require.NoError(t, err)
	b, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 1}, png("b.png"))
	require.NoError(t, err)

	zero, five := 0, 5
	list, err := f.svc.Reorder(ctx, f.id, photos.ReorderInput{PhotoOrder: []photos.OrderItem{
		{ID: a.ID, Order: &five}, {ID: b.ID, Order: &zero},
	}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	yes := true
	up, err := f.svc.Update(ctx, f.id, a.ID, photos.UpdateInput{IsPrimary: &yes})
	require.NoError(t, err)
	assert.True(t, up.IsPrimary)
	assert.Equal(t, 5, up.Order)
	assert.Equal(t, a.PhotoPath, *f.profilePhoto(t))

	no := false
	_, err = f.svc.Update(ctx, f.id, a.ID, photos.UpdateInput{IsPrimary: &no})
	require.NoError(t, err)
	assert.Zero(t, f.primaries(t))
	assert.Nil(t, f.profilePhoto(t))
}

// afterNextPhotoRead runs fn once, right after the next query on user_photos
// returns. It lets a test slip a competing write between a service's read and
// its own write.
func (f fixture) afterNextPhotoRead(t *testing.T, fn func()) {
	t.Helper()
	var armed atomic.Bool
	armed.Store(true)
	err := f.app.DB.Callback().Query().After("gorm:query").Register("test:after_photo_read", func(tx *gorm.DB) {
		if tx.Statement.Table == "user_photos" && armed.CompareAndSwap(true, false) {
			fn()
		}
	})
	require.NoError(t, err)
}

func TestUpdateOrderDoesNotRestoreStalePrimary(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 0}, png("a.png"))
	require.NoError(t, err)
	b, err := f.svc.Store(ctx, f.id, photos.StoreInput{IsPrimary: true, Order: 1}, png("b.png"))
	require.NoError(t, err)

	f.afterNextPhotoRead(t, func() {
		_, err := f.svc.SetPrimary(ctx, f.id, a.ID)
		assert.NoError(t, err)
	})

	five := 5
	up, err := f.svc.Update(ctx, f.id, b.ID, photos.UpdateInput{Order: &five})
	require.NoError(t, err)
	assert.False(t, up.IsPrimary)
	assert.Equal(t, 5, up.Order)

	assert.Equal(t, int64(1), f.primaries(t))
	assert.Equal(t, a.PhotoPath, *f.profilePhoto(t))
}

func TestDeleteSeesPrimaryChangedAfterOwnershipCheck(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, err := f.svc.Store(ctx, f.id, photos.StoreInput{IsPrimary: true, Order: 0}, png("a.png"))
	require.NoError(t, err)
	b, err := f.svc.Store(ctx, f.id, photos.StoreInput{Order: 1}, png("b.png"))
	require.NoError(t, err)

	f.afterNextPhotoRead(t, func() {
		_, err := f.svc.SetPrimary(ctx, f.id, b.ID)
		assert.NoError(t, err)
	})

	require.NoError(t, f.svc.Delete(ctx, f.id, b.ID))

	assert.Equal(t, int64(1), f.primaries(t))
	require.NotNil(t, f.profilePhoto(t))
	assert.Equal(t, a.PhotoPath, *f.profilePhoto(t), "remaining photo takes over")
	assert.False(t, f.store.Has(b.PhotoPath))
}
