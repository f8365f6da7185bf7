package social_test

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/social"
	"github.com/oggyb/socialtinder/internal/testutil"
)

func setup(t *testing.T) (*app.AppContext, *social.Service) {
	t.Helper()
	appCtx, _, _ := testutil.NewApp(t)
	return appCtx, social.NewService(appCtx)
}

func as(u *db.User) auth.Identity { return auth.Identity{UserID: u.ID} }

func ptr[T any](v T) *T { return &v }

func TestLikeBecomesMatchWhenMutual(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	a := testutil.CreateUser(t, appCtx.DB, nil)
	b := testutil.CreateUser(t, appCtx.DB, nil)

	res, err := svc.Like(ctx, as(a), b.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)
	assert.False(t, res.IsMatch)

	res, err = svc.Like(ctx, as(b), a.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 1.0, promtest.ToFloat64(appCtx.Metrics.MatchesCreated))

	// liking again keeps the single match
	_, err = svc.Like(ctx, as(b), a.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(appCtx.Metrics.MatchesCreated))

	matches, err := svc.Matches(ctx, as(a))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, b.ID, matches[0].User.ID)

	_, err = svc.Like(ctx, as(a), b.ID, social.LikeInput{Action: "dislike"})
	require.NoError(t, err)
	for _, u := range []*db.User{a, b} {
		matches, err = svc.Matches(ctx, as(u))
		require.NoError(t, err)
		assert.Empty(t, matches)
	}
}

func TestLikeRejectsSelfAndUnknown(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	a := testutil.CreateUser(t, appCtx.DB, nil)

	_, err := svc.Like(ctx, as(a), a.ID, social.LikeInput{Action: "like"})
	e := svcErr.Map(err)
	assert.Equal(t, svcErr.KindDomainRule, e.Kind)
	assert.Equal(t, "You cannot like/dislike yourself", e.Message)

	_, err = svc.Like(ctx, as(a), 9999, social.LikeInput{Action: "like"})
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	_, err = svc.Like(ctx, as(a), a.ID, social.LikeInput{Action: "love"})
	assert.Contains(t, svcErr.Map(err).Fields, "action")
}

func TestUnlikeRemovesMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	a := testutil.CreateUser(t, appCtx.DB, nil)
	b := testutil.CreateUser(t, appCtx.DB, nil)

	_, err := svc.Like(ctx, as(a), b.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)
	_, err = svc.Like(ctx, as(b), a.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)

	require.NoError(t, svc.Unlike(ctx, as(a), b.ID))

	likes, err := svc.MyLikes(ctx, as(a))
	require.NoError(t, err)
	assert.Empty(t, likes.MyLikes)
	require.Len(t, likes.LikedBy, 1)
	assert.Equal(t, b.ID, likes.LikedBy[0].User.ID)

	matches, err := svc.Matches(ctx, as(b))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUsersByCountryFlags(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	me := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Country = "Kenya" })
	liked := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Country = "Kenya" })
	fan := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Country = "Kenya" })
	testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Country = "Peru" })

	_, err := svc.Like(ctx, as(me), liked.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)
	_, err = svc.Like(ctx, as(fan), me.ID, social.LikeInput{Action: "like"})
	require.NoError(t, err)

	res, err := svc.UsersByCountry(ctx, as(me), "")
	require.NoError(t, err)
	assert.Equal(t, "Kenya", res.FilteredCountry)
	require.Len(t, res.Users, 2)
	byID := map[uint64]social.Candidate{}
	for _, c := range res.Users {
		byID[c.ID] = c
	}
	assert.True(t, byID[liked.ID].IsLiked)
	assert.False(t, byID[liked.ID].IsLikedBy)
	assert.True(t, byID[fan.ID].IsLikedBy)

	countries, err := svc.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kenya", "Peru"}, countries)
}

func TestFilterByDistanceAndInterests(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)

	// Amsterdam
	me := testutil.CreateUser(t, appCtx.DB, func(u *db.User) {
		u.Latitude, u.Longitude = ptr(52.3676), ptr(4.9041)
	})
	// Utrecht, ~35 km
	near := testutil.CreateUser(t, appCtx.DB, func(u *db.User) {
		u.Latitude, u.Longitude = ptr(52.0907), ptr(5.1214)
		u.Interests = []string{"music", "hiking"}
	})
	// Haarlem, ~18 km
	nearer := testutil.CreateUser(t, appCtx.DB, func(u *db.User) {
		u.Latitude, u.Longitude = ptr(52.3874), ptr(4.6462)
		u.Interests = []string{"music"}
	})
	// Paris
	testutil.CreateUser(t, appCtx.DB, func(u *db.User) {
		u.Latitude, u.Longitude = ptr(48.8566), ptr(2.3522)
		u.Interests = []string{"music"}
	})
	// no coordinates
	testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Interests = []string{"music"} })

	got, err := svc.Filter(ctx, as(me), social.FilterInput{MaxDistance: ptr(50.0)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, nearer.ID, got[0].ID, "sorted by distance")
	assert.Equal(t, near.ID, got[1].ID)
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 17.6, *got[0].Distance, 1.0)

	got, err = svc.Filter(ctx, as(me), social.FilterInput{MaxDistance: ptr(50.0), Interests: []string{"music", "hiking"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].ID)

	// without max_distance nobody is dropped for lacking coordinates
	got, err = svc.Filter(ctx, as(me), social.FilterInput{Interests: []string{"music"}})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Nil(t, got[0].Distance)
}

func TestFilterValidation(t *testing.T) {
	appCtx, svc := setup(t)
	me := testutil.CreateUser(t, appCtx.DB, nil)

	_, err := svc.Filter(context.Background(), as(me), social.FilterInput{
		MinAge: ptr(30), MaxAge: ptr(20), MaxDistance: ptr(0.5), Gender: "robot",
	})
	fields := svcErr.Map(err).Fields
	assert.Contains(t, fields, "max_age")
	assert.Contains(t, fields, "max_distance")
	assert.Contains(t, fields, "gender")
}

func TestPotentialMatchesCapped(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	me := testutil.CreateUser(t, appCtx.DB, nil)

	for i := 0; i < social.PotentialMatchLimit+5; i++ {
		u := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Interests = []string{"chess"} })
		require.NoError(t, appCtx.DB.Create(&db.UserPhoto{UserID: u.ID, PhotoPath: "p.jpg"}).Error)
	}
	noPhoto := testutil.CreateUser(t, appCtx.DB, nil)

	got, err := svc.PotentialMatches(ctx, as(me), social.FilterInput{})
	require.NoError(t, err)
	assert.Len(t, got, social.PotentialMatchLimit)

	got, err = svc.PotentialMatches(ctx, as(me), social.FilterInput{Interests: []string{"chess"}})
	require.NoError(t, err)
	assert.Len(t, got, social.PotentialMatchLimit)
	for _, c := range got {
		assert.NotEqual(t, noPhoto.ID, c.ID)
		assert.Len(t, c.Photos, 1)
		assert.Equal(t, "http://localhost/storage/p.jpg", c.Photos[0].PhotoURL)
	}
}

func TestFriendRequestAcceptFlow(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	a := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Username = ptr("alice") })
	b := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Username = ptr("bob") })

	_, err := svc.AddFriend(ctx, as(a), social.FriendInput{Username: "bob"})
	require.NoError(t, err)

	_, err = svc.AddFriend(ctx, as(a), social.FriendInput{Username: "bob"})
	e := svcErr.Map(err)
	assert.Equal(t, svcErr.KindDomainRule, e.Kind)
	assert.Equal(t, "Friend request already sent or friendship already exists", e.Message)

	_, err = svc.AddFriend(ctx, as(a), social.FriendInput{Username: "alice"})
	assert.Equal(t, "You cannot add yourself as a friend", svcErr.Map(err).Message)

	_, err = svc.AddFriend(ctx, as(a), social.FriendInput{Username: "nobody"})
	assert.Contains(t, svcErr.Map(err).Fields, "username")

	reqs, err := svc.FriendRequests(ctx, as(b))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, a.ID, reqs[0].User.ID)

	accepted, err := svc.RespondFriendRequest(ctx, as(b), a.ID, social.RespondInput{Action: "accept"})
	require.NoError(t, err)
	assert.True(t, accepted)

	for _, pair := range [][2]*db.User{{a, b}, {b, a}} {
		friends, err := svc.Friends(ctx, as(pair[0]))
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, pair[1].ID, friends[0].ID)
	}

	_, err = svc.RespondFriendRequest(ctx, as(b), a.ID, social.RespondInput{Action: "accept"})
	e = svcErr.Map(err)
	assert.Equal(t, svcErr.KindNotFound, e.Kind)
	assert.Equal(t, "Friend request not found", e.Message)
}

func TestFriendRequestReject(t *testing.T) {
	ctx := context.Background()
	appCtx, svc := setup(t)
	a := testutil.CreateUser(t, appCtx.DB, nil)
	b := testutil.CreateUser(t, appCtx.DB, func(u *db.User) { u.Username = ptr("bob") })

	_, err := svc.AddFriend(ctx, as(a), social.FriendInput{Username: "bob"})
	require.NoError(t, err)

	accepted, err := svc.RespondFriendRequest(ctx, as(b), a.ID, social.RespondInput{Action: "reject"})
	require.NoError(t, err)
	assert.False(t, accepted)

	reqs, err := svc.FriendRequests(ctx, as(b))
	require.NoError(t, err)
	assert.Empty(t, reqs)

	// the edge is gone, so a new request goes through
	_, err = svc.AddFriend(ctx, as(a), social.FriendInput{Username: "bob"})
	require.NoError(t, err)
}
