// Package social covers likes, matches, discovery and friendships.
package social

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/app"
	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/geo"
	"github.com/oggyb/socialtinder/internal/repository"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/validation"
)

// PotentialMatchLimit caps one potential-matches response.
const PotentialMatchLimit = 20

type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	likes   *repository.LikeRepository
	friends *repository.FriendshipRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		likes:   repository.NewLikeRepository(appCtx.DB),
		friends: repository.NewFriendshipRepository(appCtx.DB),
	}
}

type LikeInput struct {
	Action string `json:"action" validate:"required,oneof=like dislike"`
}

type LikeResult struct {
	Action       string `json:"action"`
	TargetUserID uint64 `json:"target_user_id"`
	IsMatch      bool   `json:"is_match"`
}

// Like records the caller's like or dislike of targetID.
//
// Behavior:
//   - A second decision on the same user overwrites the first.
//   - A like that makes the pair mutual writes the match in both directions.
//   - A dislike deactivates any active match between the two.
//
// Example:
//
//	svc.Like(ctx, id, 42, social.LikeInput{Action: "like"})
func (s *Service) Like(ctx context.Context, id auth.Identity, targetID uint64, in LikeInput) (*LikeResult, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, id, targetID); err != nil {
		return nil, err
	}

	res := &LikeResult{Action: in.Action, TargetUserID: targetID}
	newMatch := false
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likes.WithTx(tx)
		if _, err := likes.Upsert(ctx, id.UserID, targetID, in.Action); err != nil {
			return err
		}
		if in.Action == db.LikeActionDislike {
			_, err := likes.DeactivateMatch(ctx, id.UserID, targetID)
			return err
		}

		mutual, err := likes.HasLiked(ctx, targetID, id.UserID)
		if err != nil || !mutual {
			return err
		}
		already, err := likes.MatchedSet(ctx, id.UserID, []uint64{targetID})
		if err != nil {
			return err
		}
		res.IsMatch = true
		if already[targetID] {
			return nil
		}
		newMatch = true
		return likes.ActivateMatch(ctx, id.UserID, targetID, s.appCtx.Now())
	})
	if err != nil {
		s.appCtx.Logger.Error("like failed", "user_id", id.UserID, "target", targetID, "err", err)
		return nil, svcErr.Map(err)
	}

	if newMatch {
		s.appCtx.Metrics.MatchesCreated.Inc()
		s.appCtx.Logger.Info("match created", "user_id", id.UserID, "target", targetID)
	}
	return res, nil
}

// Unlike removes the caller's decision on targetID and any match it held up.
func (s *Service) Unlike(ctx context.Context, id auth.Identity, targetID uint64) error {
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likes.WithTx(tx)
		if _, err := likes.Delete(ctx, id.UserID, targetID); err != nil {
			return err
		}
		_, err := likes.DeactivateMatch(ctx, id.UserID, targetID)
		return err
	})
	if err != nil {
		return svcErr.Map(err)
	}
	return nil
}

func (s *Service) checkTarget(ctx context.Context, id auth.Identity, targetID uint64) error {
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	if targetID == id.UserID {
		return svcErr.DomainRule("You cannot like/dislike yourself")
	}
	return nil
}

type LikeEntry struct {
	User    *view.User `json:"user"`
	LikedAt time.Time  `json:"liked_at"`
}

type MyLikes struct {
	MyLikes []LikeEntry `json:"my_likes"`
	LikedBy []LikeEntry `json:"liked_by"`
}

// MyLikes lists who the caller likes and who likes the caller.
func (s *Service) MyLikes(ctx context.Context, id auth.Identity) (*MyLikes, error) {
	mine, err := s.likes.MyLikes(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	by, err := s.likes.LikedBy(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := &MyLikes{MyLikes: make([]LikeEntry, 0, len(mine)), LikedBy: make([]LikeEntry, 0, len(by))}
	for _, l := range mine {
		out.MyLikes = append(out.MyLikes, LikeEntry{User: view.NewUser(s.appCtx.Storage, l.LikedUser), LikedAt: l.UpdatedAt})
	}
	for _, l := range by {
		out.LikedBy = append(out.LikedBy, LikeEntry{User: view.NewUser(s.appCtx.Storage, l.User), LikedAt: l.UpdatedAt})
	}
	return out, nil
}

// Candidate is a user as seen by the caller during discovery.
type Candidate struct {
	*view.User
	Distance  *float64 `json:"distance,omitempty"`
	IsLiked   bool     `json:"is_liked"`
	IsLikedBy bool     `json:"is_liked_by"`
	IsMatch   bool     `json:"is_match"`
}

type CountryUsers struct {
	Users           []Candidate `json:"users"`
	FilteredCountry string      `json:"filtered_country"`
}

// UsersByCountry lists other users from country, which defaults to the
// caller's own.
func (s *Service) UsersByCountry(ctx context.Context, id auth.Identity, country string) (*CountryUsers, error) {
	if country == "" {
		me, err := s.users.FindByID(ctx, id.UserID)
		if err != nil {
			return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
		}
		country = me.Country
	}
	users, err := s.users.ListByCountry(ctx, country, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	cands, err := s.annotate(ctx, id.UserID, users, nil)
	if err != nil {
		return nil, err
	}
	return &CountryUsers{Users: cands, FilteredCountry: country}, nil
}

func (s *Service) Countries(ctx context.Context) ([]string, error) {
	out, err := s.users.Countries(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// FilterInput is read from the query string.
type FilterInput struct {
	MinAge             *int     `json:"min_age" validate:"omitempty,min=18,max=100"`
	MaxAge             *int     `json:"max_age" validate:"omitempty,min=18,max=100"`
	Gender             string   `json:"gender" validate:"omitempty,oneof=male female other"`
	Nationality        string   `json:"nationality" validate:"max=100"`
	MaxDistance        *float64 `json:"max_distance" validate:"omitempty,min=1"`
	MinHeight          *int     `json:"min_height" validate:"omitempty,min=100,max=250"`
	MaxHeight          *int     `json:"max_height" validate:"omitempty,min=100,max=250"`
	RelationshipStatus string   `json:"relationship_status" validate:"omitempty,oneof=single in_relationship married complicated"`
	Interests          []string `json:"interests" validate:"omitempty,dive,max=50"`
	Location           string   `json:"location" validate:"max=255"`
}

func (in *FilterInput) Rules(errs validation.Errors) {
	if in.MinAge != nil && in.MaxAge != nil && *in.MaxAge < *in.MinAge {
		errs.Add("max_age", "The max age field must be greater than or equal to min age.")
	}
	if in.MinHeight != nil && in.MaxHeight != nil && *in.MaxHeight < *in.MinHeight {
		errs.Add("max_height", "The max height field must be greater than or equal to min height.")
	}
}

func (in FilterInput) sqlFilter() repository.UserFilter {
	return repository.UserFilter{
		MinAge:             in.MinAge,
		MaxAge:             in.MaxAge,
		Gender:             in.Gender,
		Nationality:        in.Nationality,
		MinHeight:          in.MinHeight,
		MaxHeight:          in.MaxHeight,
		RelationshipStatus: in.RelationshipStatus,
		Location:           in.Location,
	}
}

// origin returns the caller's coordinates when the distance filter applies.
func origin(me *db.User, in FilterInput) (lat, lon float64, ok bool) {
	if in.MaxDistance == nil || me.Latitude == nil || me.Longitude == nil {
		return 0, 0, false
	}
	return *me.Latitude, *me.Longitude, true
}

// Filter searches other users by attributes, interests and distance.
//
// Behavior:
//   - Every requested interest must be present on the candidate.
//   - max_distance only applies when the caller has coordinates; then
//     candidates without coordinates are dropped and results are sorted by
//     distance, rounded to 0.1 km.
func (s *Service) Filter(ctx context.Context, id auth.Identity, in FilterInput) ([]Candidate, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	me, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	lat, lon, byDistance := origin(me, in)

	users, err := s.users.Filter(ctx, id.UserID, in.sqlFilter(), byDistance)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	users = withInterests(users, in.Interests)

	dist := map[uint64]float64{}
	if byDistance {
		kept := users[:0]
		for _, u := range users {
			d := geo.Distance(lat, lon, *u.Latitude, *u.Longitude)
			if d <= *in.MaxDistance {
				dist[u.ID] = d
				kept = append(kept, u)
			}
		}
		users = kept
		sort.SliceStable(users, func(i, j int) bool { return dist[users[i].ID] < dist[users[j].ID] })
	}

	return s.annotate(ctx, id.UserID, users, dist)
}

// PotentialMatches suggests users the caller has not decided on yet.
//
// Behavior:
//   - Skips users already liked, disliked or actively matched.
//   - Candidates need at least one photo; photos are embedded primary first.
//   - Order is random; at most PotentialMatchLimit are returned.
func (s *Service) PotentialMatches(ctx context.Context, id auth.Identity, in FilterInput) ([]Candidate, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	me, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, "User not found"))
	}
	lat, lon, byDistance := origin(me, in)

	// filters that run in Go need the whole candidate set before the cap
	limit := PotentialMatchLimit
	if byDistance || len(in.Interests) > 0 {
		limit = 0
	}
	users, err := s.users.PotentialMatches(ctx, id.UserID, in.sqlFilter(), byDistance, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	users = withInterests(users, in.Interests)

	dist := map[uint64]float64{}
	if byDistance {
		kept := users[:0]
		for _, u := range users {
			if d := geo.Distance(lat, lon, *u.Latitude, *u.Longitude); d <= *in.MaxDistance {
				dist[u.ID] = d
				kept = append(kept, u)
			}
		}
		users = kept
	}
	if len(users) > PotentialMatchLimit {
		users = users[:PotentialMatchLimit]
	}
	return s.annotate(ctx, id.UserID, users, dist)
}

func withInterests(users []db.User, want []string) []db.User {
	if len(want) == 0 {
		return users
	}
	kept := users[:0]
	for _, u := range users {
		ok := true
		for _, w := range want {
			if !slices.Contains(u.Interests, w) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, u)
		}
	}
	return kept
}

// annotate adds the caller-relative flags and, when known, the distance.
func (s *Service) annotate(ctx context.Context, me uint64, users []db.User, dist map[uint64]float64) ([]Candidate, error) {
	out := make([]Candidate, 0, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]uint64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	liked, err := s.likes.LikedSet(ctx, me, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	likedBy, err := s.likes.LikedBySet(ctx, me, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	matched, err := s.likes.MatchedSet(ctx, me, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	for i := range users {
		u := &users[i]
		c := Candidate{
			User:      view.NewUser(s.appCtx.Storage, u),
			IsLiked:   liked[u.ID],
			IsLikedBy: likedBy[u.ID],
			IsMatch:   matched[u.ID],
		}
		if d, ok := dist[u.ID]; ok {
			r := geo.Round1(d)
			c.Distance = &r
		}
		out = append(out, c)
	}
	return out, nil
}

type MatchEntry struct {
	User      *view.User `json:"user"`
	MatchedAt time.Time  `json:"matched_at"`
}

// Matches lists the caller's active matches, most recent first.
func (s *Service) Matches(ctx context.Context, id auth.Identity) ([]MatchEntry, error) {
	rows, err := s.likes.Matches(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]MatchEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, MatchEntry{User: view.NewUser(s.appCtx.Storage, m.MatchedUser), MatchedAt: m.MatchedAt})
	}
	return out, nil
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
