package social

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/validation"
)

const friendshipExists = "Friend request already sent or friendship already exists"

// Friends lists the caller's accepted friends.
func (s *Service) Friends(ctx context.Context, id auth.Identity) ([]*view.User, error) {
	rows, err := s.friends.ListAccepted(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]*view.User, 0, len(rows))
	for _, f := range rows {
		if f.Friend != nil {
			out = append(out, view.NewUser(s.appCtx.Storage, f.Friend))
		}
	}
	return out, nil
}

type FriendInput struct {
	Username string `json:"username" validate:"required"`
}

// AddFriend sends a pending request to the user called in.Username.
//
// Behavior:
//   - An unknown username is a validation error on username.
//   - An existing caller -> target edge, pending or accepted, is rejected,
//     both by the pre-check and by the unique index.
func (s *Service) AddFriend(ctx context.Context, id auth.Identity, in FriendInput) (*view.User, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}
	target, err := s.users.FindByUsername(ctx, in.Username)
	if isMissing(err) {
		return nil, validation.Errors{"username": {"The selected username is invalid."}}.Err()
	} else if err != nil {
		return nil, svcErr.Map(err)
	}
	if target.ID == id.UserID {
		return nil, svcErr.DomainRule("You cannot add yourself as a friend")
	}

	if _, err := s.friends.Find(ctx, id.UserID, target.ID); err == nil {
		return nil, svcErr.DomainRule(friendshipExists)
	} else if !isMissing(err) {
		return nil, svcErr.Map(err)
	}

	row := db.Friendship{UserID: id.UserID, FriendID: target.ID, Status: db.FriendshipPending}
	if err := s.friends.Create(ctx, &row); err != nil {
		return nil, svcErr.Map(svcErr.Duplicate(err, friendshipExists))
	}
	s.appCtx.Logger.Info("friend request sent", "user_id", id.UserID, "friend_id", target.ID)
	return view.NewUser(s.appCtx.Storage, target), nil
}

type FriendRequest struct {
	User        *view.User `json:"user"`
	RequestedAt time.Time  `json:"requested_at"`
}

// FriendRequests lists pending requests sent to the caller.
func (s *Service) FriendRequests(ctx context.Context, id auth.Identity) ([]FriendRequest, error) {
	rows, err := s.friends.PendingFor(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]FriendRequest, 0, len(rows))
	for _, f := range rows {
		out = append(out, FriendRequest{User: view.NewUser(s.appCtx.Storage, f.User), RequestedAt: f.CreatedAt})
	}
	return out, nil
}

type RespondInput struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// RespondFriendRequest accepts or rejects the pending request from
// requesterID and reports whether it was accepted.
//
// Behavior:
//   - accept marks the request accepted and writes the reverse edge as
//     accepted, in one transaction.
//   - reject deletes the request; a reverse edge, if any, is untouched.
func (s *Service) RespondFriendRequest(ctx context.Context, id auth.Identity, requesterID uint64, in RespondInput) (bool, error) {
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return false, err
	}
	req, err := s.friends.FindPending(ctx, requesterID, id.UserID)
	if err != nil {
		return false, svcErr.Map(svcErr.NotFoundIfMissing(err, "Friend request not found"))
	}

	if in.Action == "reject" {
		if err := s.friends.Delete(ctx, req); err != nil {
			return false, svcErr.Map(err)
		}
		return false, nil
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := s.friends.WithTx(tx)
		req.Status = db.FriendshipAccepted
		if err := friends.Save(ctx, req); err != nil {
			return err
		}
		return friends.UpsertAccepted(ctx, id.UserID, requesterID)
	})
	if err != nil {
		s.appCtx.Logger.Error("accept friend request failed", "user_id", id.UserID, "requester", requesterID, "err", err)
		return false, svcErr.Map(err)
	}
	return true, nil
}
