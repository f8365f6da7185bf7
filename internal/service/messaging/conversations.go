// Package messaging implements conversations, group membership and messages.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
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

const conversationNotFound = "Conversation not found"

type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	convs    *repository.ConversationRepository
	messages *repository.MessageRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		convs:    repository.NewConversationRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
	}
}

// Conversation is a thread as seen by one participant.
type Conversation struct {
	db.Conversation
	OtherParticipants []*view.User `json:"other_participants"`
	LastMessage       *Message     `json:"last_message,omitempty"`
	UnreadCount       *int64       `json:"unread_count,omitempty"`
}

func (s *Service) conversationView(c db.Conversation, viewerID uint64) *Conversation {
	others := make([]*view.User, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.UserID != viewerID && p.User != nil {
			others = append(others, view.NewUser(s.appCtx.Storage, p.User))
		}
	}
	c.Participants = nil
	c.Messages = nil
	return &Conversation{Conversation: c, OtherParticipants: others}
}

// List returns the caller's conversations, most recently active first, each
// with its last message and the caller's unread count.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]*Conversation, error) {
	convs, err := s.convs.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	last, err := s.messages.LastMessages(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	unread, err := s.messages.UnreadCounts(ctx, id.UserID, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]*Conversation, 0, len(convs))
	activity := make(map[uint64]time.Time, len(convs))
	for _, c := range convs {
		v := s.conversationView(c, id.UserID)
		n := unread[c.ID]
		v.UnreadCount = &n
		activity[c.ID] = c.CreatedAt
		if m, ok := last[c.ID]; ok {
			v.LastMessage = s.messageView(m)
			activity[c.ID] = m.CreatedAt
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return activity[out[i].ID].After(activity[out[j].ID])
	})
	return out, nil
}

type CreateInput struct {
	Participants []uint64 `json:"participants" validate:"required,min=1"`
	IsGroup      bool     `json:"is_group"`
	GroupName    string   `json:"group_name" validate:"required_if=IsGroup true,max=255"`
	Message      string   `json:"message" validate:"required"`
}

// Created is the conversation a message went to, plus that message.
type Created struct {
	Conversation *Conversation `json:"conversation"`
	Message      *Message      `json:"message"`
	// Existing is set when the message joined a one-on-one thread that was
	// already there.
	Existing bool `json:"-"`
}

// Create starts a conversation with a first message.
//
// Behavior:
//   - The caller is always a participant.
//   - Two participants and no group flag means find-or-create: the message
//     joins the pair's existing thread when there is one.
//   - Two concurrent creators for the same pair collide on direct_key; the
//     loser retries and lands in the winner's thread.
//
// Example:
//
//	svc.Create(ctx, id, messaging.CreateInput{Participants: []uint64{7}, Message: "hi"})
func (s *Service) Create(ctx context.Context, id auth.Identity, in CreateInput) (*Created, error) {
	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if err := s.checkUsersExist(ctx, errs, "participants", in.Participants); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	members := uniqueIDs(in.Participants)
	if !slices.Contains(members, id.UserID) {
		members = append(members, id.UserID)
	}

	res, err := s.create(ctx, id, in, members)
	if svcErr.IsDuplicate(err) {
		s.appCtx.Logger.Info("direct conversation raced, retrying", "user_id", id.UserID)
		res, err = s.create(ctx, id, in, members)
	}
	if err != nil {
		s.appCtx.Logger.Error("create conversation failed", "user_id", id.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	s.appCtx.Metrics.MessagesSent.Inc()
	return res, nil
}

func (s *Service) create(ctx context.Context, id auth.Identity, in CreateInput, members []uint64) (*Created, error) {
	res := &Created{}
	var convID uint64
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := s.convs.WithTx(tx)
		direct := len(members) == 2 && !in.IsGroup

		if direct {
			existing, err := convs.FindDirect(ctx, members[0], members[1])
			switch {
			case err == nil:
				convID = existing.ID
				res.Existing = true
			case !isMissing(err):
				return err
			}
		}

		if convID == 0 {
			conv := db.Conversation{IsGroup: in.IsGroup, CreatedBy: id.UserID}
			if in.IsGroup {
				conv.GroupName = in.GroupName
			}
			if direct {
				key := db.DirectKeyFor(members[0], members[1])
				conv.DirectKey = &key
			}
			if err := convs.CreateWithParticipants(ctx, &conv, members); err != nil {
				return err
			}
			convID = conv.ID
		}

		m := db.Message{ConversationID: convID, UserID: id.UserID, Content: in.Message}
		if err := s.messages.WithTx(tx).Create(ctx, &m); err != nil {
			return err
		}
		if res.Existing {
			if err := convs.Touch(ctx, convID); err != nil {
				return err
			}
		}
		sender, err := s.users.WithTx(tx).FindByID(ctx, id.UserID)
		if err != nil {
			return err
		}
		m.User = sender
		res.Message = s.messageView(m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.FindForParticipant(ctx, convID, id.UserID)
	if err != nil {
		return nil, err
	}
	res.Conversation = s.conversationView(*conv, id.UserID)
	return res, nil
}

// Show returns a conversation the caller takes part in; anything else is 404.
func (s *Service) Show(ctx context.Context, id auth.Identity, convID uint64) (*Conversation, error) {
	conv, err := s.participantOf(ctx, id, convID)
	if err != nil {
		return nil, err
	}
	return s.conversationView(*conv, id.UserID), nil
}

type UpdateInput struct {
	GroupName          *string  `json:"group_name" validate:"omitempty,max=255"`
	AddParticipants    []uint64 `json:"add_participants"`
	RemoveParticipants []uint64 `json:"remove_participants"`
}

// Update renames a group and adds or removes members. Only the group's
// creator may do this.
//
// Behavior:
//   - Each added or removed member gets a system message.
//   - The creator is silently dropped from remove_participants.
//   - Adding someone already in the group is a no-op.
func (s *Service) Update(ctx context.Context, id auth.Identity, convID uint64, in UpdateInput) (*Conversation, error) {
	conv, err := s.participantOf(ctx, id, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, svcErr.DomainRule("Only group conversations can be updated")
	}
	if conv.CreatedBy != id.UserID {
		return nil, svcErr.Forbidden("Only the group creator can update the conversation")
	}

	errs := validation.Errors{}
	if err := s.appCtx.Validator.Check(&in, errs); err != nil {
		return nil, svcErr.Internal(err)
	}
	if err := s.checkUsersExist(ctx, errs, "add_participants", in.AddParticipants); err != nil {
		return nil, err
	}
	if err := s.checkUsersExist(ctx, errs, "remove_participants", in.RemoveParticipants); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := s.convs.WithTx(tx)
		if in.GroupName != nil {
			if err := tx.Model(&db.Conversation{}).Where("id = ?", convID).Update("group_name", *in.GroupName).Error; err != nil {
				return err
			}
		}

		current, err := convs.ParticipantIDs(ctx, convID)
		if err != nil {
			return err
		}
		names, err := s.names(ctx, tx, append(slices.Clone(in.AddParticipants), in.RemoveParticipants...))
		if err != nil {
			return err
		}

		for _, uid := range uniqueIDs(in.AddParticipants) {
			if slices.Contains(current, uid) {
				continue
			}
			if err := convs.AddParticipant(ctx, convID, uid); err != nil {
				return err
			}
			current = append(current, uid)
			if err := s.system(ctx, tx, convID, id.UserID, names[uid]+" has been added to the group"); err != nil {
				return err
			}
		}

		for _, uid := range uniqueIDs(in.RemoveParticipants) {
			if uid == conv.CreatedBy {
				continue
			}
			removed, err := convs.RemoveParticipant(ctx, convID, uid)
			if err != nil {
				return err
			}
			if !removed {
				continue
			}
			if err := s.system(ctx, tx, convID, id.UserID, names[uid]+" has been removed from the group"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.appCtx.Logger.Error("update conversation failed", "conversation_id", convID, "err", err)
		return nil, svcErr.Map(err)
	}
	return s.Show(ctx, id, convID)
}

// Leave takes the caller out of a group conversation.
//
// Behavior:
//   - One-on-one threads cannot be left.
//   - A leaving creator hands ownership to the earliest remaining member,
//     announced before the leave itself.
//   - The conversation is deleted once nobody is left in it; attachment
//     blobs go after the commit.
//   - Everything happens in one transaction.
func (s *Service) Leave(ctx context.Context, id auth.Identity, convID uint64) error {
	var orphaned []string
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := s.convs.WithTx(tx)
		conv, err := convs.FindForParticipant(ctx, convID, id.UserID)
		if err != nil {
			return svcErr.NotFoundIfMissing(err, conversationNotFound)
		}
		if !conv.IsGroup {
			return svcErr.DomainRule("Cannot leave a one-on-one conversation")
		}

		members, err := convs.ParticipantIDs(ctx, convID)
		if err != nil {
			return err
		}
		var heir uint64
		for _, uid := range members {
			if uid != id.UserID {
				heir = uid
				break
			}
		}
		names, err := s.names(ctx, tx, []uint64{id.UserID, heir})
		if err != nil {
			return err
		}

		if conv.CreatedBy == id.UserID && heir != 0 {
			if err := convs.SetCreator(ctx, convID, heir); err != nil {
				return err
			}
			if err := s.system(ctx, tx, convID, id.UserID, names[heir]+" is now the group admin"); err != nil {
				return err
			}
		}
		if _, err := convs.RemoveParticipant(ctx, convID, id.UserID); err != nil {
			return err
		}
		if err := s.system(ctx, tx, convID, id.UserID, names[id.UserID]+" has left the group"); err != nil {
			return err
		}
		if heir != 0 {
			return nil
		}
		paths, err := s.messages.WithTx(tx).AttachmentPaths(ctx, convID)
		if err != nil {
			return err
		}
		if err := convs.DeleteCascade(ctx, convID); err != nil {
			return err
		}
		orphaned = paths
		return nil
	})
	if err != nil {
		return svcErr.Map(err)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, orphaned...)
	s.appCtx.Logger.Info("left conversation", "user_id", id.UserID, "conversation_id", convID)
	return nil
}

// system records a system message authored by actorID.
func (s *Service) system(ctx context.Context, tx *gorm.DB, convID, actorID uint64, content string) error {
	m := db.Message{ConversationID: convID, UserID: actorID, Content: content, IsSystemMessage: true}
	return s.messages.WithTx(tx).Create(ctx, &m)
}

// names maps user ids to display names.
func (s *Service) names(ctx context.Context, tx *gorm.DB, ids []uint64) (map[uint64]string, error) {
	users, err := s.users.WithTx(tx).FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Name
	}
	return out, nil
}

// checkUsersExist records "field.N" errors for ids with no user row.
func (s *Service) checkUsersExist(ctx context.Context, errs validation.Errors, field string, ids []uint64) error {
	missing, err := s.users.MissingIDs(ctx, ids)
	if err != nil {
		return svcErr.Map(err)
	}
	if len(missing) == 0 {
		return nil
	}
	for i, uid := range ids {
		if slices.Contains(missing, uid) {
			key := fmt.Sprintf("%s.%d", field, i)
			errs.Add(key, fmt.Sprintf("The selected %s is invalid.", key))
		}
	}
	return nil
}

func (s *Service) participantOf(ctx context.Context, id auth.Identity, convID uint64) (*db.Conversation, error) {
	conv, err := s.convs.FindForParticipant(ctx, convID, id.UserID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, conversationNotFound))
	}
	return conv, nil
}

func uniqueIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func isMissing(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
