package messaging

import (
	"context"
	"strings"
	"time"

	"github.com/oggyb/socialtinder/internal/auth"
	"github.com/oggyb/socialtinder/internal/db"
	svcErr "github.com/oggyb/socialtinder/internal/errors"
	"github.com/oggyb/socialtinder/internal/service/view"
	"github.com/oggyb/socialtinder/internal/storage"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
	"github.com/oggyb/socialtinder/internal/validation"
)

const (
	MessagesPerPage = 20
	// EditWindow is how long after sending a message may still be edited.
	EditWindow = 24 * time.Hour

	maxAttachments  = 5
	attachmentsDir  = "message_attachments"
	messageNotFound = "Message not found"
)

type Message struct {
	db.Message
	User *view.User `json:"user,omitempty"`
}

func (s *Service) messageView(m db.Message) *Message {
	if len(m.Attachments) > 0 {
		atts := make([]db.Attachment, len(m.Attachments))
		copy(atts, m.Attachments)
		for i := range atts {
			atts[i].URL = s.appCtx.Storage.URL(atts[i].Path)
		}
		m.Attachments = atts
	}
	return &Message{Message: m, User: view.NewUser(s.appCtx.Storage, m.User)}
}

// Messages pages through a conversation, newest first, and marks what the
// caller received as read.
func (s *Service) Messages(ctx context.Context, id auth.Identity, convID uint64, page int) (pagination.Page[*Message], error) {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return pagination.Page[*Message]{}, err
	}
	rows, err := s.messages.ListByConversation(ctx, convID, pagination.Params{Page: page, PerPage: MessagesPerPage})
	if err != nil {
		return pagination.Page[*Message]{}, svcErr.Map(err)
	}
	if _, err := s.messages.MarkRead(ctx, convID, id.UserID); err != nil {
		s.appCtx.Logger.Warn("mark read failed", "conversation_id", convID, "err", err)
	}
	return pagination.Map(rows, s.messageView), nil
}

type SendInput struct {
	Content string `json:"content"`
}

// Send posts a message with optional attachments to a conversation the
// caller is in. Content may only be empty when there are attachments.
func (s *Service) Send(ctx context.Context, id auth.Identity, convID uint64, in SendInput, files []storage.File) (*Message, error) {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return nil, err
	}

	errs := validation.Errors{}
	if strings.TrimSpace(in.Content) == "" && len(files) == 0 {
		errs.Add("content", "The content field is required when attachments is not present.")
	}
	storage.AttachmentRule.CheckAll(errs, "attachments", files, maxAttachments)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	paths, err := storage.SaveAll(ctx, s.appCtx.Storage, attachmentsDir, files)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	m := db.Message{ConversationID: convID, UserID: id.UserID, Content: in.Content}
	for i, f := range files {
		m.Attachments = append(m.Attachments, db.Attachment{Path: paths[i], Name: f.Name, Type: f.ContentType, Size: f.Size})
	}
	if err := s.messages.Create(ctx, &m); err != nil {
		storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, paths...)
		return nil, svcErr.Map(err)
	}
	if err := s.convs.Touch(ctx, convID); err != nil {
		s.appCtx.Logger.Warn("touch conversation failed", "conversation_id", convID, "err", err)
	}
	s.appCtx.Metrics.MessagesSent.Inc()
	return s.load(ctx, convID, m.ID)
}

// ShowMessage returns one message; a message from someone else is marked read.
func (s *Service) ShowMessage(ctx context.Context, id auth.Identity, convID, msgID uint64) (*Message, error) {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return nil, err
	}
	m, err := s.messages.FindInConversation(ctx, convID, msgID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, messageNotFound))
	}
	if m.UserID != id.UserID && !m.IsRead {
		if err := s.messages.MarkOneRead(ctx, m.ID); err != nil {
			return nil, svcErr.Map(err)
		}
		m.IsRead = true
	}
	return s.messageView(*m), nil
}

type EditInput struct {
	Content string `json:"content" validate:"required"`
}

// EditMessage rewrites the caller's own message within EditWindow of sending it.
func (s *Service) EditMessage(ctx context.Context, id auth.Identity, convID, msgID uint64, in EditInput) (*Message, error) {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return nil, err
	}
	m, err := s.messages.FindInConversation(ctx, convID, msgID)
	if err != nil {
		return nil, svcErr.Map(svcErr.NotFoundIfMissing(err, messageNotFound))
	}
	if m.UserID != id.UserID {
		return nil, svcErr.Forbidden("You are not authorized to update this message")
	}
	if m.CreatedAt.Before(s.appCtx.Now().Add(-EditWindow)) {
		return nil, svcErr.DomainRule("This message can no longer be edited")
	}
	if err := s.appCtx.Validator.Validate(&in); err != nil {
		return nil, err
	}

	err = s.appCtx.DB.WithContext(ctx).Model(&db.Message{}).Where("id = ?", m.ID).
		Updates(map[string]any{"content": in.Content, "is_edited": true}).Error
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.load(ctx, convID, m.ID)
}

// DeleteMessage removes a message and its attachment blobs. Senders and
// admins only.
func (s *Service) DeleteMessage(ctx context.Context, id auth.Identity, convID, msgID uint64) error {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return err
	}
	m, err := s.messages.FindInConversation(ctx, convID, msgID)
	if err != nil {
		return svcErr.Map(svcErr.NotFoundIfMissing(err, messageNotFound))
	}
	if !id.CanModify(m.UserID) {
		return svcErr.Forbidden("You are not authorized to delete this message")
	}
	if err := s.messages.Delete(ctx, m); err != nil {
		return svcErr.Map(err)
	}
	paths := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		paths = append(paths, a.Path)
	}
	storage.Cleanup(ctx, s.appCtx.Storage, s.appCtx.Logger, paths...)
	return nil
}

// MarkRead marks everything the caller received in convID as read and
// reports how many messages changed.
func (s *Service) MarkRead(ctx context.Context, id auth.Identity, convID uint64) (int64, error) {
	if _, err := s.participantOf(ctx, id, convID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, convID, id.UserID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return n, nil
}

type Unread struct {
	TotalUnread    int64             `json:"total_unread"`
	ByConversation map[uint64]int64 `json:"by_conversation"`
}

// Unread counts the caller's unread messages across all conversations.
func (s *Service) Unread(ctx context.Context, id auth.Identity) (*Unread, error) {
	counts, err := s.messages.UnreadCounts(ctx, id.UserID, nil)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := &Unread{ByConversation: counts}
	for _, n := range counts {
		out.TotalUnread += n
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, convID, msgID uint64) (*Message, error) {
	m, err := s.messages.FindInConversation(ctx, convID, msgID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.messageView(*m), nil
}
