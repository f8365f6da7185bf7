package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/utils/pagination"
)

type MessageRepository struct {
	crud[db.Message]
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{crud[db.Message]{db: database}}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return NewMessageRepository(tx)
}

// FindInConversation returns the message only if it belongs to convID.
func (r *MessageRepository) FindInConversation(ctx context.Context, convID, msgID uint64) (*db.Message, error) {
	var m db.Message
	err := r.db.WithContext(ctx).Preload("User").
		Where("conversation_id = ? AND id = ?", convID, msgID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByConversation pages through a conversation, newest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, convID uint64, p pagination.Params) (pagination.Page[db.Message], error) {
	q := r.db.WithContext(ctx).Model(&db.Message{}).Where("conversation_id = ?", convID)
	return pagination.Paginate[db.Message](q, p, func(tx *gorm.DB) *gorm.DB {
		return newestFirst(tx.Preload("User"))
	})
}

// MarkRead flags every unread message in convID not sent by readerID and
// returns how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, convID, readerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.Message{}).
		Where("conversation_id = ? AND user_id <> ? AND is_read = ?", convID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkOneRead flags a single message as read.
func (r *MessageRepository) MarkOneRead(ctx context.Context, msgID uint64) error {
	return r.db.WithContext(ctx).Model(&db.Message{}).
		Where("id = ?", msgID).
		Update("is_read", true).Error
}

// LastMessages returns the newest message of each conversation in convIDs.
func (r *MessageRepository) LastMessages(ctx context.Context, convIDs []uint64) (map[uint64]db.Message, error) {
	out := make(map[uint64]db.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	latest := r.db.Model(&db.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id")

	var msgs []db.Message
	if err := r.db.WithContext(ctx).Preload("User").Where("id IN (?)", latest).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

// UnreadCounts counts messages in convIDs that readerID has not read yet.
// An empty convIDs means every conversation readerID belongs to.
func (r *MessageRepository) UnreadCounts(ctx context.Context, readerID uint64, convIDs []uint64) (map[uint64]int64, error) {
	q := r.db.WithContext(ctx).Model(&db.Message{}).
		Select("messages.conversation_id AS conversation_id, COUNT(*) AS n").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = messages.conversation_id AND cp.user_id = ?", readerID).
		Where("messages.user_id <> ? AND messages.is_read = ?", readerID, false).
		Group("messages.conversation_id")
	if len(convIDs) > 0 {
		q = q.Where("messages.conversation_id IN ?", convIDs)
	}

	var rows []struct {
		ConversationID uint64
		N              int64
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.N
	}
	return out, nil
}

// AttachmentPaths lists the blob paths of every attachment in convID.
func (r *MessageRepository) AttachmentPaths(ctx context.Context, convID uint64) ([]string, error) {
	var rows []db.Message
	err := r.db.WithContext(ctx).
		Select("id", "attachments").
		Where("conversation_id = ? AND attachments IS NOT NULL", convID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, m := range rows {
		for _, a := range m.Attachments {
			paths = append(paths, a.Path)
		}
	}
	return paths, nil
}
