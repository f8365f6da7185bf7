package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/socialtinder/internal/db"
)

type ConversationRepository struct {
	crud[db.Conversation]
}

func NewConversationRepository(database *gorm.DB) *ConversationRepository {
	return &ConversationRepository{crud[db.Conversation]{db: database}}
}

func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return NewConversationRepository(tx)
}

func participantsWithUsers(q *gorm.DB) *gorm.DB {
	return q.Preload("Participants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Preload("Participants.User")
}

// ListForUser returns every conversation userID takes part in, participants
// loaded. Ordering by last activity happens in the service.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Conversation, error) {
	var convs []db.Conversation
	err := participantsWithUsers(r.db.WithContext(ctx)).
		Where("id IN (?)", r.db.Model(&db.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").Order("id DESC").
		Find(&convs).Error
	return convs, err
}

// FindForParticipant loads a conversation only when userID is in it, so a
// stranger gets gorm.ErrRecordNotFound just like for a missing id.
func (r *ConversationRepository) FindForParticipant(ctx context.Context, convID, userID uint64) (*db.Conversation, error) {
	var conv db.Conversation
	err := participantsWithUsers(r.db.WithContext(ctx)).
		Where("id = ?", convID).
		Where("EXISTS (?)", r.db.Model(&db.ConversationParticipant{}).Select("1").
			Where("conversation_participants.conversation_id = conversations.id AND conversation_participants.user_id = ?", userID)).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// DirectConversationIDs returns the ids of non-group conversations userID is in.
func (r *ConversationRepository) DirectConversationIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.ConversationParticipant{}).
		Joins("JOIN conversations ON conversations.id = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ? AND conversations.is_group = ?", userID, false).
		Order("conversation_participants.conversation_id ASC").
		Pluck("conversation_participants.conversation_id", &ids).Error
	return ids, err
}

// FindDirect returns the one-on-one conversation between a and b.
//
// Behavior:
//   - Non-group conversations of a are intersected with those of b; the
//     lowest id wins.
//   - Falls back to the direct_key lookup so a thread created concurrently
//     by the other side is still found.
//   - Returns gorm.ErrRecordNotFound when the pair has no thread yet.
func (r *ConversationRepository) FindDirect(ctx context.Context, a, b uint64) (*db.Conversation, error) {
	ofA, err := r.DirectConversationIDs(ctx, a)
	if err != nil {
		return nil, err
	}
	ofB, err := r.DirectConversationIDs(ctx, b)
	if err != nil {
		return nil, err
	}
	inB := toSet(ofB)
	for _, id := range ofA {
		if inB[id] {
			return r.FindByID(ctx, id)
		}
	}
	return r.FindOne(ctx, "direct_key = ?", db.DirectKeyFor(a, b))
}

// CreateWithParticipants inserts conv and one participant row per user id,
// in the order given.
func (r *ConversationRepository) CreateWithParticipants(ctx context.Context, conv *db.Conversation, userIDs []uint64) error {
	if err := r.db.WithContext(ctx).Omit("Participants", "Messages").Create(conv).Error; err != nil {
		return err
	}
	rows := make([]db.ConversationParticipant, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, db.ConversationParticipant{ConversationID: conv.ID, UserID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("User").Create(&rows).Error
}

// AddParticipant inserts userID into convID; the unique index rejects doubles.
func (r *ConversationRepository) AddParticipant(ctx context.Context, convID, userID uint64) error {
	row := db.ConversationParticipant{ConversationID: convID, UserID: userID}
	return r.db.WithContext(ctx).Omit("User").Create(&row).Error
}

// RemoveParticipant deletes userID's row and reports whether one existed.
func (r *ConversationRepository) RemoveParticipant(ctx context.Context, convID, userID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&db.ConversationParticipant{})
	return res.RowsAffected > 0, res.Error
}

// ParticipantIDs returns the members of convID ordered by when they joined
// (participant row id).
func (r *ConversationRepository) ParticipantIDs(ctx context.Context, convID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.ConversationParticipant{}).
		Where("conversation_id = ?", convID).
		Order("id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ConversationRepository) IsParticipant(ctx context.Context, convID, userID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&n).Error
	return n > 0, err
}

// SetCreator hands group ownership to userID.
func (r *ConversationRepository) SetCreator(ctx context.Context, convID, userID uint64) error {
	return r.db.WithContext(ctx).Model(&db.Conversation{}).
		Where("id = ?", convID).
		Update("created_by", userID).Error
}

// Touch bumps updated_at so the conversation sorts as recently active.
func (r *ConversationRepository) Touch(ctx context.Context, convID uint64) error {
	return r.db.WithContext(ctx).Model(&db.Conversation{}).
		Where("id = ?", convID).
		Update("updated_at", r.db.NowFunc()).Error
}

// DeleteCascade removes the conversation with its messages and participants.
func (r *ConversationRepository) DeleteCascade(ctx context.Context, convID uint64) error {
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", convID).Delete(&db.Message{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", convID).Delete(&db.ConversationParticipant{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&db.Conversation{}, convID).Error
}
