package db

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Conversation is either a group or a one-on-one thread.
//
// DirectKey is "<low id>:<high id>" for one-on-one threads and NULL for
// groups; its unique index keeps two concurrent creators from producing two
// threads for the same pair.
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	IsGroup   bool      `gorm:"not null" json:"is_group"`
	GroupName string    `gorm:"size:255" json:"group_name"`
	CreatedBy uint64    `gorm:"not null;index" json:"created_by"`
	DirectKey *string   `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// DirectKeyFor builds the DirectKey for a one-on-one pair, order independent.
func DirectKeyFor(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

type ConversationParticipant struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;uniqueIndex:idx_participants_conv_user,priority:1" json:"conversation_id"`
	UserID         uint64    `gorm:"not null;uniqueIndex:idx_participants_conv_user,priority:2;index" json:"user_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Attachment is stored inline on the message as JSON.
type Attachment struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

type Message struct {
	ID              uint64                          `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID  uint64                          `gorm:"not null;index:idx_messages_conv_created,priority:1" json:"conversation_id"`
	UserID          uint64                          `gorm:"not null;index" json:"user_id"`
	Content         string                          `gorm:"type:text" json:"content"`
	IsRead          bool                            `gorm:"not null;index" json:"is_read"`
	IsEdited        bool                            `gorm:"not null" json:"is_edited"`
	IsSystemMessage bool                            `gorm:"not null" json:"is_system_message"`
	Attachments     datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedAt       time.Time                       `gorm:"autoCreateTime;index:idx_messages_conv_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time                       `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
