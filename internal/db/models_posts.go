package db

import (
	"time"

	"gorm.io/datatypes"
)

type Post struct {
	ID        uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64                      `gorm:"not null;index" json:"user_id"`
	Content   string                      `gorm:"type:text;not null" json:"content"`
	Images    datatypes.JSONSlice[string] `json:"images"`
	Location  string                      `gorm:"size:255" json:"location"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	IsPublic  bool                        `gorm:"not null" json:"is_public"`
	CreatedAt time.Time                   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// PostLike is unique per (post_id, user_id); a second like is treated as
// already liked.
type PostLike struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint64    `gorm:"not null;uniqueIndex:idx_post_likes_pair,priority:1" json:"post_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_post_likes_pair,priority:2" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// PostComment may reply to another comment on the same post via ParentID.
type PostComment struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint64    `gorm:"not null;index" json:"post_id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	ParentID  *uint64   `gorm:"index" json:"parent_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User    *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Replies []PostComment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}
