package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LikeActionLike    = "like"
	LikeActionDislike = "dislike"

	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// User table. Dating attributes are nullable; latitude/longitude are only
// used for distance filtering when both are set.
type User struct {
	ID                 uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string                      `gorm:"size:255;not null" json:"name"`
	Email              string                      `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Username           *string                     `gorm:"uniqueIndex;size:64" json:"username"`
	PasswordHash       string                      `gorm:"size:255;not null" json:"-"`
	IsAdmin            bool                        `gorm:"not null" json:"is_admin"`
	Country            string                      `gorm:"size:100;index" json:"country"`
	PhoneNumber        string                      `gorm:"size:32" json:"phone_number"`
	ProfilePhoto       *string                     `gorm:"size:255" json:"profile_photo"`
	Description        string                      `gorm:"type:text" json:"description"`
	Age                *int                        `gorm:"index" json:"age"`
	Nationality        string                      `gorm:"size:100" json:"nationality"`
	Gender             string                      `gorm:"size:16;index" json:"gender"`
	Height             *int                        `json:"height"`
	Interests          datatypes.JSONSlice[string] `json:"interests"`
	Location           string                      `gorm:"size:255" json:"location"`
	Latitude           *float64                    `json:"latitude"`
	Longitude          *float64                    `json:"longitude"`
	Bio                string                      `gorm:"type:text" json:"bio"`
	RelationshipStatus string                      `gorm:"size:32" json:"relationship_status"`
	LookingFor         string                      `gorm:"size:16" json:"looking_for"`
	Education          string                      `gorm:"size:255" json:"education"`
	Occupation         string                      `gorm:"size:255" json:"occupation"`
	Instagram          string                      `gorm:"size:255" json:"instagram"`
	Facebook           string                      `gorm:"size:255" json:"facebook"`
	Twitter            string                      `gorm:"size:255" json:"twitter"`
	IsVerified         bool                        `gorm:"not null" json:"is_verified"`
	LastActive         *time.Time                  `json:"last_active"`
	CreatedAt          time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`

	Photos []UserPhoto `gorm:"foreignKey:UserID" json:"photos,omitempty"`
}

// UserPhoto is one gallery entry. At most one row per user has IsPrimary set;
// its path is mirrored into users.profile_photo.
type UserPhoto struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index:idx_photo_user_primary,priority:1" json:"user_id"`
	PhotoPath string    `gorm:"size:255;not null" json:"photo_path"`
	IsPrimary bool      `gorm:"not null;index:idx_photo_user_primary,priority:2" json:"is_primary"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserLike is a like or dislike from UserID to LikedUserID.
//
// Unique: (user_id, liked_user_id), so a second decision overwrites the first.
// Index:  liked_user_id, for "who liked me" lookups.
type UserLike struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"not null;uniqueIndex:idx_user_likes_pair,priority:1" json:"user_id"`
	LikedUserID uint64    `gorm:"not null;uniqueIndex:idx_user_likes_pair,priority:2;index" json:"liked_user_id"`
	Action      string    `gorm:"size:16;not null" json:"action"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	LikedUser *User `gorm:"foreignKey:LikedUserID" json:"liked_user,omitempty"`
	User      *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Match is written in both directions once two likes become mutual.
type Match struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64    `gorm:"not null;uniqueIndex:idx_matches_pair,priority:1" json:"user_id"`
	MatchedUserID uint64    `gorm:"not null;uniqueIndex:idx_matches_pair,priority:2" json:"matched_user_id"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	MatchedAt     time.Time `gorm:"not null" json:"matched_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	MatchedUser *User `gorm:"foreignKey:MatchedUserID" json:"matched_user,omitempty"`
}

// Friendship is a directed edge. Accepting a request flips the forward edge to
// accepted and writes the reverse edge as accepted too.
type Friendship struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_friendships_pair,priority:1" json:"user_id"`
	FriendID  uint64    `gorm:"not null;uniqueIndex:idx_friendships_pair,priority:2;index" json:"friend_id"`
	Status    string    `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Friend *User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}
