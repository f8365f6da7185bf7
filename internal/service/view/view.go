// Package view holds the response shapes shared by several services: rows
// plus the public URLs of the blobs they reference.
package view

import (
	"github.com/oggyb/socialtinder/internal/db"
	"github.com/oggyb/socialtinder/internal/storage"
)

type User struct {
	*db.User
	ProfilePhotoURL *string `json:"profile_photo_url"`
	Photos          []Photo `json:"photos,omitempty"`
}

// NewUser is nil-safe so optional relations can be passed straight through.
func NewUser(s storage.Store, u *db.User) *User {
	if u == nil {
		return nil
	}
	v := &User{User: u, ProfilePhotoURL: storage.URLPtr(s, u.ProfilePhoto)}
	if len(u.Photos) > 0 {
		v.Photos = NewPhotos(s, u.Photos)
	}
	return v
}

func NewUsers(s storage.Store, users []db.User) []*User {
	out := make([]*User, 0, len(users))
	for i := range users {
		out = append(out, NewUser(s, &users[i]))
	}
	return out
}

type Photo struct {
	db.UserPhoto
	PhotoURL string `json:"photo_url"`
}

func NewPhoto(s storage.Store, p db.UserPhoto) Photo {
	return Photo{UserPhoto: p, PhotoURL: s.URL(p.PhotoPath)}
}

func NewPhotos(s storage.Store, photos []db.UserPhoto) []Photo {
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, NewPhoto(s, p))
	}
	return out
}
