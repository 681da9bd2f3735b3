// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the full credential-store record. It never leaves the server:
// handlers and services expose PublicUser instead.
type User struct {
	ID            string
	UserName      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	PasswordHash  string
	// RefreshToken is the single refresh token currently accepted for this
	// user, or "" when none is outstanding.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized projection of User: no password hash and no
// refresh token.
type PublicUser struct {
	ID            string    `json:"id"`
	UserName      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the sanitized projection of u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:            u.ID,
		UserName:      u.UserName,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
