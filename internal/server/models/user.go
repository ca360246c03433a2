// Package models holds the persisted and client-facing shapes of a user.
package models

import "time"

// User is the stored identity. PasswordHash and RefreshToken never leave the
// server; use Public for anything returned to a client.
type User struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	FullName     string    `bson:"fullName"`
	Avatar       string    `bson:"avatar"`
	CoverImage   string    `bson:"coverImage"`
	PasswordHash string    `bson:"password"`
	RefreshToken *string   `bson:"refreshToken"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// PublicUser is User without its secrets.
type PublicUser struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public strips the password hash and refresh token.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// UserUpdate lists the fields to change on a user. Nil fields are left as
// they are. ClearRefreshToken sets the stored refresh token to null.
type UserUpdate struct {
	Email             *string
	FullName          *string
	Avatar            *string
	CoverImage        *string
	PasswordHash      *string
	ClearRefreshToken bool
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.FullName == nil && u.Avatar == nil &&
		u.CoverImage == nil && u.PasswordHash == nil && !u.ClearRefreshToken
}
