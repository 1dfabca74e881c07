package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	anonymousName = "Anonymous"
	gravatarBase  = "https://www.gravatar.com/avatar/"
)

type User struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	Name             string     `json:"name,omitempty"`
	DisplayName      string     `json:"display_name"`
	PasswordHash     string     `json:"-"`
	PhotoURL         *string    `json:"photo_url,omitempty"`
	ProviderPhotoURL *string    `json:"provider_photo_url,omitempty"`
	Role             string     `json:"role"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// UserProfile is the read-only view of a directory entry shown to other users.
type UserProfile struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	AvatarURL string     `json:"avatar_url"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	Role      string     `json:"role"`
}

// ResolvedName falls back from name to display name to "Anonymous".
func (u *User) ResolvedName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return anonymousName
}

// ResolvedAvatar falls back from the explicit photo to the provider photo to
// a Gravatar identicon derived from the email.
func (u *User) ResolvedAvatar() string {
	if u.PhotoURL != nil && *u.PhotoURL != "" {
		return *u.PhotoURL
	}
	if u.ProviderPhotoURL != nil && *u.ProviderPhotoURL != "" {
		return *u.ProviderPhotoURL
	}
	return DefaultAvatar(u.Email)
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		Name:      u.ResolvedName(),
		Email:     u.Email,
		AvatarURL: u.ResolvedAvatar(),
		LastLogin: u.LastLogin,
		Role:      u.Role,
	}
}

// DefaultAvatar returns the deterministic identicon URL for an email.
func DefaultAvatar(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return gravatarBase + hex.EncodeToString(sum[:]) + "?d=identicon"
}
