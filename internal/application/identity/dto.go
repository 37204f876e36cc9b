package identity

import (
	"io"
	"time"

	"github.com/formhub/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// RegisterInput contains the input for self-registration
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	IsAdmin  bool
}

// LoginInput contains the input for user login
type LoginInput struct {
	Email    string
	Password string
}

// ChangePasswordInput contains the current and the new password
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// AuthResult is returned by login and registration.
// AccessToken is empty for administrators awaiting approval.
type AuthResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	User        UserInfo   `json:"user"`
}

// UserInfo is the public view of a user
type UserInfo struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	IsApproved   bool       `json:"is_approved"`
	AdminID      *uuid.UUID `json:"admin_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToUserInfo converts a domain user
func ToUserInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		IsAdmin:      u.IsAdmin,
		IsSuperAdmin: u.IsSuperAdmin,
		IsApproved:   u.IsApproved,
		AdminID:      u.AdminID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// ToUserInfos converts a list of domain users
func ToUserInfos(users []*identity.User) []UserInfo {
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserInfo(u))
	}
	return out
}

// CreateUserInput describes a user created by an administrator
type CreateUserInput struct {
	Name    string
	Email   string
	IsAdmin bool
	// AdminID defaults to the acting administrator
	AdminID *uuid.UUID
}

// UpdateUserInput holds optional profile changes
type UpdateUserInput struct {
	Name    *string
	Email   *string
	IsAdmin *bool
}

// AvatarUpload is an image sent as a user's avatar
type AvatarUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}
