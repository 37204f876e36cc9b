package identity

import (
	"net/mail"
	"strings"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Password cost for bcrypt
const bcryptCost = 12

// User is either an administrator who owns forms, a super administrator who
// approves administrators, or a respondent created when a form is submitted.
type User struct {
	shared.BaseEntity
	Email        string
	Name         string
	PasswordHash string
	AvatarURL    string
	IsAdmin      bool
	IsSuperAdmin bool
	IsApproved   bool
	// AdminID links a respondent to the administrator whose data it belongs to
	AdminID *uuid.UUID
}

// NewUser creates a user that can log in. Administrators start unapproved.
func NewUser(email, name, password string, isAdmin bool) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email is required")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	u := &User{
		BaseEntity: shared.NewBaseEntity(),
		Email:      email,
		Name:       strings.TrimSpace(name),
		IsAdmin:    isAdmin,
		IsApproved: !isAdmin,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// NewRespondent creates a user without credentials, linked to an administrator.
// Email is optional for respondents.
func NewRespondent(email, name string, adminID *uuid.UUID) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &User{
		BaseEntity: shared.NewBaseEntity(),
		Email:      email,
		Name:       strings.TrimSpace(name),
		IsApproved: true,
		AdminID:    adminID,
	}, nil
}

// SetPassword hashes and stores a new password
func (u *User) SetPassword(password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	u.PasswordHash = string(hash)
	u.Touch()
	return nil
}

// ChangePassword verifies the current password before setting a new one
func (u *User) ChangePassword(current, next string) error {
	if u.PasswordHash == "" {
		return shared.NewDomainError("PASSWORD_NOT_SET", "Password not set for user")
	}
	if !u.VerifyPassword(current) {
		return shared.NewDomainError("INVALID_PASSWORD", "Invalid current password")
	}
	return u.SetPassword(next)
}

// VerifyPassword verifies if the provided password matches
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsPendingApproval reports whether an administrator still waits for a super admin
func (u *User) IsPendingApproval() bool {
	return u.IsAdmin && !u.IsSuperAdmin && !u.IsApproved
}

// CanLogin returns an error describing why the user cannot log in, if any
func (u *User) CanLogin() error {
	if u.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if u.IsPendingApproval() {
		return ErrPendingApproval
	}
	return nil
}

// Approve marks a pending administrator as approved
func (u *User) Approve() error {
	if !u.IsAdmin {
		return shared.NewDomainError("NOT_ADMIN", "User is not an admin")
	}
	if u.IsApproved {
		return shared.NewDomainError("ALREADY_APPROVED", "Admin is already approved")
	}
	u.IsApproved = true
	u.Touch()
	return nil
}

// Update applies optional profile changes
func (u *User) Update(name, email *string, isAdmin *bool) error {
	if name != nil {
		if err := validateName(*name); err != nil {
			return err
		}
		u.Name = strings.TrimSpace(*name)
	}
	if email != nil {
		normalized, err := normalizeEmail(*email)
		if err != nil {
			return err
		}
		u.Email = normalized
	}
	if isAdmin != nil {
		u.IsAdmin = *isAdmin
	}
	u.Touch()
	return nil
}

// SetAvatar stores the public URL of the user's avatar
func (u *User) SetAvatar(url string) {
	u.AvatarURL = url
	u.Touch()
}

// CanManage reports whether u may view or change target's settings
func (u *User) CanManage(target uuid.UUID) bool {
	return u.ID == target || u.IsSuperAdmin
}

// OwnerID returns the administrator whose data this user belongs to
func (u *User) OwnerID() uuid.UUID {
	if u.AdminID != nil {
		return *u.AdminID
	}
	return u.ID
}

// Identity errors
var (
	ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	ErrPendingApproval    = shared.NewDomainError("PENDING_APPROVAL", "Your registration is pending approval by a super administrator")
	ErrEmailTaken         = shared.NewDomainError("ALREADY_EXISTS", "User with this email already exists")
)

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	if len(name) > 255 {
		return shared.NewDomainError("INVALID_NAME", "Name cannot exceed 255 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 6 characters")
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 bytes")
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	if len(email) > 255 {
		return "", shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 255 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return email, nil
}
