package identity

import (
	"context"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UserFilter narrows user listings
type UserFilter struct {
	AdminID *uuid.UUID
	Page    shared.Page
}

// UserRepository persists users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByEmail matches case-insensitively
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context, filter UserFilter) ([]*User, error)
	FindUnapprovedAdmins(ctx context.Context) ([]*User, error)
}
