package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/formhub/backend/internal/application/files"
	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxAvatarSize is used when UserServiceConfig leaves the limit unset
const DefaultMaxAvatarSize int64 = 2 << 20

var allowedAvatarTypes = []string{"image/jpeg", "image/png"}

// UserServiceConfig holds the user service's tunables
type UserServiceConfig struct {
	MaxAvatarSize int64
	// TokenLifetime bounds how long a rejection must be remembered by the revocation store
	TokenLifetime time.Duration
}

// UserService manages users on behalf of an authenticated actor
type UserService struct {
	rc          *uow.RequestContext
	store       files.Store
	revocations auth.RevocationStore
	config      UserServiceConfig
	logger      *zap.Logger
}

// NewUserService creates a user service bound to rc
func NewUserService(
	rc *uow.RequestContext,
	store files.Store,
	revocations auth.RevocationStore,
	config UserServiceConfig,
	logger *zap.Logger,
) *UserService {
	if config.MaxAvatarSize <= 0 {
		config.MaxAvatarSize = DefaultMaxAvatarSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		rc:          rc,
		store:       store,
		revocations: revocations,
		config:      config,
		logger:      logger,
	}
}

// Create adds a user linked to an administrator
func (s *UserService) Create(ctx context.Context, actorID uuid.UUID, input CreateUserInput) (*identity.User, error) {
	users := s.rc.Session.Users()
	actor, err := loadActor(ctx, users, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return nil, shared.ErrForbidden
	}

	adminID := actor.ID
	if input.AdminID != nil && *input.AdminID != actor.ID {
		if !actor.IsSuperAdmin {
			return nil, shared.ErrForbidden
		}
		admin, err := users.FindByID(ctx, *input.AdminID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Admin with id %s not found", *input.AdminID))
			}
			return nil, err
		}
		if !admin.IsAdmin {
			return nil, shared.NewDomainError("NOT_ADMIN", fmt.Sprintf("User with id %s is not an admin", *input.AdminID))
		}
		adminID = admin.ID
	}
	if input.IsAdmin && !actor.IsSuperAdmin {
		return nil, shared.ErrForbidden
	}

	user, err := identity.NewRespondent(input.Email, input.Name, &adminID)
	if err != nil {
		return nil, err
	}
	if input.IsAdmin {
		user.IsAdmin = true
		user.IsApproved = false
	}
	if err := s.ensureEmailFree(ctx, user.Email, uuid.Nil); err != nil {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("admin_id", adminID.String()),
	)
	return user, nil
}

// Get returns a user the actor may see
func (s *UserService) Get(ctx context.Context, actorID, id uuid.UUID) (*identity.User, error) {
	_, target, err := s.authorize(ctx, actorID, id)
	return target, err
}

// List returns every user for a super admin and the actor's own users otherwise
func (s *UserService) List(ctx context.Context, actorID uuid.UUID, page shared.Page) ([]*identity.User, error) {
	actor, err := loadActor(ctx, s.rc.Session.Users(), actorID)
	if err != nil {
		return nil, err
	}
	filter := identity.UserFilter{Page: page}
	if !actor.IsSuperAdmin {
		filter.AdminID = &actor.ID
	}
	return s.rc.Session.Users().FindAll(ctx, filter)
}

// ListByAdmin returns the users linked to adminID
func (s *UserService) ListByAdmin(ctx context.Context, actorID, adminID uuid.UUID, page shared.Page) ([]*identity.User, error) {
	actor, err := loadActor(ctx, s.rc.Session.Users(), actorID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(adminID) {
		return nil, shared.ErrForbidden
	}
	return s.rc.Session.Users().FindAll(ctx, identity.UserFilter{AdminID: &adminID, Page: page})
}

// Update changes a user's profile. Only super admins may grant or revoke admin rights.
func (s *UserService) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*identity.User, error) {
	actor, target, err := s.authorize(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if input.IsAdmin != nil && *input.IsAdmin != target.IsAdmin && !actor.IsSuperAdmin {
		return nil, shared.ErrForbidden
	}

	if err := target.Update(input.Name, input.Email, input.IsAdmin); err != nil {
		return nil, err
	}
	if input.Email != nil {
		if err := s.ensureEmailFree(ctx, target.Email, target.ID); err != nil {
			return nil, err
		}
	}
	if err := s.rc.Session.Users().Update(ctx, target); err != nil {
		return nil, err
	}

	s.logger.Info("User updated", zap.String("user_id", target.ID.String()))
	return target, nil
}

// Delete removes a user the actor manages. Super admins cannot be deleted here.
func (s *UserService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	_, target, err := s.authorize(ctx, actorID, id)
	if err != nil {
		return err
	}
	if target.IsSuperAdmin {
		return shared.NewDomainError("FORBIDDEN", "Cannot delete super admin")
	}
	if err := s.rc.Session.Users().Delete(ctx, target.ID); err != nil {
		return err
	}
	s.revokeAll(ctx, target.ID)

	s.logger.Info("User deleted", zap.String("user_id", target.ID.String()))
	return nil
}

// ListUnapprovedAdmins lists administrators awaiting approval
func (s *UserService) ListUnapprovedAdmins(ctx context.Context, actorID uuid.UUID) ([]*identity.User, error) {
	if _, err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.rc.Session.Users().FindUnapprovedAdmins(ctx)
}

// ApproveAdmin lets a pending administrator log in
func (s *UserService) ApproveAdmin(ctx context.Context, actorID, id uuid.UUID) (*identity.User, error) {
	target, err := s.pendingAdmin(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if target.IsSuperAdmin {
		return nil, shared.NewDomainError("INVALID_STATE", "Super admins do not need approval")
	}
	if err := target.Approve(); err != nil {
		return nil, err
	}
	if err := s.rc.Session.Users().Update(ctx, target); err != nil {
		return nil, err
	}

	s.logger.Info("Admin approved",
		zap.String("admin_id", target.ID.String()),
		zap.String("approved_by", actorID.String()),
	)
	return target, nil
}

// RejectAdmin deletes an administrator's registration
func (s *UserService) RejectAdmin(ctx context.Context, actorID, id uuid.UUID) error {
	target, err := s.pendingAdmin(ctx, actorID, id)
	if err != nil {
		return err
	}
	if target.IsSuperAdmin {
		return shared.NewDomainError("FORBIDDEN", "Cannot delete super admin")
	}
	if err := s.rc.Session.Users().Delete(ctx, target.ID); err != nil {
		return err
	}
	s.revokeAll(ctx, target.ID)

	s.logger.Info("Admin rejected",
		zap.String("admin_id", target.ID.String()),
		zap.String("rejected_by", actorID.String()),
	)
	return nil
}

// UploadAvatar stores a JPEG or PNG image and records its URL on the user
func (s *UserService) UploadAvatar(ctx context.Context, actorID, id uuid.UUID, upload AvatarUpload) (*identity.User, error) {
	if upload.Size > s.config.MaxAvatarSize {
		return nil, avatarTooLarge(s.config.MaxAvatarSize)
	}
	_, target, err := s.authorize(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.config.MaxAvatarSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar: %w", err)
	}
	if int64(len(data)) > s.config.MaxAvatarSize {
		return nil, avatarTooLarge(s.config.MaxAvatarSize)
	}
	if len(data) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Avatar file is empty")
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedAvatarTypes...) {
		return nil, shared.NewDomainError("UNSUPPORTED_MEDIA", "Unsupported file type. Only JPEG and PNG are allowed")
	}

	key := fmt.Sprintf("avatars/%s/%s%s", target.ID, uuid.NewString(), mtype.Extension())
	url, err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mtype.String())
	if err != nil {
		s.logger.Error("Failed to upload avatar", zap.String("user_id", target.ID.String()), zap.Error(err))
		return nil, err
	}

	target.SetAvatar(url)
	if err := s.rc.Session.Users().Update(ctx, target); err != nil {
		// The transaction rolls back; drop the orphaned blob
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned avatar", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("Avatar uploaded",
		zap.String("user_id", target.ID.String()),
		zap.String("content_type", mtype.String()),
		zap.Int("size", len(data)),
	)
	return target, nil
}

// authorize loads the actor and a target the actor may manage: itself,
// a user linked to it, or anyone for a super admin
func (s *UserService) authorize(ctx context.Context, actorID, id uuid.UUID) (*identity.User, *identity.User, error) {
	users := s.rc.Session.Users()
	actor, err := loadActor(ctx, users, actorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if actor.CanManage(target.ID) {
		return actor, target, nil
	}
	if target.AdminID != nil && *target.AdminID == actor.ID {
		return actor, target, nil
	}
	return nil, nil, shared.ErrForbidden
}

func (s *UserService) requireSuperAdmin(ctx context.Context, actorID uuid.UUID) (*identity.User, error) {
	actor, err := loadActor(ctx, s.rc.Session.Users(), actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin {
		return nil, shared.NewDomainError("FORBIDDEN", "Super admin access required")
	}
	return actor, nil
}

func (s *UserService) pendingAdmin(ctx context.Context, actorID, id uuid.UUID) (*identity.User, error) {
	if _, err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	target, err := s.rc.Session.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !target.IsAdmin {
		return nil, shared.NewDomainError("NOT_ADMIN", "User is not an admin")
	}
	return target, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	if email == "" {
		return nil
	}
	existing, err := s.rc.Session.Users().FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return identity.ErrEmailTaken
	}
	return nil
}

// revokeAll is best effort; a deleted user can no longer pass the
// per-request user lookup anyway
func (s *UserService) revokeAll(ctx context.Context, userID uuid.UUID) {
	if s.revocations == nil || s.config.TokenLifetime <= 0 {
		return
	}
	if err := s.revocations.RevokeUserTokens(ctx, userID.String(), s.config.TokenLifetime); err != nil {
		s.logger.Warn("Failed to revoke tokens", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func avatarTooLarge(limit int64) error {
	return shared.NewDomainError("PAYLOAD_TOO_LARGE", fmt.Sprintf("File too large (max %dMB)", limit>>20))
}
