package identity

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService handles registration, login and credential changes for one request
type AuthService struct {
	rc          *uow.RequestContext
	tokens      *auth.JWTService
	revocations auth.RevocationStore
	logger      *zap.Logger
}

// NewAuthService creates an authentication service bound to rc.
// revocations may be nil, in which case logout and password changes do not
// invalidate tokens already issued.
func NewAuthService(
	rc *uow.RequestContext,
	tokens *auth.JWTService,
	revocations auth.RevocationStore,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		rc:          rc,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Register creates an account. Administrators wait for approval and get no token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	users := s.rc.Session.Users()

	user, err := identity.NewUser(input.Email, input.Name, input.Password, input.IsAdmin)
	if err != nil {
		return nil, err
	}

	exists, err := users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, identity.ErrEmailTaken
	}

	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, identity.ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.Bool("is_admin", user.IsAdmin),
		zap.Bool("pending_approval", user.IsPendingApproval()),
	)

	if user.IsPendingApproval() {
		return &AuthResult{TokenType: "bearer", User: ToUserInfo(user)}, nil
	}
	return s.issue(user)
}

// Login verifies credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.rc.Session.Users().FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Login attempt for unknown email")
			return nil, identity.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("user_id", user.ID.String()))
		return nil, identity.ErrInvalidCredentials
	}
	if err := user.CanLogin(); err != nil {
		s.logger.Warn("Login refused", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// ChangePassword replaces the caller's password and revokes every token
// issued before the change
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, input ChangePasswordInput) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.ChangePassword(input.CurrentPassword, input.NewPassword); err != nil {
		return err
	}
	if err := s.rc.Session.Users().Update(ctx, user); err != nil {
		return err
	}

	if s.revocations != nil {
		if err := s.revocations.RevokeUserTokens(ctx, userID.String(), s.tokens.GetAccessTokenExpiration()); err != nil {
			// The password is changed either way; old tokens expire on their own
			s.logger.Error("Failed to revoke tokens after password change",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Password changed", zap.String("user_id", userID.String()))
	return nil
}

// Logout revokes the presented token for its remaining lifetime
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil || claims == nil || claims.ID == "" {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		return err
	}
	s.logger.Info("User logged out", zap.String("user_id", claims.UserID))
	return nil
}

// CurrentUser loads the authenticated user. A token for a deleted user is unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*identity.User, error) {
	return loadActor(ctx, s.rc.Session.Users(), userID)
}

func (s *AuthService) issue(user *identity.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateAccessToken(auth.TokenSubject{
		UserID:       user.ID,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		IsSuperAdmin: user.IsSuperAdmin,
	})
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication token")
	}
	expiresAt := token.ExpiresAt
	return &AuthResult{
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresAt:   &expiresAt,
		User:        ToUserInfo(user),
	}, nil
}

func loadActor(ctx context.Context, users identity.UserRepository, userID uuid.UUID) (*identity.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Could not validate credentials")
		}
		return nil, err
	}
	return user, nil
}
