package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
	"github.com/confhub-io/confhub/internal/users"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair carries a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticator issues and validates authentication tokens.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (int64, domain.Role, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	Type() string
}

// UserCreatedHandler is notified after a new account has been stored.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// Service implements authentication business logic.
type Service struct {
	repo          Repository
	auth          Authenticator
	onUserCreated UserCreatedHandler
	bcryptCost    int
	dummyHash     []byte
}

// NewService creates a new identity service. onUserCreated may be nil.
// A bcryptCost outside the supported range falls back to the library
// default.
func NewService(repo Repository, auth Authenticator, onUserCreated UserCreatedHandler, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	// Compared against when an email does not exist, so unknown emails
	// cost the same as wrong passwords.
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("confhub.dummy"), bcryptCost)

	return &Service{
		repo:          repo,
		auth:          auth,
		onUserCreated: onUserCreated,
		bcryptCost:    bcryptCost,
		dummyHash:     dummyHash,
	}
}

// RegisterInput contains data for registering a new account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Surname  string
}

// Register creates a new account with the visitor role.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	_, err := s.repo.GetUserByEmail(ctx, input.Email)
	if err == nil {
		return nil, users.ErrEmailExists
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:    input.Email,
		Name:     input.Name,
		Surname:  input.Surname,
		Password: string(hash),
		Role:     domain.RoleVisitor,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.onUserCreated != nil {
		if err := s.onUserCreated.OnUserCreated(ctx, user); err != nil {
			// Registration already succeeded, the hook must not undo it.
			ctxlog.FromContext(ctx).Warn("user created hook failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return user, nil
}

// LoginInput contains credentials for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	return user, tokens, nil
}

// RefreshTokens exchanges a refresh token for a new token pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the given refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// ChangePasswordInput contains data for changing an account password.
type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// ChangePassword verifies the old password, stores a hash of the new one,
// and revokes all refresh tokens of the account.
func (s *Service) ChangePassword(ctx context.Context, userID int64, input ChangePasswordInput) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.OldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.repo.DeleteUserRefreshTokens(ctx, userID); err != nil {
		ctxlog.FromContext(ctx).Warn("revoke refresh tokens",
			"user_id", userID,
			"error", err,
		)
	}

	return nil
}
