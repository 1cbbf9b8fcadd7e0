package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/identity"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds token signing settings.
type Config struct {
	Secret               string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenStore persists refresh tokens and resolves their owners.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// Claims are the access token claims.
type Claims struct {
	Role int `json:"role"`
	jwtlib.RegisteredClaims
}

// Authenticator issues HS256 access tokens and opaque stored refresh tokens.
type Authenticator struct {
	config Config
	store  TokenStore
	now    func() time.Time // injectable for tests
}

var _ identity.Authenticator = (*Authenticator)(nil)

// NewAuthenticator creates a JWT authenticator backed by store.
func NewAuthenticator(config Config, store TokenStore) *Authenticator {
	return &Authenticator{
		config: config,
		store:  store,
		now:    time.Now,
	}
}

// GenerateTokens mints an access token and stores a new refresh token.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := a.now()

	claims := Claims{
		Role: int(user.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    a.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
			ID:        uuid.NewString(),
		},
	}

	access, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(a.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := &domain.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(a.config.RefreshTokenDuration),
		CreatedAt: now,
	}
	if err := a.store.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{AccessToken: access, RefreshToken: refresh.Token}, nil
}

// ValidateAccessToken checks the signature and expiry of an access token
// and returns the user id and role encoded in it.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (int64, domain.Role, error) {
	parsed, err := jwtlib.ParseWithClaims(
		token,
		&Claims{},
		func(t *jwtlib.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(a.config.Secret), nil
		},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithTimeFunc(func() time.Time { return a.now() }),
	)
	if err != nil {
		return 0, 0, identity.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, 0, identity.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, 0, identity.ErrInvalidToken
	}

	return userID, domain.Role(claims.Role), nil
}

// RefreshTokens rotates a refresh token into a new token pair.
// The spent token never grants another pair.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	stored, err := a.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrTokenNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.IsExpired() {
		_ = a.store.DeleteRefreshToken(ctx, stored.Token)
		return nil, identity.ErrInvalidToken
	}

	user, err := a.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := a.store.DeleteRefreshToken(ctx, stored.Token); err != nil {
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken removes a refresh token from the store.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.store.DeleteRefreshToken(ctx, refreshToken)
}

// Type returns the authenticator type.
func (a *Authenticator) Type() string {
	return "jwt"
}
