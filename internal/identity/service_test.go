package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users         map[string]*domain.User
	nextID        int64
	createUserErr error
	updatedHash   string
	revokedUserID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:  make(map[string]*domain.User),
		nextID: 1,
	}
}

func (m *mockRepository) addUser(u domain.User) *domain.User {
	u.ID = m.nextID
	m.nextID++
	m.users[u.Email] = &u
	return &u
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Email] = user
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (m *mockRepository) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	m.updatedHash = passwordHash
	for _, u := range m.users {
		if u.ID == id {
			u.Password = passwordHash
			return nil
		}
	}
	return users.ErrUserNotFound
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, _ *domain.RefreshToken) error {
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, _ string) (*domain.RefreshToken, error) {
	return nil, ErrTokenNotFound
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) DeleteUserRefreshTokens(_ context.Context, userID int64) error {
	m.revokedUserID = userID
	return nil
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct{}

func (m *mockAuthenticator) GenerateTokens(_ context.Context, _ *domain.User) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) ValidateAccessToken(_ context.Context, _ string) (int64, domain.Role, error) {
	return 0, 0, nil
}

func (m *mockAuthenticator) RefreshTokens(_ context.Context, _ string) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) RevokeRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockAuthenticator) Type() string {
	return "mock"
}

// mockUserCreatedHandler implements UserCreatedHandler for testing.
type mockUserCreatedHandler struct {
	called       bool
	receivedUser *domain.User
	err          error
}

func (m *mockUserCreatedHandler) OnUserCreated(_ context.Context, user *domain.User) error {
	m.called = true
	m.receivedUser = user
	return m.err
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegister_CallsUserCreatedHandler(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler, bcrypt.MinCost)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, handler.called, "handler should be called")
	assert.Equal(t, user.ID, handler.receivedUser.ID)
	assert.Equal(t, user.Email, handler.receivedUser.Email)
}

func TestRegister_ContinuesIfHandlerFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{err: errors.New("handler error")}

	service := NewService(repo, auth, handler, bcrypt.MinCost)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert: registration succeeds despite handler error
	require.NoError(t, err)
	assert.NotNil(t, user)
	assert.True(t, handler.called, "handler should still be called")
}

func TestRegister_WorksWithNilHandler(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}

	service := NewService(repo, auth, nil, bcrypt.MinCost) // nil handler

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, user)
	assert.Equal(t, "test@example.com", user.Email)
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
		Name:     "Taras",
		Surname:  "Melnyk",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoleVisitor, user.Role)
	assert.NotEqual(t, "password123", user.Password, "plain text must not be stored")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
}

func TestRegister_EmailAlreadyExists(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.addUser(domain.User{Email: "existing@example.com"})
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler, bcrypt.MinCost)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "existing@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, user)
	assert.ErrorIs(t, err, users.ErrEmailExists)
	assert.False(t, handler.called, "handler should not be called for duplicate email")
}

func TestRegister_CreateUserFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.createUserErr = errors.New("database error")
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler, bcrypt.MinCost)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, user)
	assert.Error(t, err)
	assert.False(t, handler.called, "handler should not be called if user creation fails")
}

func TestLogin_Succeeds(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.addUser(domain.User{Email: "test@example.com", Password: hashOf(t, "password123")})
	service := NewService(repo, &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	user, tokens, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "refresh", tokens.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.addUser(domain.User{Email: "test@example.com", Password: hashOf(t, "password123")})
	service := NewService(repo, &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "wrong-password",
	})

	// Assert
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	// Arrange
	service := NewService(newMockRepository(), &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "ghost@example.com",
		Password: "password123",
	})

	// Assert: absence must look like bad credentials, not a missing user
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, users.ErrUserNotFound)
}

func TestChangePassword_VerifiesOldPassword(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	user := repo.addUser(domain.User{Email: "test@example.com", Password: hashOf(t, "old-password")})
	service := NewService(repo, &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	err := service.ChangePassword(context.Background(), user.ID, ChangePasswordInput{
		OldPassword: "not-the-old-password",
		NewPassword: "new-password",
	})

	// Assert
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, repo.updatedHash, "password must not change")
}

func TestChangePassword_StoresNewHashAndRevokesTokens(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	user := repo.addUser(domain.User{Email: "test@example.com", Password: hashOf(t, "old-password")})
	service := NewService(repo, &mockAuthenticator{}, nil, bcrypt.MinCost)

	// Act
	err := service.ChangePassword(context.Background(), user.ID, ChangePasswordInput{
		OldPassword: "old-password",
		NewPassword: "new-password",
	})

	// Assert
	require.NoError(t, err)
	require.NotEmpty(t, repo.updatedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.updatedHash), []byte("new-password")))
	assert.Equal(t, user.ID, repo.revokedUserID, "all refresh tokens should be revoked")
}
