package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

type userStoreStub struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (u *userStoreStub) Create(ctx context.Context, user *models.User) error {
	stored := *user
	u.users[user.ID] = &stored
	return nil
}

func (u *userStoreStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range u.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *userStoreStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (u *userStoreStub) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := u.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (u *userStoreStub) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if user, ok := u.users[userID]; ok {
		user.LastLogin = &at
	}
	return nil
}

func (u *userStoreStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	stored := *token
	u.tokens[token.Token] = &stored
	return nil
}

func (u *userStoreStub) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := u.tokens[token]
	if !ok || stored.Revoked {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (u *userStoreStub) RevokeRefreshToken(ctx context.Context, id string) error {
	for _, token := range u.tokens {
		if token.ID == id {
			token.Revoked = true
			return nil
		}
	}
	return nil
}

func (u *userStoreStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range u.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *userStoreStub) {
	t.Helper()
	users := newUserStoreStub()
	svc := NewAuthService(users, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "permit-clearance-api",
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	users.users["user-1"] = &models.User{
		ID:           "user-1",
		Email:        "clerk@example.com",
		PasswordHash: string(hash),
		FullName:     "Front Desk",
		Role:         models.RoleDataEntry,
		Active:       true,
	}
	return svc, users
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, models.RoleDataEntry, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.RoleDataEntry, claims.Role)
}

func TestAuthLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@example.com",
		Password: "wrong",
	})
	require.ErrorContains(t, err, "invalid email or password")
}

func TestAuthLoginRejectsInactiveAccount(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.users["user-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "clerk@example.com",
		Password: "s3cret!",
	})
	require.ErrorContains(t, err, "inactive")
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "clerk@example.com", Password: "s3cret!"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token no longer works.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestAuthRegisterDefaultsToDataEntry(t *testing.T) {
	svc, _ := newAuthFixture(t)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "longenough",
		FullName: "New Clerk",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleDataEntry, info.Role)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email:    "clerk@example.com",
		Password: "longenough",
		FullName: "Dup",
	})
	require.ErrorContains(t, err, "already registered")
}

func TestAuthChangePasswordRevokesSessions(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "clerk@example.com", Password: "s3cret!"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, "user-1", models.ChangePasswordRequest{
		OldPassword: "s3cret!",
		NewPassword: "evenm0resecret",
	})
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "clerk@example.com", Password: "evenm0resecret"})
	require.NoError(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "clerk@example.com", Password: "s3cret!"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)

	other := NewAuthService(newUserStoreStub(), nil, AuthConfig{AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Minute})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
