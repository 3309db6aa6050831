package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findByIDErr      error
	refreshTokens    map[string]*models.RefreshToken
	revokedAll       bool
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAuthRepo{
		user: &models.User{
			ID:           "245522733096",
			PasswordHash: string(hash),
			FullName:     "Asha",
			Role:         models.RoleStudent,
			College:      "KMIT",
			Active:       true,
		},
	}
	service := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "campus-exit-api",
	})
	return service, repo
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	service, repo := newAuthFixture(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "245522733096", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "KMIT", claims.College)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	service, _ := newAuthFixture(t)

	_, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))
}

func TestAuthServiceLoginUnknownID(t *testing.T) {
	service, _ := newAuthFixture(t)

	_, err := service.Login(context.Background(), models.LoginRequest{ID: "unknown", Password: "secret123"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	service, repo := newAuthFixture(t)
	repo.user.Active = false

	_, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, errCode(t, err))
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	service, repo := newAuthFixture(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	require.NoError(t, err)

	rotated, err := service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)
	assert.True(t, repo.refreshTokens[resp.RefreshToken].Revoked)

	_, err = service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	service, repo := newAuthFixture(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	require.NoError(t, err)
	repo.refreshTokens[resp.RefreshToken].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	service, _ := newAuthFixture(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	require.NoError(t, err)

	err = service.Logout(context.Background(), resp.RefreshToken, "someone-else")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	require.NoError(t, service.Logout(context.Background(), resp.RefreshToken, "245522733096"))
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	service, repo := newAuthFixture(t)

	err := service.ChangePassword(context.Background(), "245522733096", models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})
	require.NoError(t, err)
	assert.True(t, repo.revokedAll)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.user.PasswordHash), []byte("newsecret")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	service, _ := newAuthFixture(t)

	err := service.ChangePassword(context.Background(), "245522733096", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "newsecret",
	})
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestAuthServiceValidateTokenRejectsForgedSecret(t *testing.T) {
	service, repo := newAuthFixture(t)
	forger := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})

	resp, err := forger.Login(context.Background(), models.LoginRequest{ID: "245522733096", Password: "secret123"})
	require.NoError(t, err)

	_, err = service.ValidateToken(resp.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}
