package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/store/sqlite"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

type authFixture struct {
	db       *sqlite.Store
	auth     *AuthService
	sessions *SessionService
	tokens   *auth.TokenService
	clock    *testClock
}

func setupAuthTest(t *testing.T) *authFixture {
	t.Helper()
	db := openTestDB(t)

	key := make([]byte, auth.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	clock := &testClock{now: loanEpoch}
	sessions := NewSessionService(db, db, tokens, discardLogger())
	sessions.now = clock.Now
	svc := NewAuthService(db, sessions, tokens, validation.New(), discardLogger())
	svc.now = clock.Now

	return &authFixture{db: db, auth: svc, sessions: sessions, tokens: tokens, clock: clock}
}

func registration(username string) RegisterRequest {
	return RegisterRequest{Username: username, Password: "correct horse battery", Name: "Reader " + username, City: "Haifa", Age: 30}
}

func TestAuthService_FirstUserIsRootLibrarian(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	first, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)
	assert.True(t, first.User.IsRoot)
	assert.Equal(t, domain.RoleLibrarian, first.User.Role)
	assert.NotEmpty(t, first.AccessToken)
	assert.NotEmpty(t, first.RefreshToken)
	assert.Equal(t, "Bearer", first.TokenType)
	assert.Equal(t, 900, first.ExpiresIn)

	second, err := f.auth.Register(ctx, registration("grace"), ClientInfo{})
	require.NoError(t, err)
	assert.False(t, second.User.IsRoot)
	assert.Equal(t, domain.RoleMember, second.User.Role)
}

func TestAuthService_ConcurrentFirstRegistrations(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*AuthResponse, 6)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.auth.Register(ctx, registration("user"+string(rune('a'+i))), ClientInfo{})
			assert.NoError(t, err)
			results[i] = resp
		}()
	}
	wg.Wait()

	roots := 0
	for _, r := range results {
		if r != nil && r.User.IsRoot {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	req := registration("ada")
	req.Password = "short"
	_, err := f.auth.Register(ctx, req, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	req = registration("  ")
	_, err = f.auth.Register(ctx, req, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)
	_, err = f.auth.Register(ctx, registration("ADA"), ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestAuthService_Login(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)

	f.clock.Set(loanEpoch.Add(time.Hour))
	resp, err := f.auth.Login(ctx, LoginRequest{Username: "Ada", Password: "correct horse battery"}, ClientInfo{IPAddress: "192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, loanEpoch.Add(time.Hour), resp.User.LastLoginAt)

	_, err = f.auth.Login(ctx, LoginRequest{Username: "ada", Password: "wrong password"}, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginRequest{Username: "nobody", Password: "whatever123"}, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginRequest{}, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAuthService_Authenticate(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)

	ident, err := f.auth.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, ident.User.ID)
	assert.True(t, ident.Claims.IsLibrarian())

	_, err = f.auth.Authenticate(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSessionService_RefreshRotates(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)

	refreshed, err := f.auth.Refresh(ctx, resp.RefreshToken, ClientInfo{UserAgent: "cli/1.0"})
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, refreshed.SessionID)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// The old token was rotated out.
	_, err = f.auth.Refresh(ctx, resp.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	_, err = f.auth.Refresh(ctx, "", ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSessionService_ExpiredRefresh(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)

	f.clock.Set(loanEpoch.Add(25 * time.Hour))
	_, err = f.auth.Refresh(ctx, resp.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestAuthService_Logout(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, resp.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, resp.RefreshToken))

	_, err = f.auth.Refresh(ctx, resp.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestSessionService_DeleteExpired(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	for _, name := range []string{"ada", "grace"} {
		_, err := f.auth.Register(ctx, registration(name), ClientInfo{})
		require.NoError(t, err)
	}

	n, err := f.sessions.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(loanEpoch.Add(48 * time.Hour))
	n, err = f.sessions.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAuthService_Users(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, registration("ada"), ClientInfo{})
	require.NoError(t, err)
	_, err = f.auth.Register(ctx, registration("grace"), ClientInfo{})
	require.NoError(t, err)

	got, err := f.auth.GetUser(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)

	_, err = f.auth.GetUser(ctx, "user-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	users, err := f.auth.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
