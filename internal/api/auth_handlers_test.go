package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/ratelimit"
)

func TestRegister_FirstUserIsLibrarian(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "ada",
		"password": "correct horse battery",
		"name":     "Ada Lovelace",
		"city":     "London",
		"age":      36,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	env := decode[AuthResponse](t, resp)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data.AccessToken)
	assert.NotEmpty(t, env.Data.RefreshToken)
	assert.Equal(t, "Bearer", env.Data.TokenType)
	assert.Positive(t, env.Data.ExpiresIn)
	assert.Equal(t, "ada", env.Data.User.Username)
	assert.Equal(t, "London", env.Data.User.City)
	assert.True(t, env.Data.User.IsRoot)
	assert.Equal(t, domain.RoleLibrarian, env.Data.User.Role)
	assert.NotContains(t, resp.Body.String(), "password")

	resp = ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "grace",
		"password": "correct horse battery",
		"name":     "Grace Hopper",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	second := decode[AuthResponse](t, resp)
	assert.False(t, second.Data.User.IsRoot)
	assert.Equal(t, domain.RoleMember, second.Data.User.Role)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "ada")

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "ada",
		"password": "another long password",
		"name":     "Other Ada",
	})
	assertError(t, resp, http.StatusConflict, "ALREADY_EXISTS")
}

func TestRegister_ValidationErrors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "missing password",
			body:       map[string]any{"username": "ada", "name": "Ada"},
			wantStatus: http.StatusUnprocessableEntity, // huma rejects missing required fields
		},
		{
			name:       "short password",
			body:       map[string]any{"username": "ada", "password": "short", "name": "Ada"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short username",
			body:       map[string]any{"username": "ad", "password": "correct horse battery", "name": "Ada"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/auth/register", tt.body)
			assertError(t, resp, tt.wantStatus, "VALIDATION")
		})
	}
}

func TestRegister_ValidationDetailsNameTheField(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "ada", "password": "short", "name": "Ada",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	env := decode[json.RawMessage](t, resp)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "password")
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "ada")

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"username": "ada",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decode[AuthResponse](t, resp)
	assert.NotEmpty(t, env.Data.AccessToken)

	me := ts.api.Get("/api/v1/users/me", bearer(env.Data.AccessToken))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "ada", decode[domain.User](t, me).Data.Username)
}

func TestLogin_BadCredentials(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "ada")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "ada", "wrong password entirely"},
		{"unknown user", "nobody", "correct horse battery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/auth/login", map[string]any{
				"username": tt.username,
				"password": tt.password,
			})
			assertError(t, resp, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		})
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "ada", "password": "correct horse battery", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	first := decode[AuthResponse](t, resp).Data

	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	second := decode[AuthResponse](t, resp).Data
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.SessionID, second.SessionID)

	// The rotated-out token is dead.
	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogout_EndsSession(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "ada", "password": "correct horse battery", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	session := decode[AuthResponse](t, resp).Data

	resp = ts.api.Post("/api/v1/auth/logout", bearer(session.AccessToken),
		map[string]any{"refresh_token": session.RefreshToken})
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogout_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/logout", map[string]any{"refresh_token": "anything"})
	assertError(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestProtectedRoutes_RejectBadTokens(t *testing.T) {
	ts := setupTestServer(t)

	assertError(t, ts.api.Get("/api/v1/users/me"), http.StatusUnauthorized, "UNAUTHORIZED")
	assertError(t, ts.api.Get("/api/v1/users/me", bearer("v4.local.garbage")), http.StatusUnauthorized, "UNAUTHORIZED")
	assertError(t, ts.api.Get("/api/v1/books", "Authorization: Basic YWRhOmFkYQ=="), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestListUsers_LibrarianOnly(t *testing.T) {
	ts := setupTestServer(t)
	librarian, _ := ts.register(t, "ada")
	member, _ := ts.register(t, "grace")

	resp := ts.api.Get("/api/v1/users", bearer(librarian))
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[UserList](t, resp).Data
	assert.Equal(t, 2, list.Total)

	assertError(t, ts.api.Get("/api/v1/users", bearer(member)), http.StatusForbidden, "FORBIDDEN")
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	limiter := ratelimit.New(0.001, 2, time.Minute)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, withAuthLimiter(limiter))

	body := map[string]any{"username": "nobody", "password": "whatever it is"}
	for range 2 {
		resp := ts.api.Post("/api/v1/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/api/v1/auth/login", body)
	assertError(t, resp, http.StatusTooManyRequests, "RATE_LIMITED")
	assert.Equal(t, "1", resp.Header().Get("Retry-After"))

	// Routes outside auth are not limited.
	assert.Equal(t, http.StatusOK, ts.api.Get("/health").Code)
}
