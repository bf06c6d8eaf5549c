package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
	assert.False(t, VerifyPassword("not-a-hash", "correct horse"))

	again, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salts differ")
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrPasswordEmpty)

	_, err = HashPassword(strings.Repeat("x", maxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, KeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateKey_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")
	require.NoError(t, os.WriteFile(path, []byte("zz"), 0o600))

	_, err := LoadOrCreateKey(path)
	assert.Error(t, err)
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	key, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	svc, err := NewTokenService(key, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)
	user := &domain.User{
		Syncable: domain.Syncable{ID: "user-1"},
		Username: "dana",
		Role:     domain.RoleLibrarian,
		IsRoot:   true,
	}

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "dana", claims.Username)
	assert.True(t, claims.IsRoot)
	assert.True(t, claims.IsLibrarian())
	assert.NotEmpty(t, claims.TokenID)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := newTestTokenService(t)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken(&domain.User{Syncable: domain.Syncable{ID: "user-1"}, Role: domain.RoleMember})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = svc.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccessToken_WrongKey(t *testing.T) {
	token, err := newTestTokenService(t).GenerateAccessToken(&domain.User{Syncable: domain.Syncable{ID: "u"}})
	require.NoError(t, err)

	_, err = newTestTokenService(t).VerifyAccessToken(token)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestNewTokenService_BadKey(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestRefreshTokens(t *testing.T) {
	svc := newTestTokenService(t)

	a, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.Equal(t, HashRefreshToken(a), HashRefreshToken(a))
	assert.Len(t, HashRefreshToken(a), 64)
	assert.NotEqual(t, a, HashRefreshToken(a))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
