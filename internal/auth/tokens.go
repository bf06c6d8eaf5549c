package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/id"
)

const (
	tokenIssuer   = "library-server"
	tokenAudience = "library-client"

	refreshTokenBytes = 32
)

// ErrTokenExpired is returned by VerifyAccessToken for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("access token expired")

// AccessClaims are the claims carried in an encrypted v4.local access token.
type AccessClaims struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	IsRoot    bool        `json:"is_root"`
	ExpiresAt time.Time   `json:"exp"`
	TokenID   string      `json:"jti"`
}

// IsLibrarian reports whether the token grants catalog management.
func (c *AccessClaims) IsLibrarian() bool {
	return c.IsRoot || c.Role == domain.RoleLibrarian
}

// TokenService issues and verifies tokens.
type TokenService struct {
	key             paseto.V4SymmetricKey
	accessDuration  time.Duration
	refreshDuration time.Duration
	now             func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, accessDuration, refreshDuration time.Duration) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("build paseto key: %w", err)
	}
	return &TokenService{
		key:             k,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		now:             time.Now,
	}, nil
}

// AccessTokenDuration is how long access tokens live.
func (s *TokenService) AccessTokenDuration() time.Duration { return s.accessDuration }

// RefreshTokenDuration is how long sessions live without a refresh.
func (s *TokenService) RefreshTokenDuration() time.Duration { return s.refreshDuration }

// GenerateAccessToken issues an access token for user.
func (s *TokenService) GenerateAccessToken(user *domain.User) (string, error) {
	now := s.now()
	jti, err := id.Generate("token")
	if err != nil {
		return "", err
	}

	t := paseto.NewToken()
	t.SetIssuer(tokenIssuer)
	t.SetAudience(tokenAudience)
	t.SetSubject(user.ID)
	t.SetJti(jti)
	t.SetIssuedAt(now)
	t.SetNotBefore(now)
	t.SetExpiration(now.Add(s.accessDuration))
	t.SetString("user_id", user.ID)
	t.SetString("username", user.Username)
	t.SetString("role", string(user.Role))
	if err := t.Set("is_root", user.IsRoot); err != nil {
		return "", fmt.Errorf("set is_root claim: %w", err)
	}

	return t.V4Encrypt(s.key, nil), nil
}

// VerifyAccessToken decrypts and validates token. An expired token yields ErrTokenExpired.
func (s *TokenService) VerifyAccessToken(token string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	t, err := parser.ParseV4Local(s.key, token, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	exp, err := t.GetExpiration()
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !s.now().Before(exp) {
		return nil, ErrTokenExpired
	}

	claims := &AccessClaims{ExpiresAt: exp}
	if claims.UserID, err = t.GetString("user_id"); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims.Username, _ = t.GetString("username")
	role, _ := t.GetString("role")
	claims.Role = domain.Role(role)
	claims.TokenID, _ = t.GetJti()
	_ = t.Get("is_root", &claims.IsRoot)

	return claims, nil
}

// GenerateRefreshToken returns an opaque random refresh token. Only its hash is stored.
func (s *TokenService) GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken returns the value stored for a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
