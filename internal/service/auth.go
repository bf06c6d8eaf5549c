package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/store"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required,max=200"`
	City     string `json:"city,omitempty" validate:"max=200"`
	Age      int    `json:"age,omitempty" validate:"gte=0,lte=150"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is a signed-in user with a fresh token pair.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User   *domain.User
	Claims *auth.AccessClaims
}

// AuthService registers accounts, checks credentials, and resolves access tokens to users.
type AuthService struct {
	users    store.Users
	sessions *SessionService
	tokens   *auth.TokenService
	validate *validation.Validator
	now      func() time.Time
	logger   *slog.Logger

	// registerMu makes "first account becomes root" hold under concurrent registrations.
	registerMu sync.Mutex
}

// NewAuthService creates the auth service.
func NewAuthService(
	users store.Users,
	sessions *SessionService,
	tokens *auth.TokenService,
	validate *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		validate: validate,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Register creates a member account and signs it in. The first account on an
// empty server becomes the root librarian.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, client ClientInfo) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.now()
	user := &domain.User{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		City:         strings.TrimSpace(req.City),
		Age:          req.Age,
		Role:         domain.RoleMember,
		LastLoginAt:  now,
	}
	user.ID = userID
	user.InitTimestamps(now)

	s.registerMu.Lock()
	count, err := s.users.CountUsers(ctx)
	if err == nil {
		if count == 0 {
			user.IsRoot = true
			user.Role = domain.RoleLibrarian
		}
		err = s.users.CreateUser(ctx, user)
	}
	s.registerMu.Unlock()

	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("username already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "root", user.IsRoot)

	session, err := s.sessions.CreateSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Login verifies credentials and starts a session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*AuthResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	// Unknown usernames still pay for a hash so timing does not reveal which accounts exist.
	encoded := dummyHash()
	if user != nil {
		encoded = user.PasswordHash
	}
	if !auth.VerifyPassword(encoded, req.Password) || user == nil {
		s.logger.Warn("failed login", "username", req.Username, "ip", client.IPAddress)
		return nil, apperrors.InvalidCredentials("invalid username or password")
	}

	now := s.now()
	user.LastLoginAt = now
	user.Touch(now)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	session, err := s.sessions.CreateSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.ValidationWithDetails("validation failed", map[string]string{"refresh_token": "is required"})
	}
	session, user, err := s.sessions.RefreshSession(ctx, refreshToken, client)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Logout ends the session that owns refreshToken.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.EndSession(ctx, refreshToken)
}

// Authenticate resolves a bearer token to its user. The account must still exist.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.TokenExpired("access token expired")
		}
		return nil, apperrors.Unauthorized("invalid access token").WithCause(err)
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &Identity{User: user, Claims: claims}, nil
}

// GetUser returns one account.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFoundf("user %s not found", userID)
	}
	return user, err
}

// ListUsers returns every account. Librarian only; the caller checks the role.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

var dummyHash = sync.OnceValue(func() string {
	h, err := auth.HashPassword("timing-equalizer")
	if err != nil {
		panic(err)
	}
	return h
})
