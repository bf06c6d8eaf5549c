package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// ClientInfo is what the HTTP layer knows about the caller when a session is created or refreshed.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// SessionResponse carries a fresh token pair.
type SessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	SessionID    string `json:"session_id"`
}

// SessionService issues token pairs and rotates refresh tokens.
type SessionService struct {
	sessions store.Sessions
	users    store.Users
	tokens   *auth.TokenService
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(sessions store.Sessions, users store.Users, tokens *auth.TokenService, logger *slog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// CreateSession starts a session for user and returns its tokens.
func (s *SessionService) CreateSession(ctx context.Context, user *domain.User, client ClientInfo) (*SessionResponse, error) {
	sessionID, err := id.Generate("session")
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	access, refresh, err := s.tokenPair(user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refresh),
		ExpiresAt:        now.Add(s.tokens.RefreshTokenDuration()),
		CreatedAt:        now,
		LastSeenAt:       now,
		IPAddress:        client.IPAddress,
		UserAgent:        client.UserAgent,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return s.response(access, refresh, sessionID), nil
}

// RefreshSession exchanges a refresh token for a new pair. The old refresh token stops working.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string, client ClientInfo) (*SessionResponse, *domain.User, error) {
	session, err := s.sessions.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperrors.TokenExpired("invalid or expired refresh token")
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	now := s.now()
	if session.IsExpired(now) {
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, nil, apperrors.TokenExpired("invalid or expired refresh token")
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, nil, apperrors.Unauthorized("account no longer exists").WithCause(err)
	}

	access, refresh, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	session.RefreshTokenHash = auth.HashRefreshToken(refresh)
	session.LastSeenAt = now
	session.ExpiresAt = now.Add(s.tokens.RefreshTokenDuration())
	if client.IPAddress != "" {
		session.IPAddress = client.IPAddress
	}
	if client.UserAgent != "" {
		session.UserAgent = client.UserAgent
	}
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("update session: %w", err)
	}

	return s.response(access, refresh, session.ID), user, nil
}

// EndSession deletes the session owning refreshToken. Unknown tokens are ignored.
func (s *SessionService) EndSession(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session ended", "session_id", session.ID, "user_id", session.UserID)
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry. Run periodically.
func (s *SessionService) DeleteExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("deleted expired sessions", "count", n)
	}
	return n, nil
}

func (s *SessionService) tokenPair(user *domain.User) (access, refresh string, err error) {
	access, err = s.tokens.GenerateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}
	refresh, err = s.tokens.GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *SessionService) response(access, refresh, sessionID string) *SessionResponse {
	return &SessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
		SessionID:    sessionID,
	}
}
