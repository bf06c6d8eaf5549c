package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

const sessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at,
	ip_address, user_agent`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var (
		sess       domain.Session
		expiresAt  string
		createdAt  string
		lastSeenAt string
		ipAddress  sql.NullString
		userAgent  sql.NullString
	)

	err := scanner.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.RefreshTokenHash,
		&expiresAt,
		&createdAt,
		&lastSeenAt,
		&ipAddress,
		&userAgent,
	)
	if err != nil {
		return nil, err
	}

	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return nil, err
	}
	sess.IPAddress = ipAddress.String
	sess.UserAgent = userAgent.String

	return &sess, nil
}

// CreateSession inserts a new session. The owning user must exist.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		formatTime(session.LastSeenAt),
		nullString(session.IPAddress),
		nullString(session.UserAgent),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetSessionByRefreshToken finds the session holding the given refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, tokenHash)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

// UpdateSession rotates the refresh token and bumps expiry and last-seen.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			refresh_token_hash = ?, expires_at = ?, last_seen_at = ?,
			ip_address = ?, user_agent = ?
		WHERE id = ?`,
		session.RefreshTokenHash,
		formatTime(session.ExpiresAt),
		formatTime(session.LastSeenAt),
		nullString(session.IPAddress),
		nullString(session.UserAgent),
		session.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpiredSessions removes every session that expired before now and returns how many.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
