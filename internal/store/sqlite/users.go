package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, deleted_at, username,
	password_hash, name, city, age, role, is_root, last_login_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		createdAt   string
		updatedAt   string
		deletedAt   sql.NullString
		role        string
		isRoot      int
		lastLoginAt string
	)

	err := scanner.Scan(
		&u.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&u.Username,
		&u.PasswordHash,
		&u.Name,
		&u.City,
		&u.Age,
		&role,
		&isRoot,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if u.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	if u.LastLoginAt, err = parseTime(lastLoginAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.IsRoot = isRoot != 0

	return &u, nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CreateUser inserts a new user.
// Returns store.ErrAlreadyExists if the ID or username (case-insensitive) is taken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, deleted_at, username, username_lower,
			password_hash, name, city, age, role, is_root, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullTimeString(user.DeletedAt),
		user.Username,
		usernameKey(user.Username),
		user.PasswordHash,
		user.Name,
		user.City,
		user.Age,
		string(user.Role),
		boolToInt(user.IsRoot),
		formatTime(user.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetUser retrieves a user by ID, excluding soft-deleted records.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return u, err
}

// GetUserByUsername looks a user up case-insensitively.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username_lower = ? AND deleted_at IS NULL`,
		usernameKey(username))

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return u, err
}

// UpdateUser replaces every mutable column of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			updated_at = ?, deleted_at = ?, username = ?, username_lower = ?,
			password_hash = ?, name = ?, city = ?, age = ?, role = ?, is_root = ?,
			last_login_at = ?
		WHERE id = ?`,
		formatTime(user.UpdatedAt),
		nullTimeString(user.DeletedAt),
		user.Username,
		usernameKey(user.Username),
		user.PasswordHash,
		user.Name,
		user.City,
		user.Age,
		string(user.Role),
		boolToInt(user.IsRoot),
		formatTime(user.LastLoginAt),
		user.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
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

// ListUsers returns all active users ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY username_lower`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers counts active users. Zero means the server has not been set up yet.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}
