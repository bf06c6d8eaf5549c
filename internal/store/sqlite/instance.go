package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

const instanceRecordKey = "instance"

// GetInstanceKey reads a value from the instance key-value table.
func (s *Store) GetInstanceKey(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM instance WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return value, err
}

// SetInstanceKey creates or replaces a value in the instance key-value table.
func (s *Store) SetInstanceKey(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO instance (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetInstance returns the persisted server identity.
func (s *Store) GetInstance(ctx context.Context) (*domain.Instance, error) {
	raw, err := s.GetInstanceKey(ctx, instanceRecordKey)
	if err != nil {
		return nil, err
	}
	var inst domain.Instance
	if err := json.Unmarshal([]byte(raw), &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// SaveInstance persists the server identity.
func (s *Store) SaveInstance(ctx context.Context, inst *domain.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	return s.SetInstanceKey(ctx, instanceRecordKey, string(data))
}
