package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// InstanceStore persists the server identity.
type InstanceStore interface {
	GetInstance(ctx context.Context) (*domain.Instance, error)
	SaveInstance(ctx context.Context, inst *domain.Instance) error
}

// InstanceService owns the server identity advertised over mDNS and reported by /health.
type InstanceService struct {
	store  InstanceStore
	now    func() time.Time
	logger *slog.Logger
}

// NewInstanceService creates the instance service.
func NewInstanceService(s InstanceStore, logger *slog.Logger) *InstanceService {
	return &InstanceService{store: s, now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// Initialize loads the identity, creating it on first run. The ID is stable across
// restarts; name and version follow the current configuration.
func (s *InstanceService) Initialize(ctx context.Context, name, version string) (*domain.Instance, error) {
	inst, err := s.store.GetInstance(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		instanceID, genErr := id.Generate("instance")
		if genErr != nil {
			return nil, fmt.Errorf("generate instance ID: %w", genErr)
		}
		inst = &domain.Instance{ID: instanceID}
		s.logger.Info("created server identity", "instance_id", instanceID)
	case err != nil:
		return nil, fmt.Errorf("load instance: %w", err)
	}

	inst.Name = name
	inst.Version = version
	inst.StartedAt = s.now()
	if err := s.store.SaveInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("save instance: %w", err)
	}
	return inst, nil
}

// Get returns the stored identity.
func (s *InstanceService) Get(ctx context.Context) (*domain.Instance, error) {
	inst, err := s.store.GetInstance(ctx)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	return inst, nil
}
