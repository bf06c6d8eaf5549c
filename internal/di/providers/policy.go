package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/sse"
)

// ProvidePolicyTable builds the loan duration policy from configuration,
// letting a policy file override the configured day counts.
func ProvidePolicyTable(i do.Injector) (*policy.Table, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	durations := configuredDurations(cfg)
	if cfg.Lending.PolicyFile != "" {
		d, err := policy.LoadFile(cfg.Lending.PolicyFile, durations)
		if err != nil {
			return nil, fmt.Errorf("load policy file: %w", err)
		}
		durations = d
	}

	table, err := policy.New(durations)
	if err != nil {
		return nil, fmt.Errorf("loan policy: %w", err)
	}

	for _, e := range table.Entries() {
		log.Info("Loan policy", "category", e.Category, "book_type", e.BookType, "days", e.Days)
	}
	return table, nil
}

func configuredDurations(cfg *config.Config) policy.Durations {
	return policy.FromDays(cfg.Lending.StandardDays, cfg.Lending.ExtendedDays, cfg.Lending.ShortDays)
}

// PolicyReloaderHandle watches the policy file, if one is configured.
type PolicyReloaderHandle struct {
	*policy.Reloader
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *PolicyReloaderHandle) Shutdown() error {
	if h.Reloader == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvidePolicyReloader starts hot reloading of the policy file and
// announces every applied change to connected clients.
func ProvidePolicyReloader(i do.Injector) (*PolicyReloaderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	table := do.MustInvoke[*policy.Table](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	if cfg.Lending.PolicyFile == "" {
		return &PolicyReloaderHandle{}, nil
	}

	r, err := policy.NewReloader(table, cfg.Lending.PolicyFile, configuredDurations(cfg), log.Component("policy"))
	if err != nil {
		return nil, fmt.Errorf("watch policy file: %w", err)
	}
	r.OnChange(func(d policy.Durations) {
		sseHandle.Emit(sse.NewPolicyUpdatedEvent(d))
	})

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	log.Info("Watching policy file", "path", cfg.Lending.PolicyFile)

	return &PolicyReloaderHandle{Reloader: r, cancel: cancel}, nil
}
