package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic expired-session sweep.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	cleanup := func(label string) {
		if count, err := sessions.DeleteExpiredSessions(ctx); err != nil {
			log.Warn(label+" failed", "error", err)
		} else if count > 0 {
			log.Info(label+" completed", "deleted", count)
		}
	}

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		cleanup("Initial session cleanup")
		for {
			select {
			case <-ticker.C:
				cleanup("Session cleanup")
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started")

	return &SessionCleanupJob{cancel: cancel}, nil
}

// OverdueAuditJob periodically logs the loans that are past due.
type OverdueAuditJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *OverdueAuditJob) Shutdown() error {
	if j.cancel != nil {
		j.cancel()
	}
	return nil
}

// ProvideOverdueAuditJob provides the overdue audit. A zero interval disables it.
func ProvideOverdueAuditJob(i do.Injector) (*OverdueAuditJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	loans := do.MustInvoke[*service.LoanService](i)
	log := do.MustInvoke[*logger.Logger](i)

	interval := cfg.Lending.OverdueAuditInterval
	if interval <= 0 {
		log.Info("Overdue audit disabled")
		return &OverdueAuditJob{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	audit := log.Component("overdue")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				auditOverdue(ctx, loans, audit)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Overdue audit job started", "interval", interval)

	return &OverdueAuditJob{cancel: cancel}, nil
}

func auditOverdue(ctx context.Context, loans *service.LoanService, log *slog.Logger) {
	now := time.Now().UTC()
	count := 0
	for view, err := range loans.ListOverdue(ctx, now) {
		if err != nil {
			log.Warn("Overdue audit failed", "error", err)
			return
		}
		count++
		log.Info("Loan overdue",
			"loan_id", view.Loan.ID,
			"book_id", view.Loan.BookID,
			"borrower_id", view.Loan.BorrowerID,
			"expected_return", view.ExpectedReturnTime,
		)
	}
	log.Info("Overdue audit completed", "overdue", count)
}
