package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/sse"
	"github.com/almogrr/projectTrainigLibary/internal/store"
	"github.com/almogrr/projectTrainigLibary/internal/store/kv"
	"github.com/almogrr/projectTrainigLibary/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{Manager: manager, cancel: cancel}, nil
}

// StoreHandle wraps the SQLite store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite catalog and account store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Metadata.DatabasePath()
	db, err := sqlite.Open(path, log.Component("sqlite"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", path)

	return &StoreHandle{Store: db}, nil
}

// LedgerHandle is the loan ledger selected by configuration.
type LedgerHandle struct {
	store.Ledger
	// owned is false when the ledger is the SQLite store, which StoreHandle closes.
	owned bool
}

// Shutdown implements do.Shutdownable.
func (h *LedgerHandle) Shutdown() error {
	if !h.owned {
		return nil
	}
	return h.Close()
}

// ProvideLedger provides the loan ledger.
func ProvideLedger(i do.Injector) (*LedgerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	switch cfg.Lending.LedgerBackend {
	case config.LedgerSQLite, "":
		log.Info("Loan ledger ready", "backend", config.LedgerSQLite)
		return &LedgerHandle{Ledger: storeHandle.Store}, nil

	case config.LedgerBadger:
		path := cfg.Metadata.LedgerPath()
		db, err := kv.Open(path, log.Component("badger"))
		if err != nil {
			return nil, fmt.Errorf("open badger ledger: %w", err)
		}
		log.Info("Loan ledger ready", "backend", config.LedgerBadger, "path", path)
		return &LedgerHandle{Ledger: kv.NewLedger(db), owned: true}, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Lending.LedgerBackend)
	}
}
