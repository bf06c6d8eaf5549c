// Package providers contains dependency injection providers for the lending server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting library server",
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"log_level", cfg.Logger.Level,
		"metadata_path", cfg.Metadata.BasePath,
		"ledger", cfg.Lending.LedgerBackend,
	)

	return log, nil
}
