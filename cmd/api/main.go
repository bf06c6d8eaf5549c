// Package main is the entry point for the library lending server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/di"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("Shutting down server gracefully", "signal", sig.String())

	// The container shuts handles down in reverse dependency order.
	if err := injector.Shutdown(); err != nil {
		log.WithError(err).Error("Shutdown error")
		os.Exit(1)
	}

	log.Info("Server stopped")
}
