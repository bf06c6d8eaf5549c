package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/api"
	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/mdns"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/ratelimit"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

// AuthLimiterHandle wraps the per-IP limiter on auth routes.
type AuthLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *AuthLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter != nil {
		h.Stop()
	}
	return nil
}

// ProvideAuthLimiter provides the auth route rate limiter. A non-positive rate disables it.
func ProvideAuthLimiter(i do.Injector) (*AuthLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.RateLimit.AuthRPS <= 0 {
		log.Info("Auth rate limiting disabled")
		return &AuthLimiterHandle{}, nil
	}

	limiter := ratelimit.New(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst, 10*time.Minute)
	log.Info("Auth rate limiting enabled", "rps", cfg.RateLimit.AuthRPS, "burst", cfg.RateLimit.AuthBurst)
	return &AuthLimiterHandle{KeyedRateLimiter: limiter}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer builds the API handler and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	limiter := do.MustInvoke[*AuthLimiterHandle](i)

	services := &api.Services{
		Instance: do.MustInvoke[*service.InstanceService](i),
		Auth:     do.MustInvoke[*service.AuthService](i),
		Book:     do.MustInvoke[*service.BookService](i),
		Loan:     do.MustInvoke[*service.LoanService](i),
		Policy:   do.MustInvoke[*policy.Table](i),
	}

	handler := api.NewServer(services, sseHandle.Manager, api.Options{
		Version:            cfg.App.Version,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AuthLimiter:        limiter.KeyedRateLimiter,
		Upload:             cfg.Upload,
		HealthChecks: map[string]api.HealthCheck{
			"database": func(context.Context) error { return storeHandle.Ping() },
		},
	}, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.Service != nil && h.Running() {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService advertises the server on the local network when enabled.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	instance := do.MustInvoke[*domain.Instance](i)

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		log.Warn("Failed to parse server port for mDNS, using default", "port", cfg.Server.Port)
		port = 8080
	}

	svc := mdns.NewService(log.Component("mdns"))
	if err := svc.Start(instance, port); err != nil {
		// Containers and cloud hosts often have no multicast.
		log.Warn("mDNS advertisement unavailable", "error", err)
	}
	return &MDNSServiceHandle{Service: svc}, nil
}
