// Package di wires the lending server together with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/di/providers"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/media/images"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideSSEManager)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideLedger)
	do.Provide(injector, providers.ProvideCoverStorage)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Loan policy
	do.Provide(injector, providers.ProvidePolicyTable)
	do.Provide(injector, providers.ProvidePolicyReloader)

	// Auth
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideAuthLimiter)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideInstanceService)
	do.Provide(injector, providers.ProvideInstance)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideLoanService)
	do.Provide(injector, providers.ProvideBookService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)
	do.Provide(injector, providers.ProvideOverdueAuditJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap forces initialization of every service so startup errors surface
// before the process settles into serving.
func Bootstrap(injector *do.RootScope) error {
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[providers.AuthKey](injector),
		invoke[*providers.SSEManagerHandle](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*providers.LedgerHandle](injector),
		invoke[*images.Storage](injector),
		invoke[*providers.SearchIndexHandle](injector),
		invoke[*policy.Table](injector),
		invoke[*providers.PolicyReloaderHandle](injector),
		invoke[*auth.TokenService](injector),
		invoke[*providers.AuthLimiterHandle](injector),
		invoke[*domain.Instance](injector),
		invoke[*service.AuthService](injector),
		invoke[*service.LoanService](injector),
		invoke[*service.BookService](injector),
		invoke[*providers.SessionCleanupJob](injector),
		invoke[*providers.OverdueAuditJob](injector),
		invoke[*providers.HTTPServerHandle](injector),
		invoke[*providers.MDNSServiceHandle](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	providers.TriggerSearchReindexIfNeeded(injector)
	return nil
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
