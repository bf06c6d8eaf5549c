package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/media/images"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/service"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideInstanceService provides the server instance service.
func ProvideInstanceService(i do.Injector) (*service.InstanceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInstanceService(storeHandle.Store, log.Component("instance")), nil
}

// ProvideInstance makes sure the instance record exists and reflects the configured name and version.
func ProvideInstance(i do.Injector) (*domain.Instance, error) {
	cfg := do.MustInvoke[*config.Config](i)
	instanceService := do.MustInvoke[*service.InstanceService](i)
	log := do.MustInvoke[*logger.Logger](i)

	instance, err := instanceService.Initialize(context.Background(), cfg.Server.Name, cfg.App.Version)
	if err != nil {
		return nil, err
	}

	log.Info("Server instance ready",
		"instance_id", instance.ID,
		"name", instance.Name,
		"version", instance.Version,
	)
	return instance, nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, storeHandle.Store, tokenService, log.Component("sessions")), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, sessionService, tokenService, validate, log.Component("auth")), nil
}

// ProvideLoanService provides the loan state machine.
func ProvideLoanService(i do.Injector) (*service.LoanService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledger := do.MustInvoke[*LedgerHandle](i)
	table := do.MustInvoke[*policy.Table](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLoanService(ledger.Ledger, storeHandle.Store, table, sseHandle.Manager, log.Component("loans")), nil
}

// ProvideBookService provides the catalog service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	loanService := do.MustInvoke[*service.LoanService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	covers := do.MustInvoke[*images.Storage](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(
		storeHandle.Store,
		loanService,
		indexHandle.Index,
		covers,
		sseHandle.Manager,
		validate,
		log.Component("books"),
	), nil
}
