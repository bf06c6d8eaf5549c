package providers

import (
	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
)

// AuthKey wraps the token encryption key bytes.
type AuthKey []byte

// ProvideAuthKey loads the token key, creating it on first start.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrCreateKey(cfg.Metadata.KeyPath())
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
		"refresh_token_duration", cfg.Auth.RefreshTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(key, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
}
