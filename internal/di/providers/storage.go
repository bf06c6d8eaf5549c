package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/media/images"
)

// ProvideCoverStorage provides on-disk storage for uploaded cover images.
func ProvideCoverStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	covers, err := images.NewStorage(cfg.Metadata.CoversPath(), cfg.Upload.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("cover storage: %w", err)
	}

	log.Info("Cover storage initialized", "path", covers.Dir(), "max_size", cfg.Upload.MaxSize)
	return covers, nil
}
