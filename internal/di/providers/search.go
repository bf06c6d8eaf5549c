package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/almogrr/projectTrainigLibary/internal/config"
	"github.com/almogrr/projectTrainigLibary/internal/logger"
	"github.com/almogrr/projectTrainigLibary/internal/search"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve catalog index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Metadata.SearchPath(),
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the catalog in the background.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	bookService := do.MustInvoke[*service.BookService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if count, err := indexHandle.Count(); err != nil || count > 0 {
		return
	}

	go func() {
		n, err := bookService.Reindex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("Initial search reindex completed", "documents", n)
		}
	}()
}
