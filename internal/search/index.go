// Package search maintains a bleve full-text index over the book catalog.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// Index wraps a bleve index of books. Methods are safe for concurrent use;
// Rebuild takes the write lock and blocks everything else while it runs.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	// DataPath is the directory holding the index. Empty keeps the index in memory.
	DataPath string
	Logger   *slog.Logger
}

// Open opens the index under opts.DataPath, creating it when missing and
// recreating it when the stored mapping version differs or the files are unreadable.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var idx bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		stored, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil || string(stored) != mappingVersion:
			logger.Info("search mapping changed, rebuilding index",
				"old_version", string(stored), "new_version", mappingVersion)
		default:
			idx, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
				idx = nil
			}
		}
	}

	if idx == nil {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove stale index: %w", err)
		}
		var err error
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath)
	}

	return &Index{index: idx, path: indexPath, logger: logger}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces one book.
func (s *Index) IndexBook(b *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(b.ID, documentFor(b))
}

func (s *Index) indexBatch(books []*domain.Book) error {
	const batchSize = 500

	for start := 0; start < len(books); start += batchSize {
		end := min(start+batchSize, len(books))

		batch := s.index.NewBatch()
		for _, b := range books[start:end] {
			if err := batch.Index(b.ID, documentFor(b)); err != nil {
				return fmt.Errorf("batch index %s: %w", b.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteBook removes a book. Deleting an unknown ID is not an error.
func (s *Index) DeleteBook(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// Count returns the number of indexed books.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index contents with books.
func (s *Index) Rebuild(books []*domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		idx bleve.Index
		err error
	)
	if s.path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		idx, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = idx

	if err := s.indexBatch(books); err != nil {
		return err
	}
	s.logger.Info("rebuilt search index", "books", len(books))
	return nil
}
