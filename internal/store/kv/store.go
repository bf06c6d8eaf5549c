// Package kv is an embedded Badger key-value store. It backs the loan ledger
// when the server runs with LEDGER_BACKEND=badger.
package kv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnAttempts bounds retries of a read-write transaction that lost a commit race.
const maxTxnAttempts = 5

// Store wraps a Badger database.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("badger database opened", "path", dir)

	return &Store{db: db, logger: logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing badger database")
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction committed a conflicting write first. The retry re-reads state,
// so a check-then-write inside fn stays atomic.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
