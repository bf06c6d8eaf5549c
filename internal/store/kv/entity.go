package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// Entity stores values of type T as JSON under prefix+id, with unique secondary indexes.
//
// Index entries live at prefix+"idx:"+name+":"+key and hold the primary id.
// An index key generator may return no keys, which removes the entity from that index.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []index[T]
}

type index[T any] struct {
	name string
	keys func(*T) []string
}

// NewEntity creates an entity collection under prefix, e.g. "loan:".
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithIndex adds a unique secondary index. Creating or updating an entity whose
// index key is already held by another entity fails with store.ErrAlreadyExists.
func (e *Entity[T]) WithIndex(name string, keys func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{name: name, keys: keys})
	return e
}

func (e *Entity[T]) primaryKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexPrefix(name string) string {
	return e.prefix + "idx:" + name + ":"
}

// Create stores v under id. Fails with store.ErrAlreadyExists if the id or any index key is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, v *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s%s: %w", e.prefix, id, err)
	}

	return e.store.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(e.primaryKey(id)); err == nil {
			return store.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := e.claimIndexes(txn, id, v, nil); err != nil {
			return err
		}
		return txn.Set(e.primaryKey(id), data)
	})
}

// Get loads the entity stored under id.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var v *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = e.read(txn, id)
		return err
	})
	return v, err
}

// GetByIndex loads the entity holding key in the named index.
func (e *Entity[T]) GetByIndex(ctx context.Context, name, key string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var v *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(e.indexPrefix(name) + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		v, err = e.read(txn, string(id))
		return err
	})
	return v, err
}

// Mutate applies fn to the stored entity and writes the result in the same
// transaction, moving index entries as needed. An error from fn aborts the write.
func (e *Entity[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.store.update(func(txn *badger.Txn) error {
		old, err := e.read(txn, id)
		if err != nil {
			return err
		}
		next, err := e.read(txn, id)
		if err != nil {
			return err
		}
		if err := fn(next); err != nil {
			return err
		}

		if err := e.releaseIndexes(txn, old, next); err != nil {
			return err
		}
		if err := e.claimIndexes(txn, id, next, old); err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal %s%s: %w", e.prefix, id, err)
		}
		if err := txn.Set(e.primaryKey(id), data); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// ScanIndex iterates entities through the named index, in index key order,
// restricted to index keys starting with keyPrefix. Each iteration opens a new snapshot.
func (e *Entity[T]) ScanIndex(ctx context.Context, name, keyPrefix string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.indexPrefix(name) + keyPrefix)
		stopped := false

		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				id, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				v, err := e.read(txn, string(id))
				if err != nil {
					return fmt.Errorf("index %s points at %s: %w", name, id, err)
				}
				if !yield(v, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

func (e *Entity[T]) read(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.primaryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal %s%s: %w", e.prefix, id, err)
	}
	return &v, nil
}

// claimIndexes writes index entries for v, skipping keys old already holds.
func (e *Entity[T]) claimIndexes(txn *badger.Txn, id string, v, old *T) error {
	for _, idx := range e.indexes {
		var held []string
		if old != nil {
			held = idx.keys(old)
		}
		for _, k := range idx.keys(v) {
			if slices.Contains(held, k) {
				continue
			}
			key := []byte(e.indexPrefix(idx.name) + k)
			if _, err := txn.Get(key); err == nil {
				return fmt.Errorf("index %s key %s: %w", idx.name, k, store.ErrAlreadyExists)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, []byte(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// releaseIndexes deletes index entries old holds that next no longer needs.
func (e *Entity[T]) releaseIndexes(txn *badger.Txn, old, next *T) error {
	for _, idx := range e.indexes {
		keep := idx.keys(next)
		for _, k := range idx.keys(old) {
			if slices.Contains(keep, k) {
				continue
			}
			if err := txn.Delete([]byte(e.indexPrefix(idx.name) + k)); err != nil {
				return err
			}
		}
	}
	return nil
}
