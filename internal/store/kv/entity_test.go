package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/store"
)

type shelfItem struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newShelfEntity(s *Store) *Entity[shelfItem] {
	return NewEntity[shelfItem](s, "shelf:").
		WithIndex("code", func(v *shelfItem) []string {
			if v.Code == "" {
				return nil
			}
			return []string{v.Code}
		})
}

func TestEntity_CreateAndGet(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()

	require.NoError(t, e.Create(ctx, "1", &shelfItem{ID: "1", Code: "A1", Label: "fiction"}))

	got, err := e.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "fiction", got.Label)

	byCode, err := e.GetByIndex(ctx, "code", "A1")
	require.NoError(t, err)
	assert.Equal(t, "1", byCode.ID)
}

func TestEntity_Create_Duplicates(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, "1", &shelfItem{ID: "1", Code: "A1"}))

	err := e.Create(ctx, "1", &shelfItem{ID: "1", Code: "B2"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	err = e.Create(ctx, "2", &shelfItem{ID: "2", Code: "A1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = e.Get(ctx, "2")
	assert.ErrorIs(t, err, store.ErrNotFound, "failed create must not leave a record")
}

func TestEntity_Get_NotFound(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))

	_, err := e.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.GetByIndex(context.Background(), "code", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Mutate_MovesIndex(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, "1", &shelfItem{ID: "1", Code: "A1"}))

	got, err := e.Mutate(ctx, "1", func(v *shelfItem) error {
		v.Code = "C3"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "C3", got.Code)

	_, err = e.GetByIndex(ctx, "code", "A1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The released key is free for another entity.
	require.NoError(t, e.Create(ctx, "2", &shelfItem{ID: "2", Code: "A1"}))
}

func TestEntity_Mutate_AbortKeepsState(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, "1", &shelfItem{ID: "1", Code: "A1", Label: "before"}))

	abort := errors.New("abort")
	_, err := e.Mutate(ctx, "1", func(v *shelfItem) error {
		v.Label = "after"
		return abort
	})
	assert.ErrorIs(t, err, abort)

	got, err := e.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Label)
}

func TestEntity_Mutate_IndexConflict(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()
	require.NoError(t, e.Create(ctx, "1", &shelfItem{ID: "1", Code: "A1"}))
	require.NoError(t, e.Create(ctx, "2", &shelfItem{ID: "2", Code: "B2"}))

	_, err := e.Mutate(ctx, "2", func(v *shelfItem) error {
		v.Code = "A1"
		return nil
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_ScanIndex(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	ctx := context.Background()
	for _, v := range []shelfItem{{ID: "1", Code: "B"}, {ID: "2", Code: "A"}, {ID: "3"}, {ID: "4", Code: "C"}} {
		require.NoError(t, e.Create(ctx, v.ID, &v))
	}

	var ids []string
	for v, err := range e.ScanIndex(ctx, "code", "") {
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"2", "1", "4"}, ids, "index order, unindexed entity skipped")

	count := 0
	for range e.ScanIndex(ctx, "code", "") {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestEntity_ScanIndex_CanceledContext(t *testing.T) {
	e := newShelfEntity(setupTestStore(t))
	require.NoError(t, e.Create(context.Background(), "1", &shelfItem{ID: "1", Code: "A"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range e.ScanIndex(ctx, "code", "") {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
