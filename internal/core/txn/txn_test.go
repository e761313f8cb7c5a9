// Copyright (c) 2026 AetherCore contributors.

package txn

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/repository"
	"github.com/taibuivan/aethercore/internal/core/store"
)

// fakeRepo is a minimal in-memory Repository double, used only to count
// how many entities a transaction commit persists.
type fakeRepo struct {
	mu       sync.Mutex
	data     map[string]*entity.Entity
	saveHits int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{data: make(map[string]*entity.Entity)}
}

func (r *fakeRepo) Save(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveHits++
	if e.Version == 0 {
		e.Version = 1
	}
	r.data[e.ID] = e.Clone()
	return nil
}

func (r *fakeRepo) Load(_ context.Context, id string) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.data[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *fakeRepo) LoadBulk(_ context.Context, ids []string) (map[string]*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*entity.Entity)
	for _, id := range ids {
		if e, ok := r.data[id]; ok {
			out[id] = e.Clone()
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func (r *fakeRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[id]
	return ok, nil
}

func (r *fakeRepo) ListByType(_ context.Context, entityType string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, e := range r.data {
		if e.Type == entityType {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

func (r *fakeRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string]*entity.Entity)
	return nil
}

func (r *fakeRepo) AddReferral(context.Context, string, string) (bool, error) { return false, nil }
func (r *fakeRepo) GetReferrer(context.Context, string) (string, error)       { return "", nil }
func (r *fakeRepo) GetDirectReferrals(context.Context, string) ([]string, error) {
	return nil, nil
}
func (r *fakeRepo) GetReferralTree(context.Context, string, int, bool) (*repository.ReferralNode, error) {
	return nil, nil
}

func TestCommit_MakesChangesVisibleOnBackingStore(t *testing.T) {
	s := store.New(nil, false)
	e := entity.New("player")
	require.NoError(t, s.Set(context.Background(), e))

	tx := Begin(s, false)
	ws := tx.WorkingStore()

	working, ok := ws.Get(e.ID)
	require.True(t, ok)
	working.Fields["gold"] = int64(500)
	ws.Set(working)

	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, StateCommitted, tx.State())

	committed, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), committed.Fields["gold"])
}

func TestRollback_LeavesBackingStoreUntouched(t *testing.T) {
	s := store.New(nil, false)
	e := entity.New("player")
	require.NoError(t, s.Set(context.Background(), e))

	tx := Begin(s, false)
	ws := tx.WorkingStore()
	working, _ := ws.Get(e.ID)
	working.Fields["gold"] = int64(999)
	ws.Set(working)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, StateRolledBack, tx.State())

	unchanged, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.NotContains(t, unchanged.Fields, "gold")
}

func TestCommit_TwiceReturnsAlreadyFinished(t *testing.T) {
	s := store.New(nil, false)
	tx := Begin(s, false)

	require.NoError(t, tx.Commit(context.Background()))
	err := tx.Commit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestRollback_AfterCommitReturnsAlreadyFinished(t *testing.T) {
	s := store.New(nil, false)
	tx := Begin(s, false)
	require.NoError(t, tx.Commit(context.Background()))

	err := tx.Rollback()
	assert.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestWorkingStore_IsolatedFromOtherConcurrentTransactionsUntilCommit(t *testing.T) {
	s := store.New(nil, false)
	e := entity.New("player")
	e.Fields["gold"] = int64(100)
	require.NoError(t, s.Set(context.Background(), e))

	tx1 := Begin(s, false)
	tx2 := Begin(s, false)

	w1 := tx1.WorkingStore()
	ent1, _ := w1.Get(e.ID)
	ent1.Fields["gold"] = int64(1)
	w1.Set(ent1)

	w2 := tx2.WorkingStore()
	ent2, _ := w2.Get(e.ID)
	assert.Equal(t, int64(100), ent2.Fields["gold"], "tx2's snapshot must not observe tx1's uncommitted write")

	require.NoError(t, tx1.Commit(context.Background()))
	require.NoError(t, tx2.Rollback())
}

func TestWorkingStore_DeleteRemovesFromSnapshot(t *testing.T) {
	s := store.New(nil, false)
	e := entity.New("item")
	require.NoError(t, s.Set(context.Background(), e))

	tx := Begin(s, false)
	ws := tx.WorkingStore()
	ws.Delete(e.ID)
	assert.False(t, ws.Exists(e.ID))

	require.NoError(t, tx.Commit(context.Background()))
	_, ok, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommit_WriteThroughPersistsOnlyTouchedIDs(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo, false)
	untouched := entity.New("item")
	require.NoError(t, s.Set(context.Background(), untouched))
	touched := entity.New("item")
	require.NoError(t, s.Set(context.Background(), touched))
	repo.saveHits = 0

	tx := Begin(s, true)
	ws := tx.WorkingStore()
	w, _ := ws.Get(touched.ID)
	w.Fields["gold"] = int64(1)
	ws.Set(w)

	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, 1, repo.saveHits, "only the touched entity should be persisted on commit")
}
