// Copyright (c) 2026 AetherCore contributors.

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/repository"
)

// fakeRepo is a minimal in-memory Repository double used to exercise
// EntityStore's read-through/write-through behavior without a real backend.
type fakeRepo struct {
	mu       sync.Mutex
	data     map[string]*entity.Entity
	loadErr  error
	saveHits int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{data: make(map[string]*entity.Entity)}
}

func (r *fakeRepo) Save(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveHits++
	if existing, ok := r.data[e.ID]; ok {
		if existing.Version != e.Version {
			return repository.ErrVersionConflict
		}
		e.Version++
	} else if e.Version == 0 {
		e.Version = 1
	}
	r.data[e.ID] = e.Clone()
	return nil
}

func (r *fakeRepo) Load(_ context.Context, id string) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
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

func TestGet_NoRepo_MissResolvesAbsent(t *testing.T) {
	s := New(nil, false)

	e, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, e)
}

func TestGet_LoadsFromRepoOnMiss(t *testing.T) {
	repo := newFakeRepo()
	seed := entity.New("player")
	seed.Version = 1
	repo.data[seed.ID] = seed

	s := New(repo, false)

	e, ok, err := s.Get(context.Background(), seed.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seed.ID, e.ID)

	// Mutating the returned clone must never leak back into the store.
	e.Fields["gold"] = int64(500)
	again, _, _ := s.Get(context.Background(), seed.ID)
	assert.NotContains(t, again.Fields, "gold")
}

func TestGet_ReturnsClonesNotLivePointers(t *testing.T) {
	s := New(nil, false)
	e := entity.New("player")
	require.NoError(t, s.Set(context.Background(), e))

	first, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	first.Fields["gold"] = int64(42)

	second, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.NotContains(t, second.Fields, "gold", "two Get calls must never share the same underlying Fields map")
}

func TestSet_DefaultsVersionToOne(t *testing.T) {
	s := New(nil, false)
	e := &entity.Entity{ID: entity.NewID(), Type: "item", Fields: map[string]any{}}

	require.NoError(t, s.Set(context.Background(), e))
	assert.Equal(t, int64(1), e.Version)
}

func TestCompareAndSet_SucceedsOnMatchingVersion(t *testing.T) {
	s := New(nil, false)
	e := entity.New("raid")
	require.NoError(t, s.Set(context.Background(), e))

	observed := e.Version
	e.Version = observed + 1
	require.NoError(t, s.CompareAndSet(context.Background(), observed, e))

	got, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, observed+1, got.Version)
}

func TestCompareAndSet_FailsOnStaleVersion(t *testing.T) {
	s := New(nil, false)
	e := entity.New("raid")
	require.NoError(t, s.Set(context.Background(), e))

	// Simulate another writer winning the race first.
	winner := e.Clone()
	winner.Version = e.Version + 1
	require.NoError(t, s.CompareAndSet(context.Background(), e.Version, winner))

	// The loser retries against its now-stale observed version.
	loser := e.Clone()
	loser.Version = e.Version + 1
	err := s.CompareAndSet(context.Background(), e.Version, loser)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestCompareAndSet_ZeroExpectedVersionMeansMustNotExist(t *testing.T) {
	s := New(nil, false)
	e := entity.New("raid")

	require.NoError(t, s.CompareAndSet(context.Background(), 0, e))

	dup := entity.New("raid")
	dup.ID = e.ID
	err := s.CompareAndSet(context.Background(), 0, dup)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestCompareAndSet_ConcurrentRetryLoop_OnlyOneWinnerPerRound(t *testing.T) {
	s := New(nil, false)
	e := entity.New("raid")
	e.Fields["hp"] = int64(1000)
	require.NoError(t, s.Set(context.Background(), e))

	const attackers = 20
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < attackers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				current, _, err := s.Get(context.Background(), e.ID)
				require.NoError(t, err)
				observed := current.Version
				current.Version = observed + 1
				if err := s.CompareAndSet(context.Background(), observed, current); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, attackers, successes)
	final, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+attackers), final.Version)
}

func TestDelete_RemovesFromWorkingSetAndRepo(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo, true)
	e := entity.New("item")
	require.NoError(t, s.Set(context.Background(), e))

	require.NoError(t, s.Delete(context.Background(), e.ID))

	_, ok, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = repo.Exists(context.Background(), e.ID)
	assert.False(t, ok)
}

func TestByType_SortedAndFiltered(t *testing.T) {
	s := New(nil, false)
	p1 := entity.New("player")
	p2 := entity.New("player")
	it := entity.New("item")
	for _, e := range []*entity.Entity{p1, p2, it} {
		require.NoError(t, s.Set(context.Background(), e))
	}

	ids := s.ByType("player")
	require.Len(t, ids, 2)
	assert.Contains(t, ids, p1.ID)
	assert.Contains(t, ids, p2.ID)
	assert.IsIncreasing(t, ids, "ByType must return ids in sorted order")
}

func TestFlush_PersistsEveryCachedEntity(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo, false) // write-through disabled: Set never touches repo until Flush
	e := entity.New("item")
	require.NoError(t, s.Set(context.Background(), e))
	assert.Zero(t, repo.saveHits)

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, repo.saveHits)
}

func TestSnapshotAndReplaceFromTxn(t *testing.T) {
	s := New(nil, false)
	e := entity.New("item")
	require.NoError(t, s.Set(context.Background(), e))

	snap := s.SnapshotForTxn()
	snap[e.ID].Fields["gold"] = int64(1)

	live, _, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.NotContains(t, live.Fields, "gold", "snapshot must be independent of the live working set")

	s.ReplaceFromTxn(snap, []string{e.ID})
	live, _, err = s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), live.Fields["gold"])
}

func TestReplaceFromTxn_OnlyMergesTouchedIDsNotWholeSnapshot(t *testing.T) {
	s := New(nil, false)
	a := entity.New("item")
	b := entity.New("item")
	require.NoError(t, s.Set(context.Background(), a))
	require.NoError(t, s.Set(context.Background(), b))

	// Transaction 1 snapshots the store (sees both a and b), then only
	// ever writes to a.
	snap1 := s.SnapshotForTxn()
	snap1[a.ID].Fields["gold"] = int64(1)

	// Meanwhile, transaction 2 snapshots after txn1, writes to b, and
	// commits first.
	snap2 := s.SnapshotForTxn()
	snap2[b.ID].Fields["gold"] = int64(2)
	s.ReplaceFromTxn(snap2, []string{b.ID})

	// Transaction 1 now commits its own (older) snapshot, touching only a.
	s.ReplaceFromTxn(snap1, []string{a.ID})

	liveA, _, err := s.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liveA.Fields["gold"])

	liveB, _, err := s.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), liveB.Fields["gold"], "txn1's stale view of b must not clobber txn2's committed write to b")
}

func TestReplaceFromTxn_TouchedIDAbsentFromSnapshotIsDeleted(t *testing.T) {
	s := New(nil, false)
	e := entity.New("item")
	require.NoError(t, s.Set(context.Background(), e))

	snap := s.SnapshotForTxn()
	delete(snap, e.ID)

	s.ReplaceFromTxn(snap, []string{e.ID})

	_, ok, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a touched id missing from the commit snapshot must be deleted from the live working set")
}
