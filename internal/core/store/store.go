// Copyright (c) 2026 AetherCore contributors.

/*
Package store provides EntityStore, the in-memory working set every command
reads and writes through. It owns an optional read-through/write-through
[repository.Repository] underneath: a miss on get triggers a load, a miss on
get_bulk triggers one bulk load for every unresolved id in the batch, and
set delegates to the repository when write-through is enabled so the
version check happens exactly once, at the repository boundary.
*/
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/repository"
)

// EntityStore is the synchronous working set backing command execution.
//
// Once an id has been resolved (found present or confirmed absent) it stays
// resolved until an explicit Reload or Clear — a bulk load never re-fetches
// ids the store has already settled, whether or not they exist.
type EntityStore struct {
	mu           sync.RWMutex
	entities     map[string]*entity.Entity
	resolved     map[string]bool // true once get/get_bulk has settled this id, present or absent
	repo         repository.Repository
	writeThrough bool
}

// New constructs an EntityStore. repo may be nil for a pure in-memory store
// with no backing persistence; writeThrough controls whether Set/Delete
// propagate to repo immediately or only on an explicit Flush.
func New(repo repository.Repository, writeThrough bool) *EntityStore {
	return &EntityStore{
		entities:     make(map[string]*entity.Entity),
		resolved:     make(map[string]bool),
		repo:         repo,
		writeThrough: writeThrough,
	}
}

// Get returns a private clone of the current working record for id,
// loading it from the repository on first reference if one is attached
// and id has not been resolved before. The clone is safe for the caller to
// mutate in place; it is never the store's own cached pointer, so two
// concurrent Get calls can never observe each other's in-place edits.
// Callers that intend to write a mutated copy back must go through
// [EntityStore.Set] or [EntityStore.CompareAndSet].
func (s *EntityStore) Get(ctx context.Context, id string) (*entity.Entity, bool, error) {
	s.mu.RLock()
	if s.resolved[id] {
		e, ok := s.entities[id]
		s.mu.RUnlock()
		if !ok {
			return nil, false, nil
		}
		return e.Clone(), true, nil
	}
	s.mu.RUnlock()

	if s.repo == nil {
		s.mu.Lock()
		s.resolved[id] = true
		s.mu.Unlock()
		return nil, false, nil
	}

	e, err := s.repo.Load(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved[id] {
		// Another goroutine resolved it while we were loading; prefer
		// whatever is already cached to keep a single winner.
		cached, ok := s.entities[id]
		if !ok {
			return nil, false, nil
		}
		return cached.Clone(), true, nil
	}
	s.resolved[id] = true
	switch {
	case err == nil:
		s.entities[id] = e
		return e.Clone(), true, nil
	case err == repository.ErrNotFound:
		return nil, false, nil
	default:
		delete(s.resolved, id) // allow retry on transient failure
		return nil, false, fmt.Errorf("store: failed to load %q: %w", id, err)
	}
}

// GetBulk partitions ids into already-resolved vs. unresolved, issues a
// single repository round-trip for the unresolved subset, and returns a
// mapping covering every id that exists. Every returned entity is a
// private clone, same as [EntityStore.Get].
func (s *EntityStore) GetBulk(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	result := make(map[string]*entity.Entity, len(ids))

	s.mu.RLock()
	var unresolved []string
	for _, id := range ids {
		if s.resolved[id] {
			if e, ok := s.entities[id]; ok {
				result[id] = e.Clone()
			}
		} else {
			unresolved = append(unresolved, id)
		}
	}
	s.mu.RUnlock()

	if len(unresolved) == 0 || s.repo == nil {
		s.mu.Lock()
		for _, id := range unresolved {
			s.resolved[id] = true
		}
		s.mu.Unlock()
		return result, nil
	}

	loaded, err := s.repo.LoadBulk(ctx, unresolved)
	if err != nil {
		return nil, fmt.Errorf("store: failed to bulk load: %w", err)
	}

	s.mu.Lock()
	for _, id := range unresolved {
		s.resolved[id] = true
		if e, ok := loaded[id]; ok {
			s.entities[id] = e
			result[id] = e.Clone()
		}
	}
	s.mu.Unlock()

	return result, nil
}

// Set upserts e into the working set. If e.Version is zero it defaults to
// 1 (first write). When write-through is enabled, the upsert is delegated
// to the repository first — its version check is the sole authority on
// whether this write is accepted — and e is left mutated with whatever
// version the repository assigned.
func (s *EntityStore) Set(ctx context.Context, e *entity.Entity) error {
	if e.Version == 0 {
		e.Version = 1
	}

	if s.writeThrough && s.repo != nil {
		if err := s.repo.Save(ctx, e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
	s.resolved[e.ID] = true
	return nil
}

// ErrVersionConflict is returned by [EntityStore.CompareAndSet] when the
// entity currently cached under e.ID does not have expectedVersion, or
// does not exist yet while expectedVersion is nonzero.
var ErrVersionConflict = repository.ErrVersionConflict

// CompareAndSet upserts e only if the working set's current copy of e.ID
// has version expectedVersion (expectedVersion 0 means "must not already
// exist"). On success e.Version is left at e.Version; callers are
// responsible for having already bumped it past expectedVersion before
// calling this. This is the conflict-detection boundary callers that
// bypass transactions — like a tight optimistic-retry loop over a single
// hot entity — build their retries around; a plain [EntityStore.Set] has
// no such check and always wins.
func (s *EntityStore) CompareAndSet(ctx context.Context, expectedVersion int64, e *entity.Entity) error {
	s.mu.Lock()
	current, ok := s.entities[e.ID]
	switch {
	case expectedVersion == 0 && ok:
		s.mu.Unlock()
		return ErrVersionConflict
	case expectedVersion != 0 && (!ok || current.Version != expectedVersion):
		s.mu.Unlock()
		return ErrVersionConflict
	}
	s.mu.Unlock()

	if s.writeThrough && s.repo != nil {
		// The repository runs its own version check against the version it
		// stores and bumps it on update, so it gets a copy that still carries
		// expectedVersion rather than the caller's already-bumped e.Version.
		persisted := e.Clone()
		if expectedVersion != 0 {
			persisted.Version = expectedVersion
		}
		if err := s.repo.Save(ctx, persisted); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the same lock we write under: another goroutine may
	// have won the race between our optimistic read above and this write.
	current, ok = s.entities[e.ID]
	switch {
	case expectedVersion == 0 && ok:
		return ErrVersionConflict
	case expectedVersion != 0 && (!ok || current.Version != expectedVersion):
		return ErrVersionConflict
	}
	s.entities[e.ID] = e
	s.resolved[e.ID] = true
	return nil
}

// Delete removes id from the working set and, if write-through is on,
// from the repository.
func (s *EntityStore) Delete(ctx context.Context, id string) error {
	if s.writeThrough && s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
	s.resolved[id] = true
	return nil
}

// Exists reports whether id is currently present in the working set.
func (s *EntityStore) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.Get(ctx, id)
	return ok, err
}

// Count returns the number of entities currently cached in the working set.
func (s *EntityStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// ByType returns the ids of every cached entity of the given type.
func (s *EntityStore) ByType(entityType string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.entities {
		if e.Type == entityType {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clear empties the working set and its resolution cache, without touching
// the repository.
func (s *EntityStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[string]*entity.Entity)
	s.resolved = make(map[string]bool)
}

// Flush writes every currently-cached entity to the repository. Intended
// for batch mode, where write-through is left disabled during a run of
// commands and the whole working set is persisted once at the end.
func (s *EntityStore) Flush(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.RLock()
	snapshot := make([]*entity.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()

	for _, e := range snapshot {
		if err := s.repo.Save(ctx, e); err != nil {
			return fmt.Errorf("store: failed to flush %q: %w", e.ID, err)
		}
	}
	return nil
}

// Reload drops id from the cache and re-reads it from the repository on
// the next Get.
func (s *EntityStore) Reload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
	delete(s.resolved, id)
}

// PersistIDs writes the current state of each id in ids to the repository:
// a Save if the id is present in the working set, a Delete if it is
// absent. Used by a transaction commit to persist only the entities it
// actually touched, rather than the whole working set.
func (s *EntityStore) PersistIDs(ctx context.Context, ids []string) error {
	if s.repo == nil {
		return nil
	}
	for _, id := range ids {
		s.mu.RLock()
		e, ok := s.entities[id]
		s.mu.RUnlock()

		if ok {
			if err := s.repo.Save(ctx, e); err != nil {
				return fmt.Errorf("store: failed to persist %q: %w", id, err)
			}
		} else if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("store: failed to persist deletion of %q: %w", id, err)
		}
	}
	return nil
}

// SnapshotForTxn returns a copy of the full working set, one
// [entity.Entity.Clone] per entity (nested values inside Fields are shared
// with the live copy), used by a
// transaction to take its private snapshot without holding the store's
// lock for the transaction's lifetime.
func (s *EntityStore) SnapshotForTxn() map[string]*entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*entity.Entity, len(s.entities))
	for id, e := range s.entities {
		out[id] = e.Clone()
	}
	return out
}

// ReplaceFromTxn applies a transaction's commit into the working set by
// merging only the ids the transaction actually touched: for each id in
// touchedIDs, snapshot[id] (if present) overwrites the live copy, and its
// absence from snapshot is treated as a delete. Every other live entity is
// left untouched. resolved is extended (never shrunk) to cover every
// touched id, so subsequent Gets on committed ids are served from cache.
//
// This must never swap the whole entities map wholesale: a transaction's
// snapshot was taken at Begin and may already be stale for ids it never
// read or wrote, so replacing the full map would silently discard any
// commit another concurrent transaction made to a disjoint id in the
// interim — the exact lost-update [repository.ErrVersionConflict] guards
// against at the repository boundary, reintroduced at the store layer.
func (s *EntityStore) ReplaceFromTxn(snapshot map[string]*entity.Entity, touchedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range touchedIDs {
		if e, ok := snapshot[id]; ok {
			s.entities[id] = e
		} else {
			delete(s.entities, id)
		}
		s.resolved[id] = true
	}
}
