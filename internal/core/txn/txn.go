// Copyright (c) 2026 AetherCore contributors.

/*
Package txn implements all-or-nothing semantics for one command's mutations
over an [store.EntityStore]. A Transaction takes a full snapshot of the
store's working set on Begin (one [entity.Entity.Clone] per entity, so
nested values inside Fields are shared with the store), exposes that snapshot as an isolated
working store for the command to read and write, and on Commit merges back
only the ids it actually touched — never the whole snapshot — so a
concurrently-committing transaction over disjoint ids is never clobbered.
Rollback simply discards the snapshot.

The snapshot is a plain copy, not a diff log — the simplest model that is
still correct. For very large working sets a per-entity copy-on-write
snapshot would cut the copy cost, but a full copy keeps the isolation
boundary trivial to reason about and is the model this package ships.
*/
package txn

import (
	"context"
	"errors"
	"sync"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/store"
)

// State is a Transaction's lifecycle stage. Transitions are irreversible:
// once Committed or RolledBack, a Transaction stays there.
type State string

const (
	StateActive     State = "active"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// ErrAlreadyFinished is returned by Commit/Rollback when called a second
// time on a Transaction that already left the active state.
var ErrAlreadyFinished = errors.New("txn: transaction already committed or rolled back")

// Transaction owns one command's private view of the entity store.
type Transaction struct {
	mu    sync.Mutex
	state State

	backing      *store.EntityStore
	snapshot     map[string]*entity.Entity
	touched      map[string]bool
	writeThrough bool
}

// Begin copies the full entity map of s (one Clone per entity) into a
// private snapshot and returns a Transaction exposing it as a [WorkingStore].
func Begin(s *store.EntityStore, writeThrough bool) *Transaction {
	return &Transaction{
		state:        StateActive,
		backing:      s,
		snapshot:     s.SnapshotForTxn(),
		touched:      make(map[string]bool),
		writeThrough: writeThrough,
	}
}

// WorkingStore returns the isolated view a command's Execute reads and
// writes through. It is only valid while the Transaction is active.
func (t *Transaction) WorkingStore() *WorkingStore {
	return &WorkingStore{txn: t}
}

// Commit merges this transaction's touched ids back into the backing
// store — leaving every id the transaction never wrote untouched — then
// (if write-through was requested) persists those same touched ids to the
// repository backing it. Calling Commit a second time returns
// [ErrAlreadyFinished].
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrAlreadyFinished
	}

	touchedIDs := make([]string, 0, len(t.touched))
	for id := range t.touched {
		touchedIDs = append(touchedIDs, id)
	}

	t.backing.ReplaceFromTxn(t.snapshot, touchedIDs)
	t.state = StateCommitted

	if t.writeThrough {
		return t.backing.PersistIDs(ctx, touchedIDs)
	}
	return nil
}

// Rollback discards the snapshot, leaving the backing store unchanged.
// Calling Rollback a second time returns [ErrAlreadyFinished].
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrAlreadyFinished
	}
	t.state = StateRolledBack
	return nil
}

// State reports the transaction's current lifecycle stage.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// WorkingStore is the view a [command.Command] reads and writes through
// during execution. All reads and writes target the transaction's private
// snapshot, never the backing store directly.
type WorkingStore struct {
	txn *Transaction
}

// Get returns the working copy of id, if present in this transaction's
// snapshot.
func (w *WorkingStore) Get(id string) (*entity.Entity, bool) {
	w.txn.mu.Lock()
	defer w.txn.mu.Unlock()
	e, ok := w.txn.snapshot[id]
	return e, ok
}

// Set upserts e into the transaction's snapshot. The entity only becomes
// visible to other callers once the transaction commits.
func (w *WorkingStore) Set(e *entity.Entity) {
	w.txn.mu.Lock()
	defer w.txn.mu.Unlock()
	w.txn.snapshot[e.ID] = e
	w.txn.touched[e.ID] = true
}

// Delete removes id from the transaction's snapshot.
func (w *WorkingStore) Delete(id string) {
	w.txn.mu.Lock()
	defer w.txn.mu.Unlock()
	delete(w.txn.snapshot, id)
	w.txn.touched[id] = true
}

// Exists reports whether id is present in the transaction's snapshot.
func (w *WorkingStore) Exists(id string) bool {
	_, ok := w.Get(id)
	return ok
}
