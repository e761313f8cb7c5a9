// Copyright (c) 2026 AetherCore contributors.

/*
Package executor runs a [command.Command] with locking, transaction
isolation, and error translation: acquire the command's declared
dependencies, open a transaction snapshot, run the command's business
logic against the isolated working store, then commit or roll back
depending on the outcome, and release the locks on every exit path.
*/
package executor

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/aethercore/internal/core/command"
	"github.com/taibuivan/aethercore/internal/core/lockmgr"
	"github.com/taibuivan/aethercore/internal/core/repository"
	"github.com/taibuivan/aethercore/internal/core/store"
	"github.com/taibuivan/aethercore/internal/core/txn"
)

// Executor runs commands against a shared store, guarded by a lock manager.
type Executor struct {
	store        *store.EntityStore
	locks        *lockmgr.LockManager
	writeThrough bool
}

// New constructs an Executor over s, guarded by locks. writeThrough is
// passed through to every transaction this executor opens.
func New(s *store.EntityStore, locks *lockmgr.LockManager, writeThrough bool) *Executor {
	return &Executor{store: s, locks: locks, writeThrough: writeThrough}
}

// Execute runs cmd to completion: acquire locks for cmd.Dependencies(),
// begin a transaction, run cmd.Execute against the isolated working store,
// commit on success or roll back on failure, then release the locks.
func (x *Executor) Execute(ctx context.Context, cmd command.Command) command.Result {
	ids := cmd.Dependencies()

	release, err := x.locks.Scoped(ctx, ids)
	if err != nil {
		return command.Result{ErrorKind: command.ErrorKindLockTimeout, Err: err}
	}
	defer release()

	transaction := txn.Begin(x.store, x.writeThrough)

	data, err := cmd.Execute(ctx, transaction.WorkingStore())
	if err != nil {
		_ = transaction.Rollback()
		return classifyExecuteError(err)
	}

	if err := transaction.Commit(ctx); err != nil {
		_ = transaction.Rollback()
		if errors.Is(err, repository.ErrVersionConflict) {
			return command.Result{ErrorKind: command.ErrorKindConflict, Err: err}
		}
		return command.Result{ErrorKind: command.ErrorKindInternal, Err: err}
	}

	return command.Result{Data: data, ErrorKind: command.ErrorKindNone}
}

// ExecuteBatch runs every command in cmds concurrently via an errgroup,
// returning one [command.Result] per command in input order. Commands
// touching disjoint id sets overlap freely; commands touching the same ids
// serialize through the lock manager. A panic-free scheduling error for
// any single command surfaces only in that command's slot and never
// aborts its siblings.
func (x *Executor) ExecuteBatch(ctx context.Context, cmds []command.Command) []command.Result {
	results := make([]command.Result, len(cmds))

	g, gctx := errgroup.WithContext(ctx)
	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			results[i] = x.executeBatchSlot(gctx, cmd)
			return nil // never abort siblings; failures live in results[i]
		})
	}
	_ = g.Wait() // errors are captured per-slot above, not propagated

	return results
}

// executeBatchSlot isolates a single batch member's execution, converting
// even an unexpected panic into an Internal result for that slot alone.
func (x *Executor) executeBatchSlot(ctx context.Context, cmd command.Command) (result command.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = command.Result{
				ErrorKind: command.ErrorKindInternal,
				Err:       errors.New("executor: command panicked during batch execution"),
			}
		}
	}()
	return x.Execute(ctx, cmd)
}

func classifyExecuteError(err error) command.Result {
	var validationErr *command.ValidationError
	var notFoundErr *command.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		return command.Result{ErrorKind: command.ErrorKindValidation, Err: err}
	case errors.As(err, &notFoundErr):
		return command.Result{ErrorKind: command.ErrorKindNotFound, Err: err}
	case errors.Is(err, repository.ErrVersionConflict):
		return command.Result{ErrorKind: command.ErrorKindConflict, Err: err}
	default:
		return command.Result{ErrorKind: command.ErrorKindInternal, Err: err}
	}
}
