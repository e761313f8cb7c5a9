// Copyright (c) 2026 AetherCore contributors.

/*
Package saga composes a linear sequence of steps with compensating actions
into one logically-atomic multi-entity operation. Where [txn.Transaction]
gives physical, snapshot-level rollback for a single command, a Saga gives
logical rollback at the step level: each completed step's compensation runs,
in reverse order, when a later step fails.

A Saga is typically run as the body of a [command.Command]'s Execute, so it
still executes inside a normal executor transaction — the saga's own
compensation model composes with, rather than replaces, that physical
snapshot rollback.
*/
package saga

import (
	"context"
	"fmt"

	"github.com/taibuivan/aethercore/internal/core/txn"
)

// Status is the saga's overall outcome after a run.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusCompensated Status = "compensated"
	StatusCritical    Status = "critical"
)

// Step is one unit of a saga: a named forward action with an optional
// compensating action run if a later step fails.
type Step struct {
	Name string

	// Action performs the step's forward work against ws, returning a
	// result value to record under Name, or an error to trigger
	// compensation of every step executed so far.
	Action func(ctx context.Context, ws *txn.WorkingStore) (any, error)

	// Compensation, if non-nil, undoes Action's effects. It runs only if
	// a later step in the same saga fails.
	Compensation func(ctx context.Context, ws *txn.WorkingStore) error
}

// Saga is an ordered list of steps executed as one logical unit.
type Saga struct {
	Name  string
	Steps []Step
}

// New constructs a Saga with the given name and steps, run in order.
func New(name string, steps ...Step) *Saga {
	return &Saga{Name: name, Steps: steps}
}

// Result is the outcome of running a Saga.
type Result struct {
	Status Status
	// Results maps each executed step's name to its returned value.
	Results map[string]any
	// FailedStep names the step that triggered compensation, if any.
	FailedStep string
	// Err is the error that triggered compensation, or the compensation
	// failure that escalated the saga to StatusCritical.
	Err error
}

// Run executes every step in order against ws. On a step failure it
// compensates every already-executed step in reverse order. If a
// compensation itself fails, remaining compensations still run, but the
// saga's final status is [StatusCritical] — the caller must surface this
// as unrecovered state requiring operator attention, since not everything
// could be undone.
func (s *Saga) Run(ctx context.Context, ws *txn.WorkingStore) Result {
	results := make(map[string]any, len(s.Steps))
	var executed []Step

	for _, step := range s.Steps {
		data, err := step.Action(ctx, ws)
		if err != nil {
			return s.compensate(ctx, ws, executed, step.Name, err, results)
		}
		results[step.Name] = data
		executed = append(executed, step)
	}

	return Result{Status: StatusCompleted, Results: results}
}

func (s *Saga) compensate(ctx context.Context, ws *txn.WorkingStore, executed []Step, failedStep string, failure error, results map[string]any) Result {
	critical := false

	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensation == nil {
			continue
		}
		if err := step.Compensation(ctx, ws); err != nil {
			critical = true
			failure = fmt.Errorf("%w (compensation for step %q also failed: %v)", failure, step.Name, err)
		}
	}

	status := StatusCompensated
	if critical {
		status = StatusCritical
	}

	return Result{
		Status:     status,
		Results:    results,
		FailedStep: failedStep,
		Err:        failure,
	}
}
