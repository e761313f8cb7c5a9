// Copyright (c) 2026 AetherCore contributors.

/*
Package command defines the unit of work the executor runs: a Command
declares the entity ids it needs exclusive access to, then executes its
business logic against an isolated [txn.WorkingStore]. CommandResult carries
either the command's result data or a typed failure, so callers never need
to type-switch on error values to decide how to react.
*/
package command

import (
	"context"

	"github.com/taibuivan/aethercore/internal/core/txn"
)

// Command is the contract every unit of executable business logic
// satisfies.
type Command interface {
	// Dependencies returns the complete set of entity ids this command may
	// read or write. The executor locks exactly this set before Execute
	// runs; an id touched by Execute but missing here is a bug in the
	// command, not something the executor can detect.
	Dependencies() []string

	// Execute runs the command's business logic against ws, the isolated
	// working store for this invocation. It returns the result data on
	// success, or an error — a [*ValidationError], a [*NotFoundError], or any other
	// error, which the executor classifies into an ErrorKind.
	Execute(ctx context.Context, ws *txn.WorkingStore) (any, error)
}

// ErrorKind classifies why a command failed, independent of the specific
// message, so callers can decide policy (e.g. "retry on conflict") without
// string-matching.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindLockTimeout ErrorKind = "lock_timeout"
	ErrorKindInternal    ErrorKind = "internal"
)

// Result is the outcome of running one command through the executor.
type Result struct {
	// Data is the command's return value on success; nil on failure.
	Data any
	// ErrorKind is [ErrorKindNone] on success, otherwise classifies the failure.
	ErrorKind ErrorKind
	// Err is the underlying error on failure; nil on success.
	Err error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.ErrorKind == ErrorKindNone
}

// ValidationError is returned by a command's Execute to signal a
// precondition or input validation failure; the executor rolls back and
// classifies it as [ErrorKindValidation].
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError constructs a [ValidationError].
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NotFoundError is returned by a command's Execute to signal that a
// dependency entity does not exist; the executor rolls back and
// classifies it as [ErrorKindNotFound].
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return "entity not found: " + e.ID }

// NewNotFoundError constructs a [NotFoundError].
func NewNotFoundError(id string) error {
	return &NotFoundError{ID: id}
}
