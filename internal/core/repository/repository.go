// Copyright (c) 2026 AetherCore contributors.

/*
Package repository defines the durable entity storage abstraction and ships
three implementations: a required single-file bbolt reference store, an
optional PostgreSQL store, and an optional Redis read-through caching
decorator that can wrap either.

Every implementation MUST enforce optimistic concurrency exactly: a write
succeeds only if the caller's Version matches the currently persisted
Version; otherwise the write fails with [ErrVersionConflict] and the stored
record is unchanged. Every guarantee the engine makes above this layer —
lost-update prevention, transaction atomicity, safe concurrent command
execution — rests on this check holding without exception.
*/
package repository

import (
	"context"
	"errors"

	"github.com/taibuivan/aethercore/internal/core/entity"
)

// ErrVersionConflict is returned by Save when the caller's Version does not
// match the version currently persisted for that id.
var ErrVersionConflict = errors.New("repository: version conflict")

// ErrNotFound is returned by Load/Delete-adjacent lookups for an absent id.
var ErrNotFound = errors.New("repository: entity not found")

// ErrCycle is returned by AddReferral when linking referred under referrer
// would create a cycle, or referred already has a different referrer.
var ErrCycle = errors.New("repository: referral link would create a cycle")

// Repository is the durable entity storage contract every backend satisfies.
//
// All operations are synchronous from the core's perspective; a goroutine
// may still be in flight underneath (e.g. a network round-trip), but the
// call blocks until it completes or ctx is done.
type Repository interface {

	// Save upserts id. On update, the caller's e.Version must equal the
	// stored version; on mismatch it returns [ErrVersionConflict] and
	// leaves the store unchanged. On success, the stored version becomes
	// e.Version+1 on update (or e.Version on first insert, default 1), and e
	// is mutated in place so the caller's copy observes the new version.
	Save(ctx context.Context, e *entity.Entity) error

	// Load returns the entity for id with its current version attached, or
	// [ErrNotFound] if absent.
	Load(ctx context.Context, id string) (*entity.Entity, error)

	// LoadBulk returns, in a single round-trip, the subset of ids that
	// exist. Absent ids are simply missing from the result map.
	LoadBulk(ctx context.Context, ids []string) (map[string]*entity.Entity, error)

	// Delete removes id. Deletion is idempotent: deleting an absent id is a
	// no-op and returns nil.
	Delete(ctx context.Context, id string) error

	// Exists reports whether id is currently persisted.
	Exists(ctx context.Context, id string) (bool, error)

	// ListByType returns every id currently persisted under entityType.
	ListByType(ctx context.Context, entityType string) ([]string, error)

	// Count returns the total number of persisted entities.
	Count(ctx context.Context) (int, error)

	// Clear removes every persisted entity. Intended for tests and
	// maintenance tooling, not for gameplay commands.
	Clear(ctx context.Context) error

	// # Referral Graph Helpers

	// AddReferral links referred under referrer. It returns (true, nil) if
	// newly linked, (false, nil) if referred already has this exact
	// referrer, and [ErrCycle] if referred already has a different
	// referrer or linking would create a cycle in the referral graph.
	AddReferral(ctx context.Context, referrer, referred string) (bool, error)

	// GetReferrer returns the id that referred id, or "" if id has none.
	GetReferrer(ctx context.Context, id string) (string, error)

	// GetDirectReferrals returns the ids directly referred by id.
	GetDirectReferrals(ctx context.Context, id string) ([]string, error)

	// GetReferralTree returns the referral tree rooted at root, expanded up
	// to depth levels below it. When includeStats is true, each expanded
	// node carries DirectSize, its number of direct referrals. The postgres
	// implementation walks level by level with one query per level; the
	// bolt implementation builds the tree depth-first with one bucket scan
	// per node and also fills DirectSize on the nodes at the depth limit.
	GetReferralTree(ctx context.Context, root string, depth int, includeStats bool) (*ReferralNode, error)
}

// ReferralNode is one node of a referral-tree traversal result.
type ReferralNode struct {
	ID         string          `json:"id"`
	Children   []*ReferralNode `json:"children,omitempty"`
	DirectSize int             `json:"direct_size,omitempty"`
}
