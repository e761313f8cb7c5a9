// Copyright (c) 2026 AetherCore contributors.

/*
Postgres-backed [Repository] alternative to the bbolt reference store,
using an id-primary table with columns (id, type, payload jsonb, version,
updated_at) plus a separate referrals table for the referral graph.
*/
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/aethercore/internal/core/entity"
)

// postgresRepository implements [Repository] over a pgxpool.Pool.
type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL-backed [Repository]. The
// schema (entities + referrals tables) must already exist — run
// internal/platform/migration before first use.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Save upserts e, enforcing optimistic concurrency with a version-guarded UPDATE.
func (r *postgresRepository) Save(ctx context.Context, e *entity.Entity) error {
	payload, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("repository: failed to marshal fields for %q: %w", e.ID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storedVersion int64
	err = tx.QueryRow(ctx, `SELECT version FROM entities WHERE id = $1`, e.ID).Scan(&storedVersion)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if e.Version == 0 {
			e.Version = 1
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO entities (id, type, payload, version, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, e.ID, e.Type, payload, e.Version)
		if err != nil {
			return fmt.Errorf("repository: failed to insert entity %q: %w", e.ID, err)
		}

	case err != nil:
		return fmt.Errorf("repository: failed to check existing version for %q: %w", e.ID, err)

	default:
		if storedVersion != e.Version {
			return ErrVersionConflict
		}
		e.Version++
		tag, err := tx.Exec(ctx, `
			UPDATE entities SET payload = $1, version = $2, updated_at = NOW()
			WHERE id = $3 AND version = $4
		`, payload, e.Version, e.ID, storedVersion)
		if err != nil {
			return fmt.Errorf("repository: failed to update entity %q: %w", e.ID, err)
		}
		if tag.RowsAffected() == 0 {
			// Someone else committed between our SELECT and UPDATE.
			return ErrVersionConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit save for %q: %w", e.ID, err)
	}
	return nil
}

func (r *postgresRepository) Load(ctx context.Context, id string) (*entity.Entity, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, type, payload, version FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

func (r *postgresRepository) LoadBulk(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	result := make(map[string]*entity.Entity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, type, payload, version FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to bulk load: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, entityType string
		var version int64
		var rawPayload []byte
		if err := rows.Scan(&id, &entityType, &rawPayload, &version); err != nil {
			return nil, fmt.Errorf("repository: failed to scan bulk row: %w", err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(rawPayload, &fields); err != nil {
			return nil, fmt.Errorf("repository: failed to unmarshal payload for %q: %w", id, err)
		}
		result[id] = &entity.Entity{ID: id, Type: entityType, Version: version, Fields: fields}
	}
	return result, rows.Err()
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete %q: %w", id, err)
	}
	return nil // deleting an absent id is a no-op, same as a 0-row delete.
}

func (r *postgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entities WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) ListByType(ctx context.Context, entityType string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM entities WHERE type = $1 ORDER BY id`, entityType)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list by type %q: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	return count, err
}

func (r *postgresRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE entities, referrals`)
	return err
}

// # Referral Graph

func (r *postgresRepository) AddReferral(ctx context.Context, referrer, referred string) (bool, error) {
	var existingReferrer string
	err := r.pool.QueryRow(ctx, `SELECT referrer FROM referrals WHERE referred = $1`, referred).Scan(&existingReferrer)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// fallthrough to cycle check below
	case err != nil:
		return false, fmt.Errorf("repository: failed to check existing referrer: %w", err)
	default:
		if existingReferrer == referrer {
			return false, nil
		}
		return false, ErrCycle
	}

	isCycle, err := r.isDescendant(ctx, referred, referrer)
	if err != nil {
		return false, err
	}
	if isCycle {
		return false, ErrCycle
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO referrals (referred, referrer) VALUES ($1, $2)`, referred, referrer)
	if err != nil {
		return false, fmt.Errorf("repository: failed to insert referral: %w", err)
	}
	return true, nil
}

func (r *postgresRepository) isDescendant(ctx context.Context, root, candidate string) (bool, error) {
	frontier := []string{root}
	seen := map[string]bool{root: true}

	for len(frontier) > 0 {
		rows, err := r.pool.Query(ctx, `SELECT referred, referrer FROM referrals WHERE referrer = ANY($1)`, frontier)
		if err != nil {
			return false, fmt.Errorf("repository: failed to scan referral level: %w", err)
		}
		var next []string
		for rows.Next() {
			var referred, referrer string
			if err := rows.Scan(&referred, &referrer); err != nil {
				rows.Close()
				return false, err
			}
			if referred == candidate {
				rows.Close()
				return true, nil
			}
			if !seen[referred] {
				seen[referred] = true
				next = append(next, referred)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return false, err
		}
		frontier = next
	}
	return false, nil
}

func (r *postgresRepository) GetReferrer(ctx context.Context, id string) (string, error) {
	var referrer string
	err := r.pool.QueryRow(ctx, `SELECT referrer FROM referrals WHERE referred = $1`, id).Scan(&referrer)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return referrer, err
}

func (r *postgresRepository) GetDirectReferrals(ctx context.Context, id string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT referred FROM referrals WHERE referrer = $1 ORDER BY referred`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get direct referrals: %w", err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		children = append(children, id)
	}
	return children, rows.Err()
}

// GetReferralTree batches one query per level instead of one round-trip per
// node, keeping the cost of a deep tree linear in its depth rather than its
// node count.
func (r *postgresRepository) GetReferralTree(ctx context.Context, root string, depth int, includeStats bool) (*ReferralNode, error) {
	nodes := map[string]*ReferralNode{root: {ID: root}}
	frontier := []string{root}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		rows, err := r.pool.Query(ctx, `SELECT referrer, referred FROM referrals WHERE referrer = ANY($1) ORDER BY referred`, frontier)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan referral tree level %d: %w", level, err)
		}

		byParent := map[string][]string{}
		for rows.Next() {
			var parent, child string
			if err := rows.Scan(&parent, &child); err != nil {
				rows.Close()
				return nil, err
			}
			byParent[parent] = append(byParent[parent], child)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		var next []string
		for _, parentID := range frontier {
			parentNode := nodes[parentID]
			children := byParent[parentID]
			if includeStats {
				parentNode.DirectSize = len(children)
			}
			for _, childID := range children {
				childNode := &ReferralNode{ID: childID}
				nodes[childID] = childNode
				parentNode.Children = append(parentNode.Children, childNode)
				next = append(next, childID)
			}
		}
		frontier = next
	}

	return nodes[root], nil
}

func scanEntity(row pgx.Row) (*entity.Entity, error) {
	var id, entityType string
	var version int64
	var rawPayload []byte
	err := row.Scan(&id, &entityType, &rawPayload, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to load entity: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(rawPayload, &fields); err != nil {
		return nil, fmt.Errorf("repository: failed to unmarshal payload for %q: %w", id, err)
	}
	return &entity.Entity{ID: id, Type: entityType, Version: version, Fields: fields}, nil
}
