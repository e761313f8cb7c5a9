// Copyright (c) 2026 AetherCore contributors.

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/taibuivan/aethercore/internal/core/entity"
)

// # bbolt Reference Store

// Bucket names inside the single bbolt file.
var (
	bucketEntities  = []byte("entities")
	bucketTypeIndex = []byte("type_index")
	bucketReferrals = []byte("referrals") // referred -> referrer
)

// boltRepository is the required local single-file table-oriented store
// reference implementation. One bucket holds the entities keyed by id
// (JSON-encoded), a second maintains a type -> ids index, a third holds the
// referral edges.
type boltRepository struct {
	db *bbolt.DB
}

// NewBoltRepository opens (creating if absent) a single-file bbolt database
// at path and returns a [Repository] backed by it.
func NewBoltRepository(path string) (Repository, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to open bbolt file %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntities, bucketTypeIndex, bucketReferrals} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: failed to initialise buckets: %w", err)
	}

	return &boltRepository{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (r *boltRepository) Close() error {
	return r.db.Close()
}

// # Entity Storage

func (r *boltRepository) Save(ctx context.Context, e *entity.Entity) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEntities)

		existing, err := loadFromBucket(bucket, e.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if existing == nil {
			if e.Version == 0 {
				e.Version = 1
			}
		} else {
			if existing.Version != e.Version {
				return ErrVersionConflict
			}
			e.Version++
		}

		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("repository: failed to marshal entity %q: %w", e.ID, err)
		}
		if err := bucket.Put([]byte(e.ID), payload); err != nil {
			return err
		}

		return indexByType(tx, e.Type, e.ID)
	})
}

func (r *boltRepository) Load(ctx context.Context, id string) (*entity.Entity, error) {
	var result *entity.Entity
	err := r.db.View(func(tx *bbolt.Tx) error {
		e, err := loadFromBucket(tx.Bucket(bucketEntities), id)
		if err != nil {
			return err
		}
		result = e
		return nil
	})
	return result, err
}

func (r *boltRepository) LoadBulk(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	result := make(map[string]*entity.Entity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEntities)
		for _, id := range ids {
			e, err := loadFromBucket(bucket, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			result[id] = e
		}
		return nil
	})
	return result, err
}

func (r *boltRepository) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEntities)

		existing, err := loadFromBucket(bucket, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil // deleting an absent id is a no-op.
			}
			return err
		}

		if err := bucket.Delete([]byte(id)); err != nil {
			return err
		}
		return unindexByType(tx, existing.Type, id)
	})
}

func (r *boltRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketEntities).Get([]byte(id)) != nil
		return nil
	})
	return found, err
}

func (r *boltRepository) ListByType(ctx context.Context, entityType string) ([]string, error) {
	var ids []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		typeBucket := tx.Bucket(bucketTypeIndex).Bucket([]byte(entityType))
		if typeBucket == nil {
			return nil
		}
		return typeBucket.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	sort.Strings(ids)
	return ids, err
}

func (r *boltRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketEntities).Stats().KeyN
		return nil
	})
	return count, err
}

func (r *boltRepository) Clear(ctx context.Context) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntities, bucketTypeIndex, bucketReferrals} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// # Referral Graph

func (r *boltRepository) AddReferral(ctx context.Context, referrer, referred string) (bool, error) {
	var linked bool
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReferrals)

		if existing := bucket.Get([]byte(referred)); existing != nil {
			if string(existing) == referrer {
				linked = false
				return nil // already linked to this exact referrer.
			}
			return ErrCycle
		}

		// Cycle check: referrer must not already be a descendant of referred.
		isCycle, err := isDescendant(bucket, referred, referrer)
		if err != nil {
			return err
		}
		if isCycle {
			return ErrCycle
		}

		if err := bucket.Put([]byte(referred), []byte(referrer)); err != nil {
			return err
		}
		linked = true
		return nil
	})
	return linked, err
}

// isDescendant reports whether candidate appears anywhere in root's referral
// subtree (i.e. is reachable by following referrer -> referred edges
// forward from root). Used to reject links that would close a cycle.
func isDescendant(bucket *bbolt.Bucket, root, candidate string) (bool, error) {
	frontier := []string{root}
	seen := map[string]bool{root: true}

	for len(frontier) > 0 {
		var next []string
		for _, node := range frontier {
			children, err := directReferrals(bucket, node)
			if err != nil {
				return false, err
			}
			for _, child := range children {
				if child == candidate {
					return true, nil
				}
				if !seen[child] {
					seen[child] = true
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

func (r *boltRepository) GetReferrer(ctx context.Context, id string) (string, error) {
	var referrer string
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketReferrals).Get([]byte(id))
		referrer = string(v)
		return nil
	})
	return referrer, err
}

func (r *boltRepository) GetDirectReferrals(ctx context.Context, id string) ([]string, error) {
	var children []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		children, err = directReferrals(tx.Bucket(bucketReferrals), id)
		return err
	})
	return children, err
}

// directReferrals scans the full referrals bucket for entries whose value
// is referrer; this is O(n) in the number of referral edges per call, which
// is acceptable for the bucket's expected size and keeps the bbolt schema a
// single simple key->value map (referred -> referrer) with no secondary index.
func directReferrals(bucket *bbolt.Bucket, referrer string) ([]string, error) {
	var children []string
	err := bucket.ForEach(func(k, v []byte) error {
		if string(v) == referrer {
			children = append(children, string(k))
		}
		return nil
	})
	sort.Strings(children)
	return children, err
}

func (r *boltRepository) GetReferralTree(ctx context.Context, root string, depth int, includeStats bool) (*ReferralNode, error) {
	var result *ReferralNode
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReferrals)

		// Recursive depth-first build; each node does its own bucket scan.
		// Acceptable here since the whole traversal runs inside one open
		// bbolt transaction against a single in-memory-mapped file.
		var build func(id string, remaining int) (*ReferralNode, error)
		build = func(id string, remaining int) (*ReferralNode, error) {
			children, err := directReferrals(bucket, id)
			if err != nil {
				return nil, err
			}
			node := &ReferralNode{ID: id}
			if includeStats {
				node.DirectSize = len(children)
			}
			if remaining <= 0 {
				return node, nil
			}
			for _, childID := range children {
				child, err := build(childID, remaining-1)
				if err != nil {
					return nil, err
				}
				node.Children = append(node.Children, child)
			}
			return node, nil
		}

		var err error
		result, err = build(root, depth)
		return err
	})
	return result, err
}

// # Internal Helpers

func loadFromBucket(bucket *bbolt.Bucket, id string) (*entity.Entity, error) {
	raw := bucket.Get([]byte(id))
	if raw == nil {
		return nil, ErrNotFound
	}
	var e entity.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("repository: failed to unmarshal entity %q: %w", id, err)
	}
	return &e, nil
}

func indexByType(tx *bbolt.Tx, entityType, id string) error {
	typeRoot := tx.Bucket(bucketTypeIndex)
	typeBucket, err := typeRoot.CreateBucketIfNotExists([]byte(entityType))
	if err != nil {
		return err
	}
	return typeBucket.Put([]byte(id), []byte{1})
}

func unindexByType(tx *bbolt.Tx, entityType, id string) error {
	typeRoot := tx.Bucket(bucketTypeIndex)
	typeBucket := typeRoot.Bucket([]byte(entityType))
	if typeBucket == nil {
		return nil
	}
	return typeBucket.Delete([]byte(id))
}
