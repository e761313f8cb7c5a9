// Copyright (c) 2026 AetherCore contributors.

/*
Package raid implements the raid aggregation service: a shared-counter
entity (a boss with HP in the billions, a participants map, aggregate
damage, and its own version counter) under many concurrent attack
operations. It is the engine's representative high-contention use case,
demonstrating optimistic-retry semantics built directly on the store
rather than through the executor's lock-based path — attacks are meant to
race, and retry absorbs the collisions.
*/
package raid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/modifier"
	"github.com/taibuivan/aethercore/internal/core/store"
)

// Status is a raid's lifecycle stage.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// EntityType is the entity.Type stamped on every raid record.
const EntityType = "raid"

// Field names inside a raid entity's Fields map.
const (
	fieldStatus       = "status"
	fieldName         = "name"
	fieldMaxHP        = "max_hp"
	fieldCurrentHP    = "current_hp"
	fieldTotalDamage  = "total_damage"
	fieldVersion      = "version" // informational write counter, bumped with entity.Version; the optimistic check uses entity.Version
	fieldActivatedAt  = "activated_at"
	fieldExpiresAt    = "expires_at"
	fieldParticipants = "participants"
)

// Participant tracks one player's contribution to a raid.
type Participant struct {
	PlayerID    string    `json:"player_id"`
	TotalDamage int64     `json:"total_damage"`
	AttackCount int       `json:"attack_count"`
	FirstAttack time.Time `json:"first_attack"`
	LastAttack  time.Time `json:"last_attack"`
}

// ErrNotFound is returned when a raid id does not exist.
var ErrNotFound = errors.New("raid: not found")

// ErrNotActive is returned when an attack targets a raid that is not in
// [StatusActive].
var ErrNotActive = errors.New("raid: not active")

// ErrExpired is returned when an attack targets a raid whose expiry has
// already passed.
var ErrExpired = errors.New("raid: expired")

// ErrRetriesExhausted is returned when every optimistic-retry attempt for
// an attack lost the race against concurrent writers.
var ErrRetriesExhausted = errors.New("raid: retries exhausted")

// Config tunes the attack retry loop.
type Config struct {
	// MaxRetries bounds the optimistic-retry loop per attack. Zero means 5.
	MaxRetries int
	// RetryBackoff is slept between retries. Zero means 50ms.
	RetryBackoff time.Duration
}

// Service runs raid lifecycle transitions and the attack operation.
type Service struct {
	store  *store.EntityStore
	config Config
	now    func() time.Time
}

// New constructs a Service over s with the given retry configuration.
func New(s *store.EntityStore, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	return &Service{store: s, config: cfg, now: time.Now}
}

// Create registers a new raid in [StatusScheduled].
func (s *Service) Create(ctx context.Context, name string, maxHP int64, expiresAt time.Time) (*entity.Entity, error) {
	e := entity.New(EntityType)
	e.Fields[fieldName] = name
	e.Fields[fieldStatus] = string(StatusScheduled)
	e.Fields[fieldMaxHP] = maxHP
	e.Fields[fieldCurrentHP] = maxHP
	e.Fields[fieldTotalDamage] = int64(0)
	e.Fields[fieldVersion] = int64(0)
	e.Fields[fieldExpiresAt] = expiresAt
	e.Fields[fieldParticipants] = map[string]*Participant{}

	if err := s.store.Set(ctx, e); err != nil {
		return nil, fmt.Errorf("raid: failed to create: %w", err)
	}
	return e, nil
}

// Activate transitions a scheduled raid to active, allowing attacks.
func (s *Service) Activate(ctx context.Context, raidID string) error {
	e, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	e.Fields[fieldStatus] = string(StatusActive)
	e.Fields[fieldActivatedAt] = s.now()
	return s.store.Set(ctx, e)
}

// Expire forces a raid into [StatusExpired].
func (s *Service) Expire(ctx context.Context, raidID string) error {
	return s.setTerminalStatus(ctx, raidID, StatusExpired)
}

// Cancel forces a raid into [StatusCancelled].
func (s *Service) Cancel(ctx context.Context, raidID string) error {
	return s.setTerminalStatus(ctx, raidID, StatusCancelled)
}

func (s *Service) setTerminalStatus(ctx context.Context, raidID string, status Status) error {
	e, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	e.Fields[fieldStatus] = string(status)
	return s.store.Set(ctx, e)
}

// AttackResult is the outcome of one [Service.Attack] call.
type AttackResult struct {
	Success           bool
	DamageDealt       int64
	CurrentHP         int64
	MaxHP             int64
	Percentage        float64
	Defeated          bool
	Rank              int
	TotalContribution int64
	RetryCount        int
	FailureReason     string
}

// Attack applies requestedDamage from playerID to raidID, retrying against
// concurrent writers up to Config.MaxRetries times. Precondition checks
// (existence, active status, not past expiry) run once before the loop;
// the loop itself only retries the optimistic write race.
//
// modifiers, if any, are the attacker's active damage buffs/debuffs (e.g.
// equipment bonuses, temporary combat effects): they're composed against
// requestedDamage via [modifier.CalculateStat] under the "damage" stat
// key before the result is clamped to the boss's remaining HP. Passing no
// modifiers leaves requestedDamage unchanged.
func (s *Service) Attack(ctx context.Context, raidID, playerID string, requestedDamage int64, modifiers ...modifier.Modifier) (AttackResult, error) {
	raw, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return AttackResult{}, err
	}
	if !ok {
		return AttackResult{}, ErrNotFound
	}
	if Status(stringField(raw, fieldStatus)) != StatusActive {
		return AttackResult{}, ErrNotActive
	}
	if expiresAt, ok := raw.Fields[fieldExpiresAt].(time.Time); ok && s.now().After(expiresAt) {
		raw.Fields[fieldStatus] = string(StatusExpired)
		_ = s.store.Set(ctx, raw)
		return AttackResult{}, ErrExpired
	}

	for retry := 0; retry < s.config.MaxRetries; retry++ {
		raidEntity, ok, err := s.store.Get(ctx, raidID)
		if err != nil {
			return AttackResult{}, err
		}
		if !ok {
			return AttackResult{}, ErrNotFound
		}

		currentHP, _ := raidEntity.Fields[fieldCurrentHP].(int64)
		actual := requestedDamage
		if len(modifiers) > 0 {
			computed := modifier.CalculateStat(float64(requestedDamage), modifiers, "damage")
			if computed < 0 {
				computed = 0
			}
			actual = int64(computed)
		}
		if actual > currentHP {
			actual = currentHP
		}

		newHP := currentHP - actual
		totalDamage, _ := raidEntity.Fields[fieldTotalDamage].(int64)
		newTotalDamage := totalDamage + actual

		participants, _ := raidEntity.Fields[fieldParticipants].(map[string]*Participant)
		if participants == nil {
			participants = map[string]*Participant{}
		}
		updated := make(map[string]*Participant, len(participants))
		for id, p := range participants {
			updated[id] = p
		}
		now := s.now()
		var p Participant
		if existing, ok := updated[playerID]; ok {
			p = *existing // copy: never mutate a Participant another clone's map still points at
		} else {
			p = Participant{PlayerID: playerID, FirstAttack: now}
		}
		p.TotalDamage += actual
		p.AttackCount++
		p.LastAttack = now
		updated[playerID] = &p

		raidEntity.Fields[fieldCurrentHP] = newHP
		raidEntity.Fields[fieldTotalDamage] = newTotalDamage
		raidEntity.Fields[fieldParticipants] = updated
		if newHP <= 0 {
			raidEntity.Fields[fieldStatus] = string(StatusCompleted)
		}
		observedVersion := raidEntity.Version
		version, _ := raidEntity.Fields[fieldVersion].(int64)
		raidEntity.Fields[fieldVersion] = version + 1
		raidEntity.Version = observedVersion + 1

		err = s.store.CompareAndSet(ctx, observedVersion, raidEntity)
		if err == nil {
			rank, contribution := rankAndContribution(updated, playerID)
			percentage := 0.0
			if maxHP, ok := raidEntity.Fields[fieldMaxHP].(int64); ok && maxHP > 0 {
				percentage = float64(actual) / float64(maxHP) * 100
			}
			return AttackResult{
				Success:           true,
				DamageDealt:       actual,
				CurrentHP:         newHP,
				MaxHP:             asInt64(raidEntity.Fields[fieldMaxHP]),
				Percentage:        percentage,
				Defeated:          newHP <= 0,
				Rank:              rank,
				TotalContribution: contribution,
				RetryCount:        retry,
			}, nil
		}

		time.Sleep(s.config.RetryBackoff + jitter())
	}

	return AttackResult{Success: false, FailureReason: ErrRetriesExhausted.Error(), RetryCount: s.config.MaxRetries}, ErrRetriesExhausted
}

// Status returns the current status and HP snapshot of a raid.
func (s *Service) Status(ctx context.Context, raidID string) (Status, int64, int64, error) {
	e, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return "", 0, 0, err
	}
	if !ok {
		return "", 0, 0, ErrNotFound
	}
	return Status(stringField(e, fieldStatus)), asInt64(e.Fields[fieldCurrentHP]), asInt64(e.Fields[fieldMaxHP]), nil
}

// LeaderboardEntry is one ranked participant in a raid's leaderboard.
type LeaderboardEntry struct {
	PlayerID    string
	TotalDamage int64
	Rank        int
	Percentage  float64
}

// Leaderboard returns the top limit participants of raidID, ranked by
// total damage descending.
func (s *Service) Leaderboard(ctx context.Context, raidID string, limit int) ([]LeaderboardEntry, error) {
	e, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	participants, _ := e.Fields[fieldParticipants].(map[string]*Participant)
	maxHP := asInt64(e.Fields[fieldMaxHP])

	entries := make([]LeaderboardEntry, 0, len(participants))
	for id, p := range participants {
		pct := 0.0
		if maxHP > 0 {
			pct = float64(p.TotalDamage) / float64(maxHP) * 100
		}
		entries = append(entries, LeaderboardEntry{PlayerID: id, TotalDamage: p.TotalDamage, Percentage: pct})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TotalDamage > entries[j].TotalDamage })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PlayerContribution returns playerID's participant record for raidID, if any.
func (s *Service) PlayerContribution(ctx context.Context, raidID, playerID string) (*Participant, error) {
	e, ok, err := s.store.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	participants, _ := e.Fields[fieldParticipants].(map[string]*Participant)
	return participants[playerID], nil
}

// AllRaids returns the ids of every raid currently in the working set.
func (s *Service) AllRaids() []string {
	return s.store.ByType(EntityType)
}

// ActiveRaids returns the ids of every raid currently in [StatusActive].
func (s *Service) ActiveRaids(ctx context.Context) ([]string, error) {
	var active []string
	for _, id := range s.store.ByType(EntityType) {
		e, ok, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && Status(stringField(e, fieldStatus)) == StatusActive {
			active = append(active, id)
		}
	}
	return active, nil
}

func rankAndContribution(participants map[string]*Participant, playerID string) (int, int64) {
	type ranked struct {
		id     string
		damage int64
	}
	all := make([]ranked, 0, len(participants))
	for id, p := range participants {
		all = append(all, ranked{id: id, damage: p.TotalDamage})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].damage > all[j].damage })
	for i, r := range all {
		if r.id == playerID {
			return i + 1, r.damage
		}
	}
	return 0, 0
}

func stringField(e *entity.Entity, key string) string {
	v, _ := e.Fields[key].(string)
	return v
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}

// jitter spreads retry backoffs slightly so a burst of colliding attacks
// does not resynchronize on the same interval.
func jitter() time.Duration {
	return time.Duration(rand.Intn(20)) * time.Millisecond
}
