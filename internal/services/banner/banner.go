// Copyright (c) 2026 AetherCore contributors.

/*
Package banner implements the BannerManager lifecycle service: time-windowed
card pools that activate and expire automatically via the scheduler, with at
most one banner active at a time. Activate and Expire publish
banner_activated/banner_expired to the engine's event bus, the same way
achievements and progression publish their own gameplay events.
*/
package banner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/scheduler"
	"github.com/taibuivan/aethercore/internal/core/store"
	"github.com/taibuivan/aethercore/internal/platform/apperr"
)

// Status is a banner's lifecycle stage.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// EntityType is the entity.Type stamped on every banner record.
const EntityType = "banner"

// Field names inside a banner entity's Fields map.
const (
	fieldName            = "name"
	fieldDescription     = "description"
	fieldCardPool        = "card_pool"
	fieldRarityWeights   = "rarity_weights"
	fieldFeaturedIDs     = "featured_ids"
	fieldStatus          = "status"
	fieldActivatedAt     = "activated_at"
	fieldExpiredAt       = "expired_at"
	fieldTotalPulls      = "total_pulls"
	fieldUniquePullers   = "unique_pullers" // stored as map[string]bool, counted on read
	fieldScheduleTaskIDs = "schedule_task_ids"
)

// ErrNotFound is returned when a banner id does not exist.
var ErrNotFound = errors.New("banner: not found")

// ErrAlreadyExists is returned by Create when id is already registered.
var ErrAlreadyExists = errors.New("banner: already exists")

// ErrEmptyPool is returned by Create when the card pool has no entries.
var ErrEmptyPool = errors.New("banner: card pool is empty")

// ErrNotActivatable is returned by Activate when id is expired or cancelled.
var ErrNotActivatable = errors.New("banner: cannot activate an expired or cancelled banner")

// Banner is the caller-facing view of a banner record used to create one.
type Banner struct {
	ID            string
	Name          string
	Description   string
	CardPool      []string
	RarityWeights map[string]float64
	FeaturedIDs   []string
}

// Stats is a read-only snapshot of a banner's pull statistics.
type Stats struct {
	TotalPulls    int64
	UniquePullers int
}

// Service runs banner lifecycle transitions, backed by a scheduler for
// automatic activation and expiration of flash banners.
type Service struct {
	store        *store.EntityStore
	bus          *eventbus.Bus
	sched        *scheduler.Scheduler
	defaultID    string // optional: activated automatically when the active banner expires
	hasDefaultID bool
	now          func() time.Time
}

// Config configures a new Service.
type Config struct {
	// DefaultBannerID, if set, is activated automatically whenever the
	// currently active banner expires and no other activation has since
	// taken its place.
	DefaultBannerID string
}

// New constructs a Service over s, scheduling flash-banner transitions
// through sched and publishing banner_activated/banner_expired to bus.
func New(s *store.EntityStore, bus *eventbus.Bus, sched *scheduler.Scheduler, cfg Config) *Service {
	return &Service{
		store:        s,
		bus:          bus,
		sched:        sched,
		defaultID:    cfg.DefaultBannerID,
		hasDefaultID: cfg.DefaultBannerID != "",
		now:          time.Now,
	}
}

// Create registers a new banner in [StatusScheduled]. It fails if a banner
// with this id already exists or the card pool is empty.
func (s *Service) Create(ctx context.Context, b Banner) (*entity.Entity, error) {
	if len(b.CardPool) == 0 {
		return nil, ErrEmptyPool
	}
	if exists, err := s.store.Exists(ctx, b.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyExists
	}

	e := entity.New(EntityType)
	e.ID = b.ID
	e.Fields[fieldName] = b.Name
	e.Fields[fieldDescription] = b.Description
	e.Fields[fieldCardPool] = append([]string(nil), b.CardPool...)
	e.Fields[fieldRarityWeights] = b.RarityWeights
	e.Fields[fieldFeaturedIDs] = append([]string(nil), b.FeaturedIDs...)
	e.Fields[fieldStatus] = string(StatusScheduled)
	e.Fields[fieldTotalPulls] = int64(0)
	e.Fields[fieldUniquePullers] = map[string]bool{}

	if err := s.store.Set(ctx, e); err != nil {
		return nil, fmt.Errorf("banner: failed to create %q: %w", b.ID, err)
	}
	return e, nil
}

// Activate deactivates the previously active banner (back to scheduled, if
// any), then marks id active with activated_at=now. Fails if id is expired
// or cancelled.
func (s *Service) Activate(ctx context.Context, id string) error {
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	switch Status(stringField(e, fieldStatus)) {
	case StatusExpired, StatusCancelled:
		return ErrNotActivatable
	}

	if err := s.deactivateCurrent(ctx); err != nil {
		return err
	}

	e.Fields[fieldStatus] = string(StatusActive)
	e.Fields[fieldActivatedAt] = s.now()
	if err := s.store.Set(ctx, e); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Topic: "banner_activated",
			Payload: map[string]any{
				"banner_id": id,
				"name":      stringField(e, fieldName),
			},
		})
	}
	return nil
}

// deactivateCurrent returns every currently active banner to scheduled.
// Under the single-active-banner invariant this is at most one id, but the
// scan tolerates more in case an earlier bug let two slip through.
func (s *Service) deactivateCurrent(ctx context.Context) error {
	for _, id := range s.store.ByType(EntityType) {
		e, ok, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok || Status(stringField(e, fieldStatus)) != StatusActive {
			continue
		}
		e.Fields[fieldStatus] = string(StatusScheduled)
		if err := s.store.Set(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Expire marks id as expired with expired_at=now. If id was active and a
// default banner is configured, the default is activated next.
func (s *Service) Expire(ctx context.Context, id string) error {
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	wasActive := Status(stringField(e, fieldStatus)) == StatusActive
	totalPulls, _ := e.Fields[fieldTotalPulls].(int64)

	e.Fields[fieldStatus] = string(StatusExpired)
	e.Fields[fieldExpiredAt] = s.now()
	if err := s.store.Set(ctx, e); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Topic: "banner_expired",
			Payload: map[string]any{
				"banner_id":   id,
				"total_pulls": totalPulls,
			},
		})
	}

	if wasActive && s.hasDefaultID && s.defaultID != id {
		if err := s.Activate(ctx, s.defaultID); err != nil {
			return fmt.Errorf("banner: failed to activate default banner after expiring %q: %w", id, err)
		}
	}
	return nil
}

// Cancel forces id into [StatusCancelled], bypassing any default-banner
// fallback — unlike Expire, a cancelled banner never hands off to a
// default.
func (s *Service) Cancel(ctx context.Context, id string) error {
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	e.Fields[fieldStatus] = string(StatusCancelled)
	return s.store.Set(ctx, e)
}

// CreateFlash registers b, then schedules an activation at now+initialDelay
// and an expiration at now+initialDelay+duration through the scheduler. It
// returns the created entity and the two scheduled task ids.
func (s *Service) CreateFlash(ctx context.Context, b Banner, duration, initialDelay time.Duration) (*entity.Entity, []string, error) {
	e, err := s.Create(ctx, b)
	if err != nil {
		return nil, nil, err
	}

	id := b.ID
	activateTaskID := s.sched.ScheduleOnce(func(ctx context.Context) error {
		return s.Activate(ctx, id)
	}, initialDelay, "banner-activate:"+id)

	expireTaskID := s.sched.ScheduleOnce(func(ctx context.Context) error {
		return s.Expire(ctx, id)
	}, initialDelay+duration, "banner-expire:"+id)

	taskIDs := []string{activateTaskID, expireTaskID}
	e.Fields[fieldScheduleTaskIDs] = taskIDs
	if err := s.store.Set(ctx, e); err != nil {
		return nil, nil, fmt.Errorf("banner: failed to record schedule for %q: %w", id, err)
	}
	return e, taskIDs, nil
}

// TrackPull records count pulls by playerID against id's statistics.
func (s *Service) TrackPull(ctx context.Context, id, playerID string, count int64) error {
	if count <= 0 {
		return apperr.ValidationError("pull count must be positive")
	}
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	total, _ := e.Fields[fieldTotalPulls].(int64)
	pullers, _ := e.Fields[fieldUniquePullers].(map[string]bool)
	if pullers == nil {
		pullers = map[string]bool{}
	} else {
		clone := make(map[string]bool, len(pullers))
		for k, v := range pullers {
			clone[k] = v
		}
		pullers = clone
	}
	pullers[playerID] = true

	e.Fields[fieldTotalPulls] = total + count
	e.Fields[fieldUniquePullers] = pullers
	return s.store.Set(ctx, e)
}

// Get returns the current status and pull statistics for id.
func (s *Service) Get(ctx context.Context, id string) (Status, Stats, error) {
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return "", Stats{}, err
	}
	if !ok {
		return "", Stats{}, ErrNotFound
	}
	total, _ := e.Fields[fieldTotalPulls].(int64)
	pullers, _ := e.Fields[fieldUniquePullers].(map[string]bool)
	return Status(stringField(e, fieldStatus)), Stats{TotalPulls: total, UniquePullers: len(pullers)}, nil
}

// Active returns the id of the currently active banner, or false if none is.
func (s *Service) Active(ctx context.Context) (string, bool, error) {
	for _, id := range s.store.ByType(EntityType) {
		e, ok, err := s.store.Get(ctx, id)
		if err != nil {
			return "", false, err
		}
		if ok && Status(stringField(e, fieldStatus)) == StatusActive {
			return id, true, nil
		}
	}
	return "", false, nil
}

// CardPool returns the configured card pool and rarity weights for id, for
// a downstream gacha module to draw against.
func (s *Service) CardPool(ctx context.Context, id string) ([]string, map[string]float64, error) {
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotFound
	}
	pool, _ := e.Fields[fieldCardPool].([]string)
	weights, _ := e.Fields[fieldRarityWeights].(map[string]float64)
	return pool, weights, nil
}

// All returns every banner id currently in the working set.
func (s *Service) All() []string {
	return s.store.ByType(EntityType)
}

func stringField(e *entity.Entity, key string) string {
	v, _ := e.Fields[key].(string)
	return v
}
