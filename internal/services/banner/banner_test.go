// Copyright (c) 2026 AetherCore contributors.

package banner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/scheduler"
	"github.com/taibuivan/aethercore/internal/core/store"
)

func newTestService(t *testing.T, cfg Config) (*Service, *scheduler.Scheduler) {
	s, sched, _ := newTestServiceWithBus(t, cfg)
	return s, sched
}

func newTestServiceWithBus(t *testing.T, cfg Config) (*Service, *scheduler.Scheduler, *eventbus.Bus) {
	sched := scheduler.New(nil)
	t.Cleanup(sched.Shutdown)
	bus := eventbus.New(eventbus.Config{})
	return New(store.New(nil, false), bus, sched, cfg), sched, bus
}

func testBanner(id string) Banner {
	return Banner{
		ID:            id,
		Name:          "Spring Festival",
		CardPool:      []string{"card_a", "card_b"},
		RarityWeights: map[string]float64{"ssr": 0.03, "sr": 0.17, "r": 0.8},
	}
}

func TestCreate_RejectsEmptyPool(t *testing.T) {
	s, _ := newTestService(t, Config{})
	_, err := s.Create(context.Background(), Banner{ID: "b1"})
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestCreate_RejectsDuplicateID(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)

	_, err = s.Create(ctx, testBanner("b1"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestActivate_EnforcesSingleActiveBanner(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)
	_, err = s.Create(ctx, testBanner("b2"))
	require.NoError(t, err)

	require.NoError(t, s.Activate(ctx, "b1"))
	require.NoError(t, s.Activate(ctx, "b2"))

	status1, _, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, status1, "activating b2 must deactivate b1 back to scheduled")

	status2, _, err := s.Get(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status2)

	active, ok, err := s.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b2", active)
}

func TestActivate_RejectsExpiredOrCancelled(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, "b1"))

	err = s.Activate(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotActivatable)
}

func TestActivate_PublishesBannerActivated(t *testing.T) {
	s, _, bus := newTestServiceWithBus(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)

	var got eventbus.Event
	var fired bool
	bus.Subscribe("banner_activated", func(e eventbus.Event) {
		got = e
		fired = true
	})

	require.NoError(t, s.Activate(ctx, "b1"))

	require.True(t, fired, "Activate must publish banner_activated")
	assert.Equal(t, "b1", got.Payload["banner_id"])
	assert.Equal(t, "Spring Festival", got.Payload["name"])
}

func TestExpire_PublishesBannerExpired(t *testing.T) {
	s, _, bus := newTestServiceWithBus(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)
	require.NoError(t, s.Activate(ctx, "b1"))
	require.NoError(t, s.TrackPull(ctx, "b1", "player1", 3))

	var got eventbus.Event
	var fired bool
	bus.Subscribe("banner_expired", func(e eventbus.Event) {
		got = e
		fired = true
	})

	require.NoError(t, s.Expire(ctx, "b1"))

	require.True(t, fired, "Expire must publish banner_expired")
	assert.Equal(t, "b1", got.Payload["banner_id"])
	assert.Equal(t, int64(3), got.Payload["total_pulls"])
}

func TestExpire_FallsBackToDefaultBanner(t *testing.T) {
	s, _ := newTestService(t, Config{DefaultBannerID: "default"})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("default"))
	require.NoError(t, err)
	_, err = s.Create(ctx, testBanner("flash"))
	require.NoError(t, err)

	require.NoError(t, s.Activate(ctx, "flash"))
	require.NoError(t, s.Expire(ctx, "flash"))

	status, _, err := s.Get(ctx, "flash")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status)

	active, ok, err := s.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "default", active, "the default banner must take over once the active one expires")
}

func TestCancel_DoesNotTriggerDefaultFallback(t *testing.T) {
	s, _ := newTestService(t, Config{DefaultBannerID: "default"})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("default"))
	require.NoError(t, err)
	_, err = s.Create(ctx, testBanner("flash"))
	require.NoError(t, err)

	require.NoError(t, s.Activate(ctx, "flash"))
	require.NoError(t, s.Cancel(ctx, "flash"))

	_, ok, err := s.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "an explicit cancel must never hand off to the default banner")
}

func TestTrackPull_AccumulatesTotalsAndUniquePullers(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)

	require.NoError(t, s.TrackPull(ctx, "b1", "player-1", 10))
	require.NoError(t, s.TrackPull(ctx, "b1", "player-1", 5))
	require.NoError(t, s.TrackPull(ctx, "b1", "player-2", 1))

	_, stats, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(16), stats.TotalPulls)
	assert.Equal(t, 2, stats.UniquePullers)
}

func TestTrackPull_RejectsNonPositiveCount(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := s.Create(ctx, testBanner("b1"))
	require.NoError(t, err)

	err = s.TrackPull(ctx, "b1", "player-1", 0)
	assert.Error(t, err)
}

func TestCreateFlash_SchedulesActivateAndExpire(t *testing.T) {
	s, sched := newTestService(t, Config{})
	ctx := context.Background()

	_, taskIDs, err := s.CreateFlash(ctx, testBanner("flash"), 30*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, taskIDs, 2)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, _, err := s.Get(ctx, "flash")
		require.NoError(t, err)
		if status == StatusActive {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _, err := s.Get(ctx, "flash")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, _, err := s.Get(ctx, "flash")
		require.NoError(t, err)
		if status == StatusExpired {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _, err = s.Get(ctx, "flash")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status)

	_ = sched
}

func TestCardPool_ReturnsConfiguredPoolAndWeights(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	b := testBanner("b1")
	_, err := s.Create(ctx, b)
	require.NoError(t, err)

	pool, weights, err := s.CardPool(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.CardPool, pool)
	assert.Equal(t, b.RarityWeights, weights)
}

func TestGet_UnknownBanner(t *testing.T) {
	s, _ := newTestService(t, Config{})
	_, _, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
