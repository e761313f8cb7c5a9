// Copyright (c) 2026 AetherCore contributors.

/*
Package progression is an example gameplay module: a pure [eventbus.Bus]
subscriber that grants experience on "mob_killed" events and handles
leveling up, including chained level-ups when a single kill's experience
crosses more than one threshold.
*/
package progression

import (
	"context"
	"log/slog"

	"github.com/taibuivan/aethercore/internal/core/dataloader"
	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/modifier"
	"github.com/taibuivan/aethercore/internal/core/store"
)

const defaultExpReward = 10

// mobCategory is the dataloader category progression reads experience
// rewards from.
const mobCategory = "mobs"

// Module tracks player level and experience, leveling up automatically as
// thresholds are crossed.
type Module struct {
	store  *store.EntityStore
	bus    *eventbus.Bus
	loader dataloader.DataLoader
	logger *slog.Logger
}

// New constructs a Module and subscribes it to "mob_killed" on bus. loader
// may be nil, in which case every kill grants [defaultExpReward].
func New(s *store.EntityStore, bus *eventbus.Bus, loader dataloader.DataLoader, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: s, bus: bus, loader: loader, logger: logger}
	bus.Subscribe("mob_killed", m.onMobKilled)
	return m
}

func (m *Module) onMobKilled(event eventbus.Event) {
	playerID, _ := event.Payload["player_id"].(string)
	mobTemplate, _ := event.Payload["mob_template"].(string)
	if playerID == "" {
		return
	}

	ctx := context.Background()
	player, ok, err := m.store.Get(ctx, playerID)
	if err != nil {
		m.logger.Error("progression: failed to load player", slog.String("player_id", playerID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	m.grantExp(player, playerID, m.expReward(mobTemplate))

	if err := m.store.Set(ctx, player); err != nil {
		m.logger.Error("progression: failed to save player", slog.String("player_id", playerID), slog.Any("error", err))
	}
}

func (m *Module) expReward(mobTemplate string) int64 {
	if m.loader == nil {
		return defaultExpReward
	}
	record, ok := m.loader.Get(mobCategory, mobTemplate)
	if !ok {
		return defaultExpReward
	}
	switch v := record["experience_reward"].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return defaultExpReward
	}
}

// grantExp adds expAmount to player's experience and levels up as many
// times as the accumulated experience allows, publishing a "player_level_up"
// event per level gained.
func (m *Module) grantExp(player *entity.Entity, playerID string, expAmount int64) {
	level, _ := player.Fields["level"].(int64)
	if level == 0 {
		level = 1
	}
	exp, _ := player.Fields["exp"].(int64)
	exp += expAmount

	needed := expForNextLevel(level)
	for exp >= needed {
		oldLevel := level
		level++
		exp -= needed
		grantLevelUpStats(player)

		m.bus.Publish(eventbus.Event{
			Topic: "player_level_up",
			Payload: map[string]any{
				"player_id": playerID,
				"old_level": oldLevel,
				"new_level": level,
			},
		})
		needed = expForNextLevel(level)
	}

	player.Fields["level"] = level
	player.Fields["exp"] = exp
}

// expForNextLevel is a simple linear scaling: level * 100.
func expForNextLevel(level int64) int64 {
	return level * 100
}

// levelUpGrants are the per-level stat bonuses, composed through
// [modifier.CalculateStat] the same way equipment and buff modifiers are,
// rather than hand-added — so a future per-class or per-item grant table
// slots in as more entries here instead of more arithmetic.
var levelUpGrants = []modifier.Modifier{
	{Stat: "max_hp", Type: modifier.TypeFlat, Value: 10, Source: "level_up"},
	{Stat: "attack", Type: modifier.TypeFlat, Value: 2, Source: "level_up"},
	{Stat: "defense", Type: modifier.TypeFlat, Value: 1, Source: "level_up"},
}

// grantLevelUpStats applies the per-level stat grants: +10 max HP (with a
// full heal), +2 attack, +1 defense.
func grantLevelUpStats(player *entity.Entity) {
	maxHP, ok := player.Fields["max_hp"].(int64)
	if !ok {
		maxHP = 100
	}
	attack, ok := player.Fields["attack"].(int64)
	if !ok {
		attack = 10
	}
	defense, _ := player.Fields["defense"].(int64)

	maxHP = int64(modifier.CalculateStat(float64(maxHP), levelUpGrants, "max_hp"))
	attack = int64(modifier.CalculateStat(float64(attack), levelUpGrants, "attack"))
	defense = int64(modifier.CalculateStat(float64(defense), levelUpGrants, "defense"))

	player.Fields["max_hp"] = maxHP
	player.Fields["hp"] = maxHP
	player.Fields["attack"] = attack
	player.Fields["defense"] = defense
}
