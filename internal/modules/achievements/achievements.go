// Copyright (c) 2026 AetherCore contributors.

/*
Package achievements is an example gameplay module: a pure [eventbus.Bus]
subscriber that tracks kill-count achievements and grants gold rewards,
fully decoupled from whatever system published the "mob_killed" event.
*/
package achievements

import (
	"context"
	"log/slog"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/store"
)

// Definition describes one unlockable achievement. MobTemplate, if
// non-empty, restricts progress to kills of that specific template; an
// empty MobTemplate counts every kill (e.g. "monster_hunter").
type Definition struct {
	ID          string
	Name        string
	MobTemplate string
	Threshold   int
	GoldReward  int64
}

// Module tracks achievement progress for players and unlocks them as
// thresholds are crossed.
type Module struct {
	store       *store.EntityStore
	bus         *eventbus.Bus
	definitions []Definition
	logger      *slog.Logger
}

// New constructs a Module and subscribes it to "mob_killed" on bus.
func New(s *store.EntityStore, bus *eventbus.Bus, definitions []Definition, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{store: s, bus: bus, definitions: definitions, logger: logger}
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
		m.logger.Error("achievements: failed to load player", slog.String("player_id", playerID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	unlocked := fieldMap(player, "achievements")
	progress := fieldMap(player, "achievement_progress")

	for _, def := range m.definitions {
		if def.MobTemplate != "" && def.MobTemplate != mobTemplate {
			continue
		}
		if _, done := unlocked[def.ID]; done {
			continue
		}

		count, _ := progress[def.ID].(int)
		count++
		progress[def.ID] = count

		if count >= def.Threshold {
			m.unlock(player, playerID, def, unlocked)
		}
	}

	player.Fields["achievements"] = unlocked
	player.Fields["achievement_progress"] = progress
	if err := m.store.Set(ctx, player); err != nil {
		m.logger.Error("achievements: failed to save player", slog.String("player_id", playerID), slog.Any("error", err))
	}
}

func (m *Module) unlock(player *entity.Entity, playerID string, def Definition, unlocked map[string]any) {
	unlocked[def.ID] = map[string]any{"name": def.Name, "unlocked": true}

	if def.GoldReward > 0 {
		oldGold, _ := player.Fields["gold"].(int64)
		newGold := oldGold + def.GoldReward
		player.Fields["gold"] = newGold

		m.bus.Publish(eventbus.Event{
			Topic: "gold_changed",
			Payload: map[string]any{
				"player_id": playerID,
				"old_gold":  oldGold,
				"new_gold":  newGold,
				"change":    def.GoldReward,
				"reason":    "achievement_" + def.ID,
			},
		})
	}

	m.bus.Publish(eventbus.Event{
		Topic: "achievement_unlocked",
		Payload: map[string]any{
			"player_id":        playerID,
			"achievement_id":   def.ID,
			"achievement_name": def.Name,
		},
	})
}

func fieldMap(e *entity.Entity, key string) map[string]any {
	m, _ := e.Fields[key].(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	return m
}
