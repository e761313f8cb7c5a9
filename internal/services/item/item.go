// Copyright (c) 2026 AetherCore contributors.

/*
Package item implements SpawnItem, the command that resolves the
purchase/no-item ambiguity left open by the core: a front-end module that
wants a distinct inventory entity (rather than "just stamp an id") runs
SpawnItem through the executor like any other command, then the Service
publishes item_spawned so gameplay modules can react to it the same way
they react to mob_killed or banner_activated.
*/
package item

import (
	"context"
	"errors"
	"fmt"

	"github.com/taibuivan/aethercore/internal/core/command"
	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/executor"
	"github.com/taibuivan/aethercore/internal/core/txn"
)

// EntityType is the entity.Type stamped on every spawned item record.
const EntityType = "item"

// Field names inside an item entity's Fields map.
const (
	fieldTemplateID = "template_id"
	fieldQuantity   = "quantity"
)

// ErrInvalidQuantity is returned when a SpawnItem request asks for a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("item: quantity must be positive")

// spawnItemCommand is the command.Command the executor runs: it creates a
// single new item entity, identified by its own Dependencies() id, holding
// templateID and quantity. It never reads or writes any other entity, so
// it never contends with anything but another spawn of the same (freshly
// generated) id, which cannot happen.
type spawnItemCommand struct {
	itemID     string
	templateID string
	quantity   int64
}

func (c *spawnItemCommand) Dependencies() []string { return []string{c.itemID} }

func (c *spawnItemCommand) Execute(_ context.Context, ws *txn.WorkingStore) (any, error) {
	e := entity.New(EntityType)
	e.ID = c.itemID
	e.Fields[fieldTemplateID] = c.templateID
	e.Fields[fieldQuantity] = c.quantity
	ws.Set(e)
	return e, nil
}

// Service runs SpawnItem through an [executor.Executor] and publishes
// item_spawned on success.
type Service struct {
	exec *executor.Executor
	bus  *eventbus.Bus
}

// New constructs a Service that runs SpawnItem commands through exec and
// publishes item_spawned to bus.
func New(exec *executor.Executor, bus *eventbus.Bus) *Service {
	return &Service{exec: exec, bus: bus}
}

// SpawnItem creates a new item entity holding templateID and quantity,
// running the creation through the executor's normal lock/transaction
// pipeline, then publishes item_spawned ({item_id, template_id, quantity})
// to the bus. The created item entity is returned on success.
func (s *Service) SpawnItem(ctx context.Context, templateID string, quantity int64) (*entity.Entity, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cmd := &spawnItemCommand{
		itemID:     entity.NewID(),
		templateID: templateID,
		quantity:   quantity,
	}

	result := s.exec.Execute(ctx, cmd)
	if !result.OK() {
		return nil, fmt.Errorf("item: failed to spawn %q: %w", templateID, result.Err)
	}
	e, _ := result.Data.(*entity.Entity)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Topic: "item_spawned",
			Payload: map[string]any{
				"item_id":     cmd.itemID,
				"template_id": templateID,
				"quantity":    quantity,
			},
		})
	}
	return e, nil
}
