// Copyright (c) 2026 AetherCore contributors.

/*
Package fusion implements card fusion: two owned, active cards are consumed
to produce one fused card. This is the multi-entity operation [saga.Saga]
exists for — verify, remove the two source cards, then create the result —
with each step's compensation restoring the prior step's effect if a later
step fails, run inside the same command transaction the rest of the core
uses for single-command atomicity.
*/
package fusion

import (
	"context"
	"errors"
	"fmt"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/executor"
	"github.com/taibuivan/aethercore/internal/core/saga"
	"github.com/taibuivan/aethercore/internal/core/txn"
)

// EntityType is the entity.Type stamped on both source and fused cards.
const EntityType = "card"

// Field names inside a card entity's Fields map, beyond the engine-managed
// owner_id/status accessors on [entity.Entity].
const (
	fieldTemplateID  = "template_id"
	fieldSourceCards = "source_cards"
)

var (
	ErrCardNotFound  = errors.New("fusion: card not found")
	ErrCardNotOwned  = errors.New("fusion: card not owned by player")
	ErrCardNotActive = errors.New("fusion: card not active")
)

// fuseCardsCommand runs the three-step saga (verify, remove sources, create
// result) against the executor's working store. forceFailure exists purely
// so tests can exercise the compensation path deterministically, mirroring
// how the reference engine's test suite simulates a failure injected mid-fusion.
type fuseCardsCommand struct {
	ownerID          string
	cardAID, cardBID string
	fusedID          string
	resultTemplateID string
	forceFailure     bool
}

func (c *fuseCardsCommand) Dependencies() []string {
	return []string{c.cardAID, c.cardBID, c.fusedID}
}

func (c *fuseCardsCommand) Execute(ctx context.Context, ws *txn.WorkingStore) (any, error) {
	var removedA, removedB *entity.Entity

	sg := saga.New("fuse_cards",
		saga.Step{
			Name: "verify_cards",
			Action: func(context.Context, *txn.WorkingStore) (any, error) {
				return nil, c.verifyCards(ws)
			},
		},
		saga.Step{
			Name: "remove_cards",
			Action: func(context.Context, *txn.WorkingStore) (any, error) {
				a, _ := ws.Get(c.cardAID)
				b, _ := ws.Get(c.cardBID)
				removedA, removedB = a.Clone(), b.Clone()
				ws.Delete(c.cardAID)
				ws.Delete(c.cardBID)
				return nil, nil
			},
			Compensation: func(context.Context, *txn.WorkingStore) error {
				ws.Set(removedA)
				ws.Set(removedB)
				return nil
			},
		},
		saga.Step{
			Name: "create_fused",
			Action: func(context.Context, *txn.WorkingStore) (any, error) {
				if c.forceFailure {
					return nil, errors.New("fusion: simulated failure creating fused card")
				}
				fused := entity.New(EntityType)
				fused.ID = c.fusedID
				fused.Fields[entity.FieldOwnerID] = c.ownerID
				fused.Fields[entity.FieldStatus] = string(entity.StatusActive)
				fused.Fields[fieldTemplateID] = c.resultTemplateID
				fused.Fields[fieldSourceCards] = []string{c.cardAID, c.cardBID}
				ws.Set(fused)
				return fused, nil
			},
			Compensation: func(context.Context, *txn.WorkingStore) error {
				ws.Delete(c.fusedID)
				return nil
			},
		},
	)

	result := sg.Run(ctx, ws)
	switch result.Status {
	case saga.StatusCompleted:
		return result.Results["create_fused"], nil
	case saga.StatusCritical:
		return nil, fmt.Errorf("fusion: unrecoverable failure fusing %s+%s: %w", c.cardAID, c.cardBID, result.Err)
	default:
		return nil, fmt.Errorf("fusion: %w", result.Err)
	}
}

func (c *fuseCardsCommand) verifyCards(ws *txn.WorkingStore) error {
	for _, id := range []string{c.cardAID, c.cardBID} {
		card, ok := ws.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotFound, id)
		}
		if owner, _ := card.Fields[entity.FieldOwnerID].(string); owner != c.ownerID {
			return fmt.Errorf("%w: %s", ErrCardNotOwned, id)
		}
		status, _ := card.Fields[entity.FieldStatus].(string)
		if entity.Status(status) != entity.StatusActive {
			return fmt.Errorf("%w: %s", ErrCardNotActive, id)
		}
	}
	return nil
}

// Service runs FuseCards through an [executor.Executor] and publishes
// cards_fused on success.
type Service struct {
	exec *executor.Executor
	bus  *eventbus.Bus
}

// New constructs a Service that runs fusions through exec and publishes to bus.
func New(exec *executor.Executor, bus *eventbus.Bus) *Service {
	return &Service{exec: exec, bus: bus}
}

// FuseCards consumes cardAID and cardBID, both owned by ownerID and
// status=active, producing one new card of resultTemplateID. On success it
// publishes cards_fused ({owner_id, fused_card_id, source_card_ids,
// template_id}). On any failure — a missing/unowned/inactive source card,
// or a failure injected mid-saga — both source cards are left exactly as
// they were and no fused card exists; the saga's compensations guarantee
// this even though the whole command also rolls back at the transaction
// level.
func (s *Service) FuseCards(ctx context.Context, ownerID, cardAID, cardBID, resultTemplateID string) (*entity.Entity, error) {
	cmd := &fuseCardsCommand{
		ownerID:          ownerID,
		cardAID:          cardAID,
		cardBID:          cardBID,
		fusedID:          entity.NewID(),
		resultTemplateID: resultTemplateID,
	}
	return s.run(ctx, cmd)
}

func (s *Service) run(ctx context.Context, cmd *fuseCardsCommand) (*entity.Entity, error) {
	result := s.exec.Execute(ctx, cmd)
	if !result.OK() {
		return nil, fmt.Errorf("fusion: failed to fuse cards %q+%q: %w", cmd.cardAID, cmd.cardBID, result.Err)
	}
	fused, _ := result.Data.(*entity.Entity)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Topic: "cards_fused",
			Payload: map[string]any{
				"owner_id":        cmd.ownerID,
				"fused_card_id":   fused.ID,
				"source_card_ids": []string{cmd.cardAID, cmd.cardBID},
				"template_id":     cmd.resultTemplateID,
			},
		})
	}
	return fused, nil
}
