// Copyright (c) 2026 AetherCore contributors.

package fusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/executor"
	"github.com/taibuivan/aethercore/internal/core/lockmgr"
	"github.com/taibuivan/aethercore/internal/core/store"
)

const ownerID = "player_1"

func newTestService(t *testing.T) (*Service, *store.EntityStore, *eventbus.Bus) {
	t.Helper()
	s := store.New(nil, false)
	exec := executor.New(s, lockmgr.New(), false)
	bus := eventbus.New(eventbus.Config{})
	return New(exec, bus), s, bus
}

func seedCard(t *testing.T, s *store.EntityStore, owner string, status entity.Status) *entity.Entity {
	t.Helper()
	card := entity.New(EntityType)
	card.Fields[entity.FieldOwnerID] = owner
	card.Fields[entity.FieldStatus] = string(status)
	require.NoError(t, s.Set(context.Background(), card))
	return card
}

func TestFuseCards_SuccessConsumesSourcesAndCreatesFusedCard(t *testing.T) {
	svc, s, _ := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)
	cardB := seedCard(t, s, ownerID, entity.StatusActive)

	fused, err := svc.FuseCards(context.Background(), ownerID, cardA.ID, cardB.ID, "fused_dragon")
	require.NoError(t, err)
	require.NotNil(t, fused)
	assert.Equal(t, EntityType, fused.Type)
	assert.Equal(t, "fused_dragon", fused.Fields[fieldTemplateID])

	_, ok, err := s.Get(context.Background(), cardA.ID)
	require.NoError(t, err)
	assert.False(t, ok, "source card A must be consumed")

	_, ok, err = s.Get(context.Background(), cardB.ID)
	require.NoError(t, err)
	assert.False(t, ok, "source card B must be consumed")

	got, ok, err := s.Get(context.Background(), fused.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ownerID, got.Fields[entity.FieldOwnerID])
}

func TestFuseCards_PublishesCardsFused(t *testing.T) {
	svc, s, bus := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)
	cardB := seedCard(t, s, ownerID, entity.StatusActive)

	var got eventbus.Event
	var fired bool
	bus.Subscribe("cards_fused", func(e eventbus.Event) {
		got = e
		fired = true
	})

	fused, err := svc.FuseCards(context.Background(), ownerID, cardA.ID, cardB.ID, "fused_dragon")
	require.NoError(t, err)

	require.True(t, fired, "FuseCards must publish cards_fused")
	assert.Equal(t, fused.ID, got.Payload["fused_card_id"])
	assert.Equal(t, ownerID, got.Payload["owner_id"])
	assert.ElementsMatch(t, []string{cardA.ID, cardB.ID}, got.Payload["source_card_ids"])
}

// TestFuseCards_FailureInCreateStepCompensatesAndLeavesSourcesUntouched is the
// fusion-rollback scenario: both source cards exist and are active, a
// simulated failure occurs while creating the fused card, and every
// compensation runs — leaving both sources exactly as they were and no
// fused card behind.
func TestFuseCards_FailureInCreateStepCompensatesAndLeavesSourcesUntouched(t *testing.T) {
	svc, s, _ := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)
	cardB := seedCard(t, s, ownerID, entity.StatusActive)

	cmd := &fuseCardsCommand{
		ownerID:          ownerID,
		cardAID:          cardA.ID,
		cardBID:          cardB.ID,
		fusedID:          entity.NewID(),
		resultTemplateID: "fused_dragon",
		forceFailure:     true,
	}

	_, err := svc.run(context.Background(), cmd)
	require.Error(t, err)

	gotA, ok, err := s.Get(context.Background(), cardA.ID)
	require.NoError(t, err)
	require.True(t, ok, "source card A must still exist")
	assert.Equal(t, string(entity.StatusActive), gotA.Fields[entity.FieldStatus])

	gotB, ok, err := s.Get(context.Background(), cardB.ID)
	require.NoError(t, err)
	require.True(t, ok, "source card B must still exist")
	assert.Equal(t, string(entity.StatusActive), gotB.Fields[entity.FieldStatus])

	_, ok, err = s.Get(context.Background(), cmd.fusedID)
	require.NoError(t, err)
	assert.False(t, ok, "no fused card must remain")
}

func TestFuseCards_RejectsCardNotOwnedByPlayer(t *testing.T) {
	svc, s, _ := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)
	cardB := seedCard(t, s, "someone_else", entity.StatusActive)

	_, err := svc.FuseCards(context.Background(), ownerID, cardA.ID, cardB.ID, "fused_dragon")
	require.ErrorIs(t, err, ErrCardNotOwned)
}

func TestFuseCards_RejectsInactiveCard(t *testing.T) {
	svc, s, _ := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)
	cardB := seedCard(t, s, ownerID, entity.StatusConsumed)

	_, err := svc.FuseCards(context.Background(), ownerID, cardA.ID, cardB.ID, "fused_dragon")
	require.ErrorIs(t, err, ErrCardNotActive)
}

func TestFuseCards_RejectsUnknownCard(t *testing.T) {
	svc, s, _ := newTestService(t)
	cardA := seedCard(t, s, ownerID, entity.StatusActive)

	_, err := svc.FuseCards(context.Background(), ownerID, cardA.ID, "no-such-card", "fused_dragon")
	require.ErrorIs(t, err, ErrCardNotFound)
}
