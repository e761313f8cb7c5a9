// Copyright (c) 2026 AetherCore contributors.

package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New("raid")

	assert.Equal(t, "raid", e.Type)
	assert.Zero(t, e.Version)
	assert.NotEmpty(t, e.ID)
	assert.NotNil(t, e.Fields)
}

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()

	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestClone_TopLevelFieldsAreIndependent(t *testing.T) {
	e := New("player")
	e.Fields["gold"] = int64(100)
	e.Version = 3

	clone := e.Clone()
	clone.Fields["gold"] = int64(999)
	clone.Version = 7

	assert.Equal(t, int64(100), e.Fields["gold"], "mutating the clone's top-level field must not affect the original")
	assert.Equal(t, int64(3), e.Version)
	assert.Equal(t, e.ID, clone.ID)
}

func TestClone_NestedReferenceValuesAreShared(t *testing.T) {
	type participant struct{ Damage int }

	shared := map[string]*participant{"p1": {Damage: 10}}
	e := New("raid")
	e.Fields["participants"] = shared

	clone := e.Clone()
	cloneParticipants := clone.Fields["participants"].(map[string]*participant)
	cloneParticipants["p1"].Damage = 999

	original := e.Fields["participants"].(map[string]*participant)
	assert.Equal(t, 999, original["p1"].Damage, "Clone is shallow: a pointer value inside Fields is shared across clones")
}

func TestClone_Nil(t *testing.T) {
	var e *Entity
	assert.Nil(t, e.Clone())
}

func TestOwnerIDStatusProtoID_Accessors(t *testing.T) {
	e := New("item")

	assert.Empty(t, e.OwnerID())
	assert.Empty(t, e.Status())
	assert.Empty(t, e.ProtoID())

	e.SetOwnerID("player-1")
	e.SetStatus(StatusEquipped)
	e.SetProtoID("sword_iron")

	assert.Equal(t, "player-1", e.OwnerID())
	assert.Equal(t, StatusEquipped, e.Status())
	assert.Equal(t, "sword_iron", e.ProtoID())
}

func TestSetters_InitializeNilFields(t *testing.T) {
	e := &Entity{ID: NewID(), Type: "item"}
	require.Nil(t, e.Fields)

	e.SetOwnerID("player-1")
	require.NotNil(t, e.Fields)
	assert.Equal(t, "player-1", e.Fields[FieldOwnerID])
}

func TestStringField_NilEntityAndNilFields(t *testing.T) {
	var e *Entity
	assert.Empty(t, stringField(e, FieldOwnerID))

	e2 := &Entity{}
	assert.Empty(t, stringField(e2, FieldOwnerID))
}
