// Copyright (c) 2026 AetherCore contributors.

/*
Package entity defines the Entity envelope: the single record shape shared by
every subsystem in the engine core (store, repository, lock manager,
executor, sagas, services).

An Entity is an open record keyed by a unique string id. Two fields are
reserved and engine-managed (Type, Version); a handful of further
conventions (owner_id, status, proto_id) are preserved but not interpreted
except where a command or saga precondition explicitly checks them.
*/
package entity

import "github.com/google/uuid"

// # Reserved Field Names

// Reserved keys inside [Entity.Fields]. The engine preserves these
// conventions but does not enforce them beyond the typed accessors below.
const (
	FieldOwnerID = "owner_id"
	FieldStatus  = "status"
	FieldProtoID = "proto_id"
)

// # Status Conventions

// Status is a lifecycle tag drawn from a closed set of conventional values.
// Commands and saga preconditions may gate on it; the store never enforces it.
type Status string

const (
	StatusActive    Status = "active"
	StatusLocked    Status = "locked"
	StatusOnAuction Status = "on_auction"
	StatusInTrade   Status = "in_trade"
	StatusEquipped  Status = "equipped"
	StatusConsumed  Status = "consumed"
	StatusReserved  Status = "reserved"
)

// # Entity Envelope

// Entity is the unit of persistence and locking throughout the core.
//
// ID, Type, and Version are first-class engine-managed fields. Fields holds
// the open, per-type payload — the dynamic record shape the source language
// represents as an untyped mapping. Owner/Status/ProtoID are typed
// convenience accessors over reserved Fields keys so callers working with
// the conventional fields do not stringly-type them.
type Entity struct {
	ID      string         `json:"id"`
	Type    string         `json:"_type"`
	Version int64          `json:"_version"`
	Fields  map[string]any `json:"fields"`
}

// New constructs an empty [Entity] of the given type with a fresh id and
// Version zero; the store assigns Version 1 on first write.
func New(entityType string) *Entity {
	return &Entity{
		ID:     NewID(),
		Type:   entityType,
		Fields: make(map[string]any),
	}
}

// NewID returns a fresh, globally-unique entity identifier. Every entity id
// is generated here, never hand-assembled by callers, so uniqueness-within-type
// never needs to be independently re-verified by commands.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("entity: failed to generate id: " + err.Error())
	}
	return id.String()
}

// Clone returns a copy of e with a fresh Fields map. The copy is shallow:
// values held inside Fields (nested maps, slices, pointers) are shared with
// e, not copied. Used by
// the transaction snapshot (internal/core/txn) to give each command its own
// working copy of every entity it touches.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &Entity{
		ID:      e.ID,
		Type:    e.Type,
		Version: e.Version,
		Fields:  fields,
	}
}

// # Typed Accessors

// OwnerID returns the conventional owner_id field, or "" if unset.
func (e *Entity) OwnerID() string {
	return stringField(e, FieldOwnerID)
}

// SetOwnerID sets the conventional owner_id field.
func (e *Entity) SetOwnerID(ownerID string) {
	e.ensureFields()
	e.Fields[FieldOwnerID] = ownerID
}

// Status returns the conventional status field, or "" if unset.
func (e *Entity) Status() Status {
	return Status(stringField(e, FieldStatus))
}

// SetStatus sets the conventional status field.
func (e *Entity) SetStatus(status Status) {
	e.ensureFields()
	e.Fields[FieldStatus] = string(status)
}

// ProtoID returns the conventional proto_id field, linking this instance to
// a template record, or "" if unset.
func (e *Entity) ProtoID() string {
	return stringField(e, FieldProtoID)
}

// SetProtoID sets the conventional proto_id field.
func (e *Entity) SetProtoID(protoID string) {
	e.ensureFields()
	e.Fields[FieldProtoID] = protoID
}

func stringField(e *Entity, key string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	v, _ := e.Fields[key].(string)
	return v
}

func (e *Entity) ensureFields() {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
}
