// Package model defines domain entities for the MEF aggregator.
package model

import (
	"errors"
	"fmt"
)

// Entity identifies a record type managed by the system.
type Entity string

const (
	EntityGnd   Entity = "gnd"
	EntityIdref Entity = "idref"
	EntityRero  Entity = "rero"
	EntityViaf  Entity = "viaf"
	EntityMef   Entity = "mef"
)

// ErrUnknownEntity is returned for entity names outside the known set.
var ErrUnknownEntity = errors.New("unknown entity")

// AgentEntities lists the source authority entities, in load order.
var AgentEntities = []Entity{EntityGnd, EntityIdref, EntityRero}

// AllEntities lists every entity type, in bulk-save order.
var AllEntities = []Entity{EntityGnd, EntityIdref, EntityRero, EntityViaf, EntityMef}

// ParseEntity validates an entity name from CLI or API input.
func ParseEntity(name string) (Entity, error) {
	switch Entity(name) {
	case EntityGnd, EntityIdref, EntityRero, EntityViaf, EntityMef:
		return Entity(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

// IsAgent reports whether the entity is a source authority (not viaf/mef).
func (e Entity) IsAgent() bool {
	switch e {
	case EntityGnd, EntityIdref, EntityRero:
		return true
	}
	return false
}

// PidstoreTable returns the persistent identifier table for the entity.
func (e Entity) PidstoreTable() string {
	return string(e) + "_pidstore"
}

// MetadataTable returns the metadata table for the entity.
func (e Entity) MetadataTable() string {
	return string(e) + "_metadata"
}

// IndexName returns the search index for the entity.
func (e Entity) IndexName() string {
	if e.IsAgent() {
		return "agents_" + string(e)
	}
	return string(e)
}

// ViafPidField returns the VIAF cross-reference field carrying this
// entity's pid, e.g. "gnd_pid".
func (e Entity) ViafPidField() string {
	return string(e) + "_pid"
}
