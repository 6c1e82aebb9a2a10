package index

import (
	"github.com/hupe1980/graphstore/values"
)

// UpdateMode describes the kind of mutation an entry update carries.
type UpdateMode uint8

const (
	// Added installs the update's values as the entity's indexed value-set.
	Added UpdateMode = iota
	// Changed replaces the entity's indexed value-set.
	Changed
	// Removed deletes the entity's indexed value-set.
	Removed
)

// String returns a string representation of the UpdateMode.
func (m UpdateMode) String() string {
	switch m {
	case Added:
		return "ADDED"
	case Changed:
		return "CHANGED"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// EntryUpdate describes one mutation to the indexed value-set of an entity.
// At most one value-set per entity exists in committed index state.
type EntryUpdate struct {
	EntityID uint64
	Mode     UpdateMode
	Values   []values.Value
}

// Add creates an Added update.
func Add(entityID uint64, vals ...values.Value) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: Added, Values: vals}
}

// Change creates a Changed update.
func Change(entityID uint64, vals ...values.Value) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: Changed, Values: vals}
}

// Remove creates a Removed update.
func Remove(entityID uint64) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: Removed}
}

// SimpleValueClient is a buffered ValueClient: it records hits in encounter
// order and replays them through a cursor-style API.
type SimpleValueClient struct {
	entityIDs []uint64
	values    [][]values.Value
	pos       int
}

// Accept implements ValueClient.
func (c *SimpleValueClient) Accept(entityID uint64, vals []values.Value) {
	c.entityIDs = append(c.entityIDs, entityID)
	c.values = append(c.values, vals)
}

// Next advances to the next recorded hit.
func (c *SimpleValueClient) Next() bool {
	if c.pos >= len(c.entityIDs) {
		return false
	}
	c.pos++
	return true
}

// EntityID returns the current hit's entity id.
func (c *SimpleValueClient) EntityID() uint64 { return c.entityIDs[c.pos-1] }

// Values returns the current hit's value vector, or nil if the backend did
// not supply values.
func (c *SimpleValueClient) Values() []values.Value { return c.values[c.pos-1] }

// Len returns the number of recorded hits.
func (c *SimpleValueClient) Len() int { return len(c.entityIDs) }

// Reset rewinds the client and drops recorded hits.
func (c *SimpleValueClient) Reset() {
	c.entityIDs = c.entityIDs[:0]
	c.values = c.values[:0]
	c.pos = 0
}
