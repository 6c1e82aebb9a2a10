// Package index defines the contract every secondary-index backend must
// implement: accessors, readers, updaters, query predicates and the
// capability negotiation for ordering and numeric precision.
//
// The compat package verifies any implementation of this contract.
package index

import (
	"context"

	"github.com/hupe1980/graphstore/values"
)

// Order is the requested or supported result ordering of a read.
type Order uint8

const (
	// OrderNone requests no particular order.
	OrderNone Order = iota
	// OrderAscending requests non-decreasing value vectors.
	OrderAscending
	// OrderDescending requests non-increasing value vectors.
	OrderDescending
)

// String returns a string representation of the Order.
func (o Order) String() string {
	switch o {
	case OrderAscending:
		return "ASCENDING"
	case OrderDescending:
		return "DESCENDING"
	default:
		return "NONE"
	}
}

// SessionMode is the mode an updater session is opened in.
type SessionMode uint8

const (
	// SessionOnline is a regular transactional update session.
	SessionOnline SessionMode = iota
	// SessionRecovery replays updates during recovery; backends may relax
	// duplicate checks in this mode.
	SessionRecovery
)

// State is the lifecycle state of an accessor.
type State uint8

const (
	// StateCreated is an open accessor with no data yet.
	StateCreated State = iota
	// StateOnline is an accessor serving reads and writes.
	StateOnline
	// StateDropped is terminal: persisted state destroyed.
	StateDropped
	// StateClosed is terminal: resources released.
	StateClosed
)

// Capability reports what a backend supports, queried before issuing
// ordered reads and before deciding on result post-filtering.
type Capability interface {
	// OrderCapability returns the orderings the backend can provide for a
	// query over the given value categories. An empty slice means results
	// come back in backend-defined order only.
	OrderCapability(categories ...values.Category) []Order

	// SupportsFullNumberPrecision reports whether stored number values
	// preserve full precision. When false, callers must post-filter NUMBER
	// results through the query predicates.
	SupportsFullNumberPrecision() bool
}

// ValueClient collects query hits. If the backend stores values it passes
// them along, otherwise vals is nil.
type ValueClient interface {
	Accept(entityID uint64, vals []values.Value)
}

// Reader is one read cursor over an accessor. Many readers may coexist;
// a reader is cheap to open and must be closed.
type Reader interface {
	// Query populates client with entities matching all queries, honoring
	// order only if the accessor's Capability reported support for it;
	// otherwise ErrUnsupportedOrder is returned, never silently unordered
	// results. needsValues asks the backend to include stored values.
	Query(client ValueClient, order Order, needsValues bool, queries ...Query) error

	Close() error
}

// Updater applies one batch of entry updates. The batch commits at Close;
// application is order-preserving, so later updates to the same entity
// within a batch supersede earlier ones.
type Updater interface {
	Process(update EntryUpdate) error
	Close() error
}

// Accessor is the open handle through which one index is read and written.
//
// Lifecycle: Created -> Online -> Dropped | Closed. ConsistencyCheck is
// valid only while Online; it must be invocable at any time the accessor is
// open, empty or not.
type Accessor interface {
	NewReader() Reader
	NewUpdater(mode SessionMode) (Updater, error)
	Capability() Capability

	// ConsistencyCheck runs a structural integrity scan over the accessor's
	// persisted state.
	ConsistencyCheck(ctx context.Context) error

	// Drop destroys all persisted index state. Terminal.
	Drop() error

	// Close releases accessor resources. Terminal.
	Close() error
}
