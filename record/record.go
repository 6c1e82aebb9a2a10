// Package record implements the on-disk property model of the storage
// engine: fixed-size property records linked into per-entity chains, the
// block decoder that turns records back into typed values, and the pooled
// property cursor that streams a whole chain.
package record

import (
	"math"

	"github.com/hupe1980/graphstore/values"
)

// RecordID identifies one property record in a chain store.
type RecordID uint64

// NoNextRecord is the chain terminator sentinel.
const NoNextRecord RecordID = math.MaxUint64

// MaxBlocksPerRecord is the fixed block capacity of one property record.
const MaxBlocksPerRecord = 4

// InlineLimit is the largest encoded size a string or array value may have
// and still be stored inline in its block. Larger values go to the overflow
// store and the block keeps a weak reference.
const InlineLimit = 24

// LoadMode controls how a record cursor loads records.
type LoadMode uint8

const (
	// LoadNormal loads only records that are in use.
	LoadNormal LoadMode = iota
	// LoadForce loads a record even if it is not in use. Required for
	// skip-tolerant chain traversal under concurrent deletes.
	LoadForce
)

// OverflowKind identifies which overflow store a block reference points into.
type OverflowKind uint8

const (
	// OverflowNone means the block's value is stored inline.
	OverflowNone OverflowKind = iota
	// OverflowString references the string overflow store.
	OverflowString
	// OverflowArray references the array overflow store.
	OverflowArray
)

// PropertyBlock is one encoded property within a record: a key id plus
// either an inline value or a weak reference into an overflow store.
type PropertyBlock struct {
	KeyID      int
	Inline     values.Value
	Overflow   OverflowKind
	OverflowID uint64
}

// PropertyRecord is one fixed-capacity unit of a property chain.
//
// A record reachable from a live chain head may be InUse == false
// transiently when another thread deleted it after traversal started.
type PropertyRecord struct {
	ID       RecordID
	InUse    bool
	NextProp RecordID
	Blocks   []PropertyBlock
}

// RecordCursor walks the records of one chain.
//
// Next advances to the next record and reports whether it is in use; Get is
// valid after every Next call regardless of the result, so callers can
// follow NextProp through records that were concurrently deleted.
type RecordCursor interface {
	Acquire(id RecordID, mode LoadMode)
	Next() bool
	Get() *PropertyRecord
	Close()
}

// ChainStore provides record cursors over persisted property chains.
type ChainStore interface {
	NewRecordCursor() RecordCursor
}

// Lock is a caller-supplied lock bound to one cursor traversal. The cursor
// guarantees exactly one Release per Init/Close cycle; acquisition ordering
// is the lock manager's concern.
type Lock interface {
	Release()
}

// LockFunc adapts a plain function to the Lock interface.
type LockFunc func()

// Release implements Lock.
func (f LockFunc) Release() { f() }

type noLock struct{}

func (noLock) Release() {}

// NoLock is a Lock that does nothing on release.
var NoLock Lock = noLock{}
