// Package btreeindex implements the index accessor contract on top of an
// in-memory B-tree. It stores full-precision values and can serve reads in
// ascending or descending value order for every category.
package btreeindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/btree"
	"golang.org/x/time/rate"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/values"
)

// Compile-time check that Accessor satisfies the contract.
var _ index.Accessor = (*Accessor)(nil)

const btreeDegree = 32

// checkBatch is how many entries a consistency scan processes between
// limiter waits.
const checkBatch = 128

type entry struct {
	entityID uint64
	vals     []values.Value
}

func entryLess(a, b entry) bool {
	if c := values.CompareSlices(a.vals, b.vals); c != 0 {
		return c < 0
	}
	return a.entityID < b.entityID
}

// Options configures a B-tree accessor.
type Options struct {
	// Unique makes update application reject value vectors already held by
	// a different entity with a ConflictError.
	Unique bool

	// CheckRate throttles consistency scans. Zero means unlimited.
	CheckRate rate.Limit
}

// Option mutates Options.
type Option func(*Options)

// WithUnique enables uniqueness enforcement.
func WithUnique() Option {
	return func(o *Options) { o.Unique = true }
}

// WithCheckRate limits consistency scans to the given entries per second.
func WithCheckRate(r rate.Limit) Option {
	return func(o *Options) { o.CheckRate = r }
}

// Accessor is a B-tree backed index accessor.
type Accessor struct {
	mu       sync.RWMutex
	tree     *btree.BTreeG[entry]
	byEntity map[uint64][]values.Value
	state    index.State
	opts     Options
}

// New creates an online accessor with no data.
func New(optFns ...Option) *Accessor {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Accessor{
		tree:     btree.NewG(btreeDegree, entryLess),
		byEntity: make(map[uint64][]values.Value),
		state:    index.StateOnline,
		opts:     opts,
	}
}

// State returns the accessor's lifecycle state.
func (a *Accessor) State() index.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Capability implements index.Accessor.
func (a *Accessor) Capability() index.Capability { return capability{} }

type capability struct{}

// OrderCapability reports ascending and descending support for any
// category combination; the tree's comparator is total.
func (capability) OrderCapability(categories ...values.Category) []index.Order {
	return []index.Order{index.OrderAscending, index.OrderDescending}
}

// SupportsFullNumberPrecision implements index.Capability.
func (capability) SupportsFullNumberPrecision() bool { return true }

// NewReader implements index.Accessor.
func (a *Accessor) NewReader() index.Reader { return &reader{accessor: a} }

type reader struct {
	accessor *Accessor
}

// Query serves unordered, ascending and descending reads; the tree
// comparator is total. Any other order value is rejected.
func (r *reader) Query(client index.ValueClient, order index.Order, needsValues bool, queries ...index.Query) error {
	a := r.accessor
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != index.StateOnline {
		return index.ErrNotOnline
	}

	visit := func(e entry) bool {
		if matches(e.vals, queries) {
			if needsValues {
				client.Accept(e.entityID, e.vals)
			} else {
				client.Accept(e.entityID, nil)
			}
		}
		return true
	}

	switch order {
	case index.OrderNone, index.OrderAscending:
		a.tree.Ascend(visit)
	case index.OrderDescending:
		a.tree.Descend(visit)
	default:
		return fmt.Errorf("%w: order %d", index.ErrUnsupportedOrder, order)
	}
	return nil
}

func (r *reader) Close() error { return nil }

// matches applies queries positionally: query i tests value i.
func matches(vals []values.Value, queries []index.Query) bool {
	if len(queries) > len(vals) {
		return false
	}
	for i, q := range queries {
		if !q.AcceptsValue(vals[i]) {
			return false
		}
	}
	return true
}

// NewUpdater implements index.Accessor.
func (a *Accessor) NewUpdater(mode index.SessionMode) (index.Updater, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != index.StateOnline {
		return nil, index.ErrNotOnline
	}
	return &updater{accessor: a, mode: mode}, nil
}

type updater struct {
	accessor *Accessor
	mode     index.SessionMode
	closed   bool
}

// Process applies one entry update. An unknown mode rejects the entry alone
// and leaves index state untouched; earlier entries of the batch stand.
func (u *updater) Process(update index.EntryUpdate) error {
	if u.closed {
		return errors.New("updater already closed")
	}

	a := u.accessor
	a.mu.Lock()
	defer a.mu.Unlock()

	switch update.Mode {
	case index.Added, index.Changed:
		if a.opts.Unique && u.mode != index.SessionRecovery {
			if other, ok := a.holderOf(update.Values); ok && other != update.EntityID {
				return index.NewConflictError(update.EntityID, other, update.Values)
			}
		}
		a.removeLocked(update.EntityID)
		vals := append([]values.Value(nil), update.Values...)
		a.tree.ReplaceOrInsert(entry{entityID: update.EntityID, vals: vals})
		a.byEntity[update.EntityID] = vals
	case index.Removed:
		a.removeLocked(update.EntityID)
	default:
		return index.ErrUnknownUpdateMode
	}
	return nil
}

// Close commits the batch.
func (u *updater) Close() error {
	u.closed = true
	return nil
}

// holderOf returns the entity currently holding the exact value vector.
func (a *Accessor) holderOf(vals []values.Value) (uint64, bool) {
	var (
		holder uint64
		found  bool
	)
	a.tree.AscendGreaterOrEqual(entry{entityID: 0, vals: vals}, func(e entry) bool {
		if values.CompareSlices(e.vals, vals) != 0 {
			return false
		}
		holder = e.entityID
		found = true
		return false
	})
	return holder, found
}

func (a *Accessor) removeLocked(entityID uint64) {
	old, ok := a.byEntity[entityID]
	if !ok {
		return
	}
	a.tree.Delete(entry{entityID: entityID, vals: old})
	delete(a.byEntity, entityID)
}

// ConsistencyCheck scans the tree verifying key order, the agreement
// between tree entries and the per-entity map, and that no entity appears
// twice. Valid only while the accessor is online.
func (a *Accessor) ConsistencyCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != index.StateOnline {
		return index.ErrNotOnline
	}

	limiter := rate.NewLimiter(rate.Inf, checkBatch)
	if a.opts.CheckRate > 0 {
		limiter = rate.NewLimiter(a.opts.CheckRate, checkBatch)
	}

	seen := bitset.New(uint(len(a.byEntity)))
	var (
		prev     *entry
		count    int
		scanErr  error
		sinceTic int
	)
	a.tree.Ascend(func(e entry) bool {
		if ctx.Err() != nil {
			scanErr = ctx.Err()
			return false
		}
		sinceTic++
		if sinceTic >= checkBatch {
			sinceTic = 0
			if err := limiter.WaitN(ctx, checkBatch); err != nil {
				scanErr = err
				return false
			}
		}

		if prev != nil && !entryLess(*prev, e) {
			scanErr = errors.New("btree index: entries out of order")
			return false
		}
		if seen.Test(uint(e.entityID)) {
			scanErr = errors.New("btree index: duplicate entity in tree")
			return false
		}
		seen.Set(uint(e.entityID))

		committed, ok := a.byEntity[e.entityID]
		if !ok || values.CompareSlices(committed, e.vals) != 0 {
			scanErr = errors.New("btree index: tree entry disagrees with entity map")
			return false
		}

		prev = &entry{entityID: e.entityID, vals: e.vals}
		count++
		return true
	})
	if scanErr != nil {
		return scanErr
	}

	if count != len(a.byEntity) {
		return errors.New("btree index: entity map size disagrees with tree size")
	}
	return nil
}

// Drop implements index.Accessor: destroys all index state. Terminal; a
// dropped or closed accessor stays in its terminal state.
func (a *Accessor) Drop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == index.StateOnline || a.state == index.StateCreated {
		a.tree.Clear(false)
		a.byEntity = make(map[uint64][]values.Value)
		a.state = index.StateDropped
	}
	return nil
}

// Close implements index.Accessor. Terminal.
func (a *Accessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == index.StateOnline || a.state == index.StateCreated {
		a.state = index.StateClosed
	}
	return nil
}
