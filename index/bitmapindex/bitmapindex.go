// Package bitmapindex implements the index accessor contract with roaring
// posting lists keyed by value representation.
//
// The backend declares no ordering support and no full numeric precision:
// numbers are narrowed to float32 before keying and points are keyed by
// integer grid cell, so NUMBER and GEOMETRY candidates may be loose and
// callers post-filter them through the query predicates.
package bitmapindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/values"
)

// Compile-time check that Accessor satisfies the contract.
var _ index.Accessor = (*Accessor)(nil)

// gridCell is the edge length of the geometry key grid.
const gridCell = 1.0

// ErrEntityIDOverflow rejects updates whose entity id does not fit the
// 32-bit posting lists.
var ErrEntityIDOverflow = errors.New("bitmap index: entity id exceeds 32-bit posting range")

// Accessor is a roaring-bitmap backed index accessor.
//
// Posting lists hold 32-bit ids; updates for entity ids beyond uint32 are
// rejected with ErrEntityIDOverflow.
type Accessor struct {
	mu       sync.RWMutex
	postings map[string]*roaring.Bitmap
	byEntity map[uint64][]values.Value
	state    index.State
}

// New creates an online accessor with no data.
func New() *Accessor {
	return &Accessor{
		postings: make(map[string]*roaring.Bitmap),
		byEntity: make(map[uint64][]values.Value),
		state:    index.StateOnline,
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

// OrderCapability reports no ordering support: posting lists have no
// cross-key order.
func (capability) OrderCapability(categories ...values.Category) []index.Order {
	return nil
}

// SupportsFullNumberPrecision implements index.Capability. Numbers are
// narrowed to float32 before keying.
func (capability) SupportsFullNumberPrecision() bool { return false }

// lossyKey produces the posting key of one value position. Numbers narrow
// to float32, points snap to their grid cell, arrays key element-wise.
func lossyKey(v values.Value) string {
	switch {
	case v.IsNumber():
		f, _ := v.AsFloat64()
		return "n:" + strconv.FormatUint(uint64(math.Float32bits(float32(f))), 16)
	case v.Kind == values.KindPoint:
		return "g:" + strconv.FormatInt(int64(math.Floor(v.P[0]/gridCell)), 10) +
			"," + strconv.FormatInt(int64(math.Floor(v.P[1]/gridCell)), 10)
	case v.Kind == values.KindArray:
		key := "a:"
		for _, elem := range v.A {
			key += lossyKey(elem) + "\x1f"
		}
		return key
	default:
		return v.Key()
	}
}

func postingKey(position int, v values.Value) string {
	return strconv.Itoa(position) + "\x00" + lossyKey(v)
}

// NewReader implements index.Accessor.
func (a *Accessor) NewReader() index.Reader { return &reader{accessor: a} }

type reader struct {
	accessor *Accessor
}

// Query intersects per-predicate candidate bitmaps. Requesting any order is
// rejected: the capability declares none, and silently unordered results
// are forbidden.
func (r *reader) Query(client index.ValueClient, order index.Order, needsValues bool, queries ...index.Query) error {
	if order != index.OrderNone {
		return fmt.Errorf("%w: %s not supported by bitmap index", index.ErrUnsupportedOrder, order)
	}

	a := r.accessor
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != index.StateOnline {
		return index.ErrNotOnline
	}

	var result *roaring.Bitmap
	for i, q := range queries {
		candidates := a.candidatesLocked(i, q)
		if result == nil {
			result = candidates
		} else {
			result.And(candidates)
		}
		if result.IsEmpty() {
			return nil
		}
	}
	if result == nil {
		return nil
	}

	it := result.Iterator()
	for it.HasNext() {
		entityID := uint64(it.Next())
		// Non-lossy categories must come back exact; evaluate the stored
		// value against the predicate instead of trusting the posting key.
		if !a.exactEnoughLocked(entityID, queries) {
			continue
		}
		if needsValues {
			client.Accept(entityID, a.byEntity[entityID])
		} else {
			client.Accept(entityID, nil)
		}
	}
	return nil
}

func (r *reader) Close() error { return nil }

// candidatesLocked returns the candidate set for one predicate position.
// The set may contain false positives for NUMBER and GEOMETRY values, which
// the declared capability obliges callers to filter.
func (a *Accessor) candidatesLocked(position int, q index.Query) *roaring.Bitmap {
	result := roaring.New()

	switch pq := q.(type) {
	case index.ExactQuery:
		if bm, ok := a.postings[postingKey(position, pq.Value())]; ok {
			result.Or(bm)
		}
	default:
		// Range, existence and string predicates scan the committed sets;
		// posting keys carry no order to seek by.
		for entityID, vals := range a.byEntity {
			if position >= len(vals) {
				continue
			}
			if a.looselyAccepts(q, vals[position]) {
				result.Add(uint32(entityID))
			}
		}
	}
	return result
}

// looselyAccepts mimics the lossy stored form when testing predicates over
// NUMBER and GEOMETRY values, so that candidates behave as if they were
// matched against the narrowed keys.
func (a *Accessor) looselyAccepts(q index.Query, v values.Value) bool {
	if v.IsNumber() {
		f, _ := v.AsFloat64()
		narrowed := values.Float(float64(float32(f)))
		return q.AcceptsValue(narrowed) || q.AcceptsValue(v)
	}
	if v.Kind == values.KindPoint {
		// Grid-cell candidates: accept when any corner of the cell passes.
		x := math.Floor(v.P[0]/gridCell) * gridCell
		y := math.Floor(v.P[1]/gridCell) * gridCell
		for _, p := range [][2]float64{{x, y}, {x + gridCell, y}, {x, y + gridCell}, {x + gridCell, y + gridCell}} {
			if q.AcceptsValue(values.Point(p[0], p[1])) {
				return true
			}
		}
		return q.AcceptsValue(v)
	}
	return q.AcceptsValue(v)
}

// exactEnoughLocked enforces the filtering policy from the backend's side:
// TEXT, BOOLEAN and TEMPORAL hits must be exact before they leave the
// backend, while NUMBER and GEOMETRY are allowed out loose.
func (a *Accessor) exactEnoughLocked(entityID uint64, queries []index.Query) bool {
	vals, ok := a.byEntity[entityID]
	if !ok || len(queries) > len(vals) {
		return false
	}
	for i, q := range queries {
		cat := q.Category()
		if cat == values.CategoryNumber || cat.IsGeometry() || cat == values.CategoryNothing {
			continue
		}
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
	return &updater{accessor: a}, nil
}

type updater struct {
	accessor *Accessor
	closed   bool
}

// Process applies one entry update. Unknown modes and out-of-range entity
// ids reject the entry alone and leave both posting lists and the committed
// map untouched.
func (u *updater) Process(update index.EntryUpdate) error {
	if u.closed {
		return errors.New("updater already closed")
	}
	if update.EntityID > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrEntityIDOverflow, update.EntityID)
	}

	a := u.accessor
	a.mu.Lock()
	defer a.mu.Unlock()

	switch update.Mode {
	case index.Added, index.Changed:
		a.removeLocked(update.EntityID)
		vals := append([]values.Value(nil), update.Values...)
		for i, v := range vals {
			key := postingKey(i, v)
			bm, ok := a.postings[key]
			if !ok {
				bm = roaring.New()
				a.postings[key] = bm
			}
			bm.Add(uint32(update.EntityID))
		}
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

func (a *Accessor) removeLocked(entityID uint64) {
	old, ok := a.byEntity[entityID]
	if !ok {
		return
	}
	for i, v := range old {
		key := postingKey(i, v)
		if bm, ok := a.postings[key]; ok {
			bm.Remove(uint32(entityID))
			if bm.IsEmpty() {
				delete(a.postings, key)
			}
		}
	}
	delete(a.byEntity, entityID)
}

// ConsistencyCheck verifies that posting lists and the committed map agree
// in both directions. Postings are scanned concurrently. Valid only while
// the accessor is online.
func (a *Accessor) ConsistencyCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != index.StateOnline {
		return index.ErrNotOnline
	}

	g, ctx := errgroup.WithContext(ctx)

	// Forward: every committed value appears in its posting list.
	g.Go(func() error {
		for entityID, vals := range a.byEntity {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i, v := range vals {
				bm, ok := a.postings[postingKey(i, v)]
				if !ok || !bm.Contains(uint32(entityID)) {
					return fmt.Errorf("bitmap index: entity %d missing from posting %q", entityID, postingKey(i, v))
				}
			}
		}
		return nil
	})

	// Reverse: every posting member has a committed value keying there.
	g.Go(func() error {
		for key, bm := range a.postings {
			if err := ctx.Err(); err != nil {
				return err
			}
			it := bm.Iterator()
			for it.HasNext() {
				entityID := uint64(it.Next())
				vals, ok := a.byEntity[entityID]
				if !ok {
					return fmt.Errorf("bitmap index: posting %q references unknown entity %d", key, entityID)
				}
				if !entityKeysContain(vals, key) {
					return fmt.Errorf("bitmap index: posting %q disagrees with entity %d", key, entityID)
				}
			}
		}
		return nil
	})

	return g.Wait()
}

func entityKeysContain(vals []values.Value, key string) bool {
	for i, v := range vals {
		if postingKey(i, v) == key {
			return true
		}
	}
	return false
}

// Drop implements index.Accessor: destroys all index state. Terminal; a
// dropped or closed accessor stays in its terminal state.
func (a *Accessor) Drop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == index.StateOnline || a.state == index.StateCreated {
		a.postings = make(map[string]*roaring.Bitmap)
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
