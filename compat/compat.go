// Package compat verifies that an index backend honors the accessor
// contract: update application, filtering precision, ordering and the
// consistency-check timing rules. It is written once against the contract
// interfaces and runs against every backend implementation, so backend
// authors can self-certify without bespoke test code.
package compat

import (
	"fmt"
	"slices"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/values"
)

// Harness drives one accessor through the contract. It owns the
// committed-value shadow map: entity id to last-committed value vector,
// updated in lockstep with every applied entry update and consulted only by
// the filtering step. It never backs production read paths.
//
// Updates and queries through a harness must be serialized by the caller;
// the shadow map is only trustworthy without in-flight update batches.
type Harness struct {
	accessor  index.Accessor
	committed map[uint64][]values.Value
}

// NewHarness creates a harness around an online accessor.
func NewHarness(accessor index.Accessor) *Harness {
	return &Harness{
		accessor:  accessor,
		committed: make(map[uint64][]values.Value),
	}
}

// UpdateAndCommit applies one batch of updates through a single updater and
// keeps the shadow map consistent entry by entry. The shadow update happens
// synchronously after each processed entry, exactly once per entry.
func (h *Harness) UpdateAndCommit(updates []index.EntryUpdate) error {
	updater, err := h.accessor.NewUpdater(index.SessionOnline)
	if err != nil {
		return err
	}

	var processErr error
	for _, update := range updates {
		if err := updater.Process(update); err != nil {
			// The offending entry left no trace; the shadow map must not
			// record it either.
			processErr = err
			break
		}
		switch update.Mode {
		case index.Added, index.Changed:
			h.committed[update.EntityID] = append([]values.Value(nil), update.Values...)
		case index.Removed:
			delete(h.committed, update.EntityID)
		default:
			// Unreachable when the backend rejected the mode above; kept as
			// a second line of defense for shadow-map correctness.
			processErr = fmt.Errorf("%w: %s", index.ErrUnknownUpdateMode, update.Mode)
		}
		if processErr != nil {
			break
		}
	}

	if err := updater.Close(); err != nil && processErr == nil {
		processErr = err
	}
	return processErr
}

// Committed returns the shadow map's value vector for one entity.
func (h *Harness) Committed(entityID uint64) ([]values.Value, bool) {
	vals, ok := h.committed[entityID]
	return vals, ok
}

// Query runs an unordered read and applies the precision-tolerance
// filtering policy, returning matching entity ids in ascending id order.
func (h *Harness) Query(queries ...index.Query) ([]uint64, error) {
	reader := h.accessor.NewReader()
	defer reader.Close()

	var client index.SimpleValueClient
	if err := reader.Query(&client, index.OrderNone, false, queries...); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, client.Len())
	for client.Next() {
		if h.passesFilter(client.EntityID(), queries) {
			ids = append(ids, client.EntityID())
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// passesFilter runs an entity's committed values through the predicates,
// but only for the categories where the backend is allowed to be loose:
// geometry always, numbers only when the backend declares less than full
// precision. Filtering any other category would mask real index bugs, so
// those hits are trusted from the backend directly.
func (h *Harness) passesFilter(entityID uint64, queries []index.Query) bool {
	if len(queries) == 1 {
		if _, ok := queries[0].(index.ExistsQuery); ok {
			return true
		}
	}

	vals := h.committed[entityID]
	lossyNumbers := !h.accessor.Capability().SupportsFullNumberPrecision()
	for i, q := range queries {
		cat := q.Category()
		if cat.IsGeometry() || (cat == values.CategoryNumber && lossyNumbers) {
			if i >= len(vals) || !q.AcceptsValue(vals[i]) {
				return false
			}
		}
	}
	return true
}

// OrderCapability negotiates ordering for the given predicates through the
// accessor's capability.
func (h *Harness) OrderCapability(queries ...index.Query) []index.Order {
	return h.accessor.Capability().OrderCapability(index.Categories(queries...)...)
}

// QueryOrdered runs an ordered read and returns the value vectors in
// encounter order. The caller must have negotiated the order first.
func (h *Harness) QueryOrdered(order index.Order, queries ...index.Query) ([][]values.Value, error) {
	reader := h.accessor.NewReader()
	defer reader.Close()

	var client index.SimpleValueClient
	if err := reader.Query(&client, order, true, queries...); err != nil {
		return nil, err
	}

	vectors := make([][]values.Value, 0, client.Len())
	for client.Next() {
		vectors = append(vectors, client.Values())
	}
	return vectors, nil
}

// CheckOrdered verifies a sequence of value vectors is pairwise ordered:
// non-decreasing for ascending, non-increasing for descending, under the
// component-wise lexicographic comparator. Ties may come in any relative
// order. Zero or one vectors are vacuously ordered.
func CheckOrdered(vectors [][]values.Value, order index.Order) error {
	for i := 1; i < len(vectors); i++ {
		c := values.CompareSlices(vectors[i-1], vectors[i])
		switch order {
		case index.OrderAscending:
			if c > 0 {
				return fmt.Errorf("ascending order violated at position %d", i)
			}
		case index.OrderDescending:
			if c < 0 {
				return fmt.Errorf("descending order violated at position %d", i)
			}
		default:
			return fmt.Errorf("cannot check order %s", order)
		}
	}
	return nil
}

// VerifyOrder negotiates, runs and checks one ordered read. When the
// backend declares no support for the order it is not requested and nil is
// returned: unordered backends are conformant by refusal, and readers must
// reject what they did not declare.
func (h *Harness) VerifyOrder(order index.Order, queries ...index.Query) error {
	if !slices.Contains(h.OrderCapability(queries...), order) {
		// Not declared. The reader must reject the request rather than
		// silently downgrade.
		reader := h.accessor.NewReader()
		defer reader.Close()

		var client index.SimpleValueClient
		err := reader.Query(&client, order, true, queries...)
		if err == nil {
			return fmt.Errorf("backend served %s without declaring the capability", order)
		}
		return nil
	}

	vectors, err := h.QueryOrdered(order, queries...)
	if err != nil {
		return err
	}
	return CheckOrdered(vectors, order)
}

// expected derives the exact matching entity set from the shadow map.
func (h *Harness) expected(queries ...index.Query) []uint64 {
	var ids []uint64
	for entityID, vals := range h.committed {
		if len(queries) > len(vals) {
			continue
		}
		ok := true
		for i, q := range queries {
			if !q.AcceptsValue(vals[i]) {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, entityID)
		}
	}
	slices.Sort(ids)
	return ids
}

// VerifyQuery runs one filtered query and compares the result against the
// shadow map's exact expectation.
func (h *Harness) VerifyQuery(queries ...index.Query) error {
	got, err := h.Query(queries...)
	if err != nil {
		return err
	}
	want := h.expected(queries...)
	if !slices.Equal(got, want) {
		return fmt.Errorf("query %v: got entities %v, want %v", queries, got, want)
	}
	return nil
}
