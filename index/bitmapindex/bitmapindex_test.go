package bitmapindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/values"
)

func apply(t *testing.T, a *Accessor, updates ...index.EntryUpdate) {
	t.Helper()
	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)
	for _, update := range updates {
		require.NoError(t, u.Process(update))
	}
	require.NoError(t, u.Close())
}

func queryIDs(t *testing.T, a *Accessor, queries ...index.Query) []uint64 {
	t.Helper()
	r := a.NewReader()
	defer r.Close()

	var client index.SimpleValueClient
	require.NoError(t, r.Query(&client, index.OrderNone, false, queries...))

	var ids []uint64
	for client.Next() {
		ids = append(ids, client.EntityID())
	}
	return ids
}

func TestAccessor(t *testing.T) {
	t.Run("ExactQuery", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.String("red")),
			index.Add(2, values.String("blue")),
			index.Add(3, values.String("red")),
		)
		assert.ElementsMatch(t, []uint64{1, 3}, queryIDs(t, a, index.Exact(0, values.String("red"))))
	})

	t.Run("RangeQuery", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.Int(5)),
			index.Add(2, values.Int(15)),
			index.Add(3, values.Int(25)),
		)
		ids := queryIDs(t, a, index.Range(0, values.Int(10), values.Int(20), true, true))
		assert.ElementsMatch(t, []uint64{2}, ids)
	})

	t.Run("CompositeIntersection", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.String("smith"), values.Bool(true)),
			index.Add(2, values.String("smith"), values.Bool(false)),
			index.Add(3, values.String("jones"), values.Bool(true)),
		)
		ids := queryIDs(t, a,
			index.Exact(0, values.String("smith")),
			index.Exact(1, values.Bool(true)))
		assert.ElementsMatch(t, []uint64{1}, ids)
	})

	t.Run("ChangedAndRemoved", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.String("red")),
			index.Change(1, values.String("blue")),
		)
		assert.Empty(t, queryIDs(t, a, index.Exact(0, values.String("red"))))
		assert.ElementsMatch(t, []uint64{1}, queryIDs(t, a, index.Exact(0, values.String("blue"))))

		apply(t, a, index.Remove(1))
		assert.Empty(t, queryIDs(t, a, index.Exists(0)))
	})
}

func TestOrderedReadsRejected(t *testing.T) {
	a := New()
	apply(t, a, index.Add(1, values.Int(1)))

	require.Empty(t, a.Capability().OrderCapability(values.CategoryNumber))

	r := a.NewReader()
	defer r.Close()

	var client index.SimpleValueClient
	err := r.Query(&client, index.OrderAscending, false, index.Exists(0))
	assert.ErrorIs(t, err, index.ErrUnsupportedOrder)
	assert.Zero(t, client.Len())
}

func TestLossyNumberCandidates(t *testing.T) {
	// 1<<24 and 1<<24 + 1 collide after float32 narrowing, so an exact
	// query for one returns both: a declared false positive the caller
	// filters through the predicate.
	a := New()
	require.False(t, a.Capability().SupportsFullNumberPrecision())

	apply(t, a,
		index.Add(1, values.Int(1<<24)),
		index.Add(2, values.Int(1<<24+1)),
	)

	ids := queryIDs(t, a, index.Exact(0, values.Int(1<<24)))
	assert.ElementsMatch(t, []uint64{1, 2}, ids)
}

func TestLossyGeometryCandidates(t *testing.T) {
	// Both points fall into grid cell (0,0); exact query for one returns
	// both candidates.
	a := New()
	apply(t, a,
		index.Add(1, values.Point(0.5, 0.5)),
		index.Add(2, values.Point(0.7, 0.7)),
		index.Add(3, values.Point(5.0, 5.0)),
	)

	ids := queryIDs(t, a, index.Exact(0, values.Point(0.5, 0.5)))
	assert.ElementsMatch(t, []uint64{1, 2}, ids)
}

func TestTextResultsAreExact(t *testing.T) {
	a := New()
	apply(t, a,
		index.Add(1, values.String("graph")),
		index.Add(2, values.String("grape")),
	)

	// Text hits leave the backend exact: no false positives to filter.
	assert.ElementsMatch(t, []uint64{1}, queryIDs(t, a, index.Exact(0, values.String("graph"))))
	assert.ElementsMatch(t, []uint64{1, 2}, queryIDs(t, a, index.StringPrefix(0, "gra")))
	assert.ElementsMatch(t, []uint64{2}, queryIDs(t, a, index.StringSuffix(0, "pe")))
}

func TestEntityIDOverflowRejected(t *testing.T) {
	a := New()
	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)

	require.NoError(t, u.Process(index.Add(7, values.String("x"))))

	// Ids beyond uint32 would alias their low 32 bits in the posting lists;
	// the entry is rejected outright instead.
	err = u.Process(index.Add(1<<32+7, values.String("x")))
	require.ErrorIs(t, err, ErrEntityIDOverflow)
	require.NoError(t, u.Close())

	// The prior entry stands and the index stays internally consistent.
	assert.ElementsMatch(t, []uint64{7}, queryIDs(t, a, index.Exists(0)))
	assert.NoError(t, a.ConsistencyCheck(context.Background()))
}

func TestUnknownUpdateMode(t *testing.T) {
	a := New()
	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)

	require.NoError(t, u.Process(index.Add(1, values.Int(10))))

	bad := index.EntryUpdate{EntityID: 2, Mode: index.UpdateMode(200)}
	require.ErrorIs(t, u.Process(bad), index.ErrUnknownUpdateMode)
	require.NoError(t, u.Close())

	assert.ElementsMatch(t, []uint64{1}, queryIDs(t, a, index.Exists(0)))
	assert.NoError(t, a.ConsistencyCheck(context.Background()))
}

func TestConsistencyCheck(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.Int(1), values.String("one")),
			index.Add(2, values.Int(2), values.String("two")),
		)
		assert.NoError(t, a.ConsistencyCheck(context.Background()))
	})

	t.Run("DetectsDanglingPosting", func(t *testing.T) {
		a := New()
		apply(t, a, index.Add(1, values.String("x")))

		// Corrupt: committed map entry vanishes behind the posting's back.
		a.mu.Lock()
		delete(a.byEntity, 1)
		a.mu.Unlock()

		assert.Error(t, a.ConsistencyCheck(context.Background()))
	})

	t.Run("NotOnlineAfterDrop", func(t *testing.T) {
		a := New()
		require.NoError(t, a.Drop())
		assert.ErrorIs(t, a.ConsistencyCheck(context.Background()), index.ErrNotOnline)
	})
}

func TestLifecycle(t *testing.T) {
	a := New()
	assert.Equal(t, index.StateOnline, a.State())
	require.NoError(t, a.Close())
	assert.Equal(t, index.StateClosed, a.State())

	_, err := a.NewUpdater(index.SessionOnline)
	assert.ErrorIs(t, err, index.ErrNotOnline)

	t.Run("TerminalStatesStick", func(t *testing.T) {
		a := New()
		require.NoError(t, a.Close())
		require.NoError(t, a.Drop())
		assert.Equal(t, index.StateClosed, a.State())
	})
}
