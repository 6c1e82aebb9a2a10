package btreeindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

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

func queryIDs(t *testing.T, a *Accessor, order index.Order, queries ...index.Query) []uint64 {
	t.Helper()
	r := a.NewReader()
	defer r.Close()

	var client index.SimpleValueClient
	require.NoError(t, r.Query(&client, order, false, queries...))

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
			index.Add(1, values.Int(10)),
			index.Add(2, values.Int(20)),
			index.Add(3, values.Int(10)),
		)

		ids := queryIDs(t, a, index.OrderNone, index.Exact(0, values.Int(10)))
		assert.ElementsMatch(t, []uint64{1, 3}, ids)
	})

	t.Run("RangeQueryAscending", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.Int(5)),
			index.Add(2, values.Int(15)),
			index.Add(3, values.Int(25)),
			index.Add(4, values.Int(10)),
		)

		ids := queryIDs(t, a, index.OrderAscending,
			index.Range(0, values.Int(5), values.Int(15), true, true))
		assert.Equal(t, []uint64{1, 4, 2}, ids)
	})

	t.Run("Descending", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.String("a")),
			index.Add(2, values.String("c")),
			index.Add(3, values.String("b")),
		)

		ids := queryIDs(t, a, index.OrderDescending, index.Exists(0))
		assert.Equal(t, []uint64{2, 3, 1}, ids)
	})

	t.Run("CompositeValues", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.String("smith"), values.Int(30)),
			index.Add(2, values.String("smith"), values.Int(25)),
			index.Add(3, values.String("jones"), values.Int(30)),
		)

		ids := queryIDs(t, a, index.OrderAscending,
			index.Exact(0, values.String("smith")),
			index.Range(1, values.Int(20), values.Int(40), true, true))
		assert.Equal(t, []uint64{2, 1}, ids)
	})

	t.Run("ChangedSupersedes", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.Int(10)),
			index.Change(1, values.Int(20)),
		)

		assert.Empty(t, queryIDs(t, a, index.OrderNone, index.Exact(0, values.Int(10))))
		assert.Equal(t, []uint64{1}, queryIDs(t, a, index.OrderNone, index.Exact(0, values.Int(20))))
	})

	t.Run("Removed", func(t *testing.T) {
		a := New()
		apply(t, a, index.Add(1, values.Int(10)), index.Remove(1))
		assert.Empty(t, queryIDs(t, a, index.OrderNone, index.Exists(0)))
	})

	t.Run("NeedsValues", func(t *testing.T) {
		a := New()
		apply(t, a, index.Add(7, values.Int(10)))

		r := a.NewReader()
		defer r.Close()

		var client index.SimpleValueClient
		require.NoError(t, r.Query(&client, index.OrderNone, true, index.Exists(0)))
		require.True(t, client.Next())
		require.Len(t, client.Values(), 1)
		assert.Zero(t, values.Compare(values.Int(10), client.Values()[0]))
	})
}

func TestInvalidOrderRejected(t *testing.T) {
	a := New()
	apply(t, a, index.Add(1, values.Int(10)))

	r := a.NewReader()
	defer r.Close()

	var client index.SimpleValueClient
	err := r.Query(&client, index.Order(9), false, index.Exists(0))
	require.ErrorIs(t, err, index.ErrUnsupportedOrder)
	assert.Zero(t, client.Len())
}

func TestUnknownUpdateMode(t *testing.T) {
	a := New()
	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)

	require.NoError(t, u.Process(index.Add(1, values.Int(10))))

	bad := index.EntryUpdate{EntityID: 2, Mode: index.UpdateMode(99), Values: []values.Value{values.Int(5)}}
	err = u.Process(bad)
	require.ErrorIs(t, err, index.ErrUnknownUpdateMode)
	require.NoError(t, u.Close())

	// The offending entry alone rejected; the prior entry stands and the
	// rejected entity never appears.
	assert.Equal(t, []uint64{1}, queryIDs(t, a, index.OrderNone, index.Exists(0)))
}

func TestUniqueConflict(t *testing.T) {
	a := New(WithUnique())
	apply(t, a, index.Add(1, values.Int(10)))

	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)

	err = u.Process(index.Add(2, values.Int(10)))
	var conflict *index.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(2), conflict.EntityID)
	assert.Equal(t, uint64(1), conflict.OtherEntityID)

	// Idempotent re-add of the same entity is not a conflict.
	require.NoError(t, u.Process(index.Add(1, values.Int(10))))
	require.NoError(t, u.Close())

	t.Run("RecoveryRelaxes", func(t *testing.T) {
		rec, err := a.NewUpdater(index.SessionRecovery)
		require.NoError(t, err)
		require.NoError(t, rec.Process(index.Add(1, values.Int(10))))
		require.NoError(t, rec.Close())
	})
}

func TestConsistencyCheck(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		a := New()
		apply(t, a,
			index.Add(1, values.Int(10)),
			index.Add(2, values.String("x")),
			index.Add(3, values.Point(1, 2)),
		)
		assert.NoError(t, a.ConsistencyCheck(context.Background()))
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		a := New()
		assert.NoError(t, a.ConsistencyCheck(context.Background()))
	})

	t.Run("RateLimited", func(t *testing.T) {
		a := New(WithCheckRate(rate.Limit(1e6)))
		for i := range 300 {
			apply(t, a, index.Add(uint64(i), values.Int(int64(i))))
		}
		assert.NoError(t, a.ConsistencyCheck(context.Background()))
	})

	t.Run("NotOnlineAfterDrop", func(t *testing.T) {
		a := New()
		require.NoError(t, a.Drop())
		assert.ErrorIs(t, a.ConsistencyCheck(context.Background()), index.ErrNotOnline)
	})

	t.Run("NotOnlineAfterClose", func(t *testing.T) {
		a := New()
		require.NoError(t, a.Close())
		assert.ErrorIs(t, a.ConsistencyCheck(context.Background()), index.ErrNotOnline)
	})
}

func TestLifecycle(t *testing.T) {
	a := New()
	assert.Equal(t, index.StateOnline, a.State())

	require.NoError(t, a.Drop())
	assert.Equal(t, index.StateDropped, a.State())

	_, err := a.NewUpdater(index.SessionOnline)
	assert.ErrorIs(t, err, index.ErrNotOnline)

	r := a.NewReader()
	var client index.SimpleValueClient
	assert.ErrorIs(t, r.Query(&client, index.OrderNone, false, index.Exists(0)), index.ErrNotOnline)

	t.Run("TerminalStatesStick", func(t *testing.T) {
		a := New()
		require.NoError(t, a.Close())
		require.NoError(t, a.Drop())
		assert.Equal(t, index.StateClosed, a.State())

		b := New()
		require.NoError(t, b.Drop())
		require.NoError(t, b.Drop())
		assert.Equal(t, index.StateDropped, b.State())
	})
}

func TestUpdaterAfterClose(t *testing.T) {
	a := New()
	u, err := a.NewUpdater(index.SessionOnline)
	require.NoError(t, err)
	require.NoError(t, u.Close())
	assert.Error(t, u.Process(index.Add(1, values.Int(1))))
}
