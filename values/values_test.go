package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		assert.Equal(t, CategoryNumber, Int(1).Category())
		assert.Equal(t, CategoryNumber, Float(1.5).Category())
		assert.Equal(t, CategoryText, String("a").Category())
		assert.Equal(t, CategoryBoolean, Bool(true).Category())
		assert.Equal(t, CategoryTemporal, Temporal(1000).Category())
		assert.Equal(t, CategoryGeometry, Point(1, 2).Category())
		assert.Equal(t, CategoryNothing, Null.Category())
	})

	t.Run("Arrays", func(t *testing.T) {
		assert.Equal(t, CategoryNumberArray, Array(Int(1), Int(2)).Category())
		assert.Equal(t, CategoryTextArray, Array(String("x")).Category())
		assert.Equal(t, CategoryGeometryArray, Array(Point(0, 0)).Category())
		assert.Equal(t, CategoryNothing, Array().Category())
	})

	t.Run("IsGeometry", func(t *testing.T) {
		assert.True(t, CategoryGeometry.IsGeometry())
		assert.True(t, CategoryGeometryArray.IsGeometry())
		assert.False(t, CategoryNumber.IsGeometry())
	})
}

func TestCompare(t *testing.T) {
	t.Run("Numbers", func(t *testing.T) {
		assert.Negative(t, Compare(Int(1), Int(2)))
		assert.Positive(t, Compare(Int(2), Int(1)))
		assert.Zero(t, Compare(Int(1), Float(1.0)))
		assert.Negative(t, Compare(Float(1.5), Int(2)))
	})

	t.Run("Strings", func(t *testing.T) {
		assert.Negative(t, Compare(String("a"), String("b")))
		assert.Zero(t, Compare(String("a"), String("a")))
	})

	t.Run("Points", func(t *testing.T) {
		assert.Negative(t, Compare(Point(1, 2), Point(2, 0)))
		assert.Negative(t, Compare(Point(1, 2), Point(1, 3)))
		assert.Zero(t, Compare(Point(1, 2), Point(1, 2)))
	})

	t.Run("CrossCategory", func(t *testing.T) {
		// Numbers sort before strings, strings before bools.
		assert.Negative(t, Compare(Int(100), String("a")))
		assert.Negative(t, Compare(String("z"), Bool(false)))
		assert.Negative(t, Compare(Null, Int(-100)))
	})

	t.Run("Arrays", func(t *testing.T) {
		assert.Negative(t, Compare(Array(Int(1)), Array(Int(1), Int(2))))
		assert.Zero(t, Compare(Array(Int(1), Int(2)), Array(Int(1), Int(2))))
		assert.Positive(t, Compare(Array(Int(2)), Array(Int(1), Int(9))))
	})
}

func TestCompareSlices(t *testing.T) {
	t.Run("ShortCircuit", func(t *testing.T) {
		// First component decides; the second is never reached.
		a := []Value{Int(1), String("z")}
		b := []Value{Int(2), String("a")}
		assert.Negative(t, CompareSlices(a, b))
	})

	t.Run("PrefixSortsFirst", func(t *testing.T) {
		assert.Negative(t, CompareSlices([]Value{Int(1)}, []Value{Int(1), Int(0)}))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Zero(t, CompareSlices(nil, nil))
	})
}

func TestKey(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		assert.Equal(t, "i:42", Int(42).Key())
		assert.Equal(t, "s:hello", String("hello").Key())
		assert.Equal(t, "b:1", Bool(true).Key())
		assert.Equal(t, Int(7).Key(), Int(7).Key())
	})

	t.Run("Distinct", func(t *testing.T) {
		// Int and float keys differ even when numerically equal; posting
		// lists key on representation, lookups normalize first.
		assert.NotEqual(t, Int(1).Key(), Float(1).Key())
		assert.NotEqual(t, String("1").Key(), Int(1).Key())
	})
}

func TestBinaryRoundTrip(t *testing.T) {
	cases := []Value{
		Null,
		Int(-12345),
		Float(3.14159),
		String("overflow payload"),
		Bool(true),
		Temporal(1724371200000000),
		Point(13.4, 52.5),
		Array(Int(1), String("x"), Point(0, 0)),
	}

	for _, v := range cases {
		b, err := v.MarshalBinary()
		require.NoError(t, err)

		var got Value
		require.NoError(t, got.UnmarshalBinary(b))
		assert.Zero(t, Compare(v, got), "value %v", v)
	}
}

func TestBinaryErrors(t *testing.T) {
	var v Value
	assert.Error(t, v.UnmarshalBinary(nil))
	assert.Error(t, v.UnmarshalBinary([]byte{0xff}))

	b, err := Int(1).MarshalBinary()
	require.NoError(t, err)
	assert.Error(t, v.UnmarshalBinary(append(b, 0x00)))
}
