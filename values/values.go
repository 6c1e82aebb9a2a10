// Package values provides the typed value model shared by the property store
// and the index backends.
//
// The representation is designed to make comparison and posting-list keying
// fast and predictable: no reflection and no fmt-based stringification.
package values

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
	// KindTemporal represents an instant as epoch microseconds.
	KindTemporal
	// KindPoint represents a 2D geometric point.
	KindPoint
	// KindArray represents an array value.
	KindArray
)

// Category classifies values for capability negotiation (ordering support,
// filtering precision). Every Kind maps to exactly one Category; arrays map
// to the array category of their element kind.
type Category uint8

const (
	// CategoryNothing is the category of null and invalid values.
	CategoryNothing Category = iota
	// CategoryNumber covers int and float values.
	CategoryNumber
	// CategoryText covers string values.
	CategoryText
	// CategoryBoolean covers bool values.
	CategoryBoolean
	// CategoryTemporal covers instant values.
	CategoryTemporal
	// CategoryGeometry covers point values.
	CategoryGeometry
	// CategoryNumberArray covers arrays of numbers.
	CategoryNumberArray
	// CategoryTextArray covers arrays of strings.
	CategoryTextArray
	// CategoryGeometryArray covers arrays of points.
	CategoryGeometryArray
)

// String returns a string representation of the Category.
func (c Category) String() string {
	switch c {
	case CategoryNumber:
		return "NUMBER"
	case CategoryText:
		return "TEXT"
	case CategoryBoolean:
		return "BOOLEAN"
	case CategoryTemporal:
		return "TEMPORAL"
	case CategoryGeometry:
		return "GEOMETRY"
	case CategoryNumberArray:
		return "NUMBER_ARRAY"
	case CategoryTextArray:
		return "TEXT_ARRAY"
	case CategoryGeometryArray:
		return "GEOMETRY_ARRAY"
	default:
		return "NOTHING"
	}
}

// IsGeometry reports whether the category is geometry or geometry array.
// These categories are never precision-preserving in index encodings.
func (c Category) IsGeometry() bool {
	return c == CategoryGeometry || c == CategoryGeometryArray
}

// Value is a small typed value used for property blocks, index entries and
// query predicates.
//
// NOTE: This is also used for overflow persistence; keep it stable.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	S    string
	B    bool
	P    [2]float64 // x, y
	A    []Value
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Temporal returns an instant Value from epoch microseconds.
func Temporal(epochMicros int64) Value { return Value{Kind: KindTemporal, I64: epochMicros} }

// Point returns a 2D point Value.
func Point(x, y float64) Value { return Value{Kind: KindPoint, P: [2]float64{x, y}} }

// Array returns an array Value.
func Array(elems ...Value) Value { return Value{Kind: KindArray, A: elems} }

// Null is the null Value.
var Null = Value{Kind: KindNull}

// Category returns the value's category.
func (v Value) Category() Category {
	switch v.Kind {
	case KindInt, KindFloat:
		return CategoryNumber
	case KindString:
		return CategoryText
	case KindBool:
		return CategoryBoolean
	case KindTemporal:
		return CategoryTemporal
	case KindPoint:
		return CategoryGeometry
	case KindArray:
		if len(v.A) == 0 {
			return CategoryNothing
		}
		switch v.A[0].Kind {
		case KindInt, KindFloat:
			return CategoryNumberArray
		case KindString:
			return CategoryTextArray
		case KindPoint:
			return CategoryGeometryArray
		default:
			return CategoryNothing
		}
	default:
		return CategoryNothing
	}
}

// IsNumber reports whether the value is an int or float.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat64 returns the numeric value widened to float64.
// Returns false if the value is not a number.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I64), true
	case KindFloat:
		return v.F64, true
	default:
		return 0, false
	}
}

// Key returns a stable string representation for use in posting-list maps.
//
// It must remain stable across versions for persisted index usage.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return "i:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return "f:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindString:
		return "s:" + v.S
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	case KindTemporal:
		return "t:" + strconv.FormatInt(v.I64, 10)
	case KindPoint:
		return "p:" + strconv.FormatUint(math.Float64bits(v.P[0]), 16) +
			"," + strconv.FormatUint(math.Float64bits(v.P[1]), 16)
	case KindArray:
		if len(v.A) == 0 {
			return "a:"
		}
		parts := make([]string, len(v.A))
		for i := range v.A {
			parts[i] = v.A[i].Key()
		}
		return "a:" + strings.Join(parts, "\x1f")
	default:
		return "invalid"
	}
}

// Equal reports whether two values are equal. Int and float values compare
// numerically, so Int(1) equals Float(1.0).
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// categoryRank orders values of different kinds so that Compare is a total
// order. The rank only matters for ordered backends storing mixed kinds.
func categoryRank(v Value) int {
	switch v.Kind {
	case KindNull, KindInvalid:
		return 0
	case KindInt, KindFloat:
		return 1
	case KindString:
		return 2
	case KindBool:
		return 3
	case KindTemporal:
		return 4
	case KindPoint:
		return 5
	case KindArray:
		return 6
	default:
		return 7
	}
}

// Compare returns a negative number, zero, or a positive number if a sorts
// before, equal to, or after b. Values of different categories order by a
// fixed category rank.
func Compare(a, b Value) int {
	ra, rb := categoryRank(a), categoryRank(b)
	if ra != rb {
		return ra - rb
	}

	switch {
	case a.IsNumber():
		if a.Kind == KindInt && b.Kind == KindInt {
			return cmpInt64(a.I64, b.I64)
		}
		fa, _ := a.AsFloat64()
		fb, _ := b.AsFloat64()
		return cmpFloat64(fa, fb)
	case a.Kind == KindString:
		return strings.Compare(a.S, b.S)
	case a.Kind == KindBool:
		if a.B == b.B {
			return 0
		}
		if !a.B {
			return -1
		}
		return 1
	case a.Kind == KindTemporal:
		return cmpInt64(a.I64, b.I64)
	case a.Kind == KindPoint:
		if c := cmpFloat64(a.P[0], b.P[0]); c != 0 {
			return c
		}
		return cmpFloat64(a.P[1], b.P[1])
	case a.Kind == KindArray:
		return CompareSlices(a.A, b.A)
	default:
		return 0
	}
}

// CompareSlices compares two value vectors component-wise, short-circuiting
// at the first unequal component. A shorter vector that is a prefix of a
// longer one sorts first.
func CompareSlices(a, b []Value) int {
	n := min(len(a), len(b))
	for i := range n {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
