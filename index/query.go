package index

import (
	"strings"

	"github.com/hupe1980/graphstore/values"
)

// Query is one immutable predicate over a single property value. Every
// query carries the value category it targets and an acceptance test used
// for precision-tolerant post-filtering.
type Query interface {
	// KeyID is the property key the predicate applies to.
	KeyID() int

	// Category is the value category the predicate targets.
	Category() values.Category

	// AcceptsValue reports whether the stored value exactly satisfies the
	// predicate.
	AcceptsValue(v values.Value) bool
}

// Compile-time checks that all predicate variants satisfy Query.
var (
	_ Query = ExistsQuery{}
	_ Query = ExactQuery{}
	_ Query = RangeQuery{}
	_ Query = StringPrefixQuery{}
	_ Query = StringContainsQuery{}
	_ Query = StringSuffixQuery{}
)

// ExistsQuery matches any entity that has the property at all.
type ExistsQuery struct {
	keyID int
}

// Exists creates an existence predicate for the given property key.
func Exists(keyID int) ExistsQuery { return ExistsQuery{keyID: keyID} }

// KeyID implements Query.
func (q ExistsQuery) KeyID() int { return q.keyID }

// Category implements Query. Existence is category-agnostic.
func (q ExistsQuery) Category() values.Category { return values.CategoryNothing }

// AcceptsValue implements Query.
func (q ExistsQuery) AcceptsValue(v values.Value) bool {
	return v.Kind != values.KindInvalid && v.Kind != values.KindNull
}

// ExactQuery matches entities whose value equals the given one.
type ExactQuery struct {
	keyID int
	value values.Value
}

// Exact creates an exact-match predicate.
func Exact(keyID int, v values.Value) ExactQuery { return ExactQuery{keyID: keyID, value: v} }

// KeyID implements Query.
func (q ExactQuery) KeyID() int { return q.keyID }

// Category implements Query.
func (q ExactQuery) Category() values.Category { return q.value.Category() }

// Value returns the predicate's comparison value.
func (q ExactQuery) Value() values.Value { return q.value }

// AcceptsValue implements Query.
func (q ExactQuery) AcceptsValue(v values.Value) bool { return values.Equal(v, q.value) }

// RangeQuery matches entities whose value lies between Lo and Hi. A bound
// with KindInvalid is open.
type RangeQuery struct {
	keyID  int
	Lo, Hi values.Value
	LoIncl bool
	HiIncl bool
}

// Range creates a range predicate. Pass values.Value{} for an open bound.
func Range(keyID int, lo, hi values.Value, loIncl, hiIncl bool) RangeQuery {
	return RangeQuery{keyID: keyID, Lo: lo, Hi: hi, LoIncl: loIncl, HiIncl: hiIncl}
}

// KeyID implements Query.
func (q RangeQuery) KeyID() int { return q.keyID }

// Category implements Query. It derives from whichever bound is set.
func (q RangeQuery) Category() values.Category {
	if q.Lo.Kind != values.KindInvalid {
		return q.Lo.Category()
	}
	return q.Hi.Category()
}

// AcceptsValue implements Query.
func (q RangeQuery) AcceptsValue(v values.Value) bool {
	if v.Category() != q.Category() {
		return false
	}
	if q.Lo.Kind != values.KindInvalid {
		c := values.Compare(v, q.Lo)
		if c < 0 || (c == 0 && !q.LoIncl) {
			return false
		}
	}
	if q.Hi.Kind != values.KindInvalid {
		c := values.Compare(v, q.Hi)
		if c > 0 || (c == 0 && !q.HiIncl) {
			return false
		}
	}
	return true
}

// StringPrefixQuery matches text values starting with a prefix.
type StringPrefixQuery struct {
	keyID  int
	Prefix string
}

// StringPrefix creates a prefix predicate.
func StringPrefix(keyID int, prefix string) StringPrefixQuery {
	return StringPrefixQuery{keyID: keyID, Prefix: prefix}
}

// KeyID implements Query.
func (q StringPrefixQuery) KeyID() int { return q.keyID }

// Category implements Query.
func (q StringPrefixQuery) Category() values.Category { return values.CategoryText }

// AcceptsValue implements Query.
func (q StringPrefixQuery) AcceptsValue(v values.Value) bool {
	return v.Kind == values.KindString && strings.HasPrefix(v.S, q.Prefix)
}

// StringContainsQuery matches text values containing a substring.
type StringContainsQuery struct {
	keyID    int
	Contains string
}

// StringContains creates a substring predicate.
func StringContains(keyID int, contains string) StringContainsQuery {
	return StringContainsQuery{keyID: keyID, Contains: contains}
}

// KeyID implements Query.
func (q StringContainsQuery) KeyID() int { return q.keyID }

// Category implements Query.
func (q StringContainsQuery) Category() values.Category { return values.CategoryText }

// AcceptsValue implements Query.
func (q StringContainsQuery) AcceptsValue(v values.Value) bool {
	return v.Kind == values.KindString && strings.Contains(v.S, q.Contains)
}

// StringSuffixQuery matches text values ending with a suffix.
type StringSuffixQuery struct {
	keyID  int
	Suffix string
}

// StringSuffix creates a suffix predicate.
func StringSuffix(keyID int, suffix string) StringSuffixQuery {
	return StringSuffixQuery{keyID: keyID, Suffix: suffix}
}

// KeyID implements Query.
func (q StringSuffixQuery) KeyID() int { return q.keyID }

// Category implements Query.
func (q StringSuffixQuery) Category() values.Category { return values.CategoryText }

// AcceptsValue implements Query.
func (q StringSuffixQuery) AcceptsValue(v values.Value) bool {
	return v.Kind == values.KindString && strings.HasSuffix(v.S, q.Suffix)
}

// Categories extracts the value categories of a predicate list, in order,
// for capability negotiation.
func Categories(queries ...Query) []values.Category {
	cats := make([]values.Category, len(queries))
	for i, q := range queries {
		cats[i] = q.Category()
	}
	return cats
}
