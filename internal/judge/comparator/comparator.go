// Package comparator decides whether a produced value matches the expected one.
package comparator

import (
	"math"

	"offlinejudge/internal/judge/value"
)

// Comparator applies the equivalence rule for a value's shape: two top-level
// sequences compare as multisets, everything else compares exactly. Results
// that came from node objects are compared with MatchOrdered instead.
type Comparator struct {
	// FloatTolerance, when positive, accepts non-integer numbers whose absolute
	// or relative difference is within it. Zero means exact comparison.
	FloatTolerance float64
}

// New returns a Comparator using tolerance for non-integer numbers.
func New(tolerance float64) *Comparator {
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	return &Comparator{FloatTolerance: tolerance}
}

// Match reports whether actual is accepted for expected.
func (c *Comparator) Match(actual, expected value.Value) bool {
	if actual.Kind() == value.KindSeq && expected.Kind() == value.KindSeq {
		if actual.Len() != expected.Len() {
			return false
		}
		a, e := value.Sorted(actual), value.Sorted(expected)
		for i := range a {
			if !c.equal(a[i], e[i]) {
				return false
			}
		}
		return true
	}
	return c.equal(actual, expected)
}

// MatchOrdered reports whether actual equals expected with every sequence
// compared in order. Linked lists and trees in list form use it.
func (c *Comparator) MatchOrdered(actual, expected value.Value) bool {
	return c.equal(actual, expected)
}

func (c *Comparator) equal(a, b value.Value) bool {
	if c.FloatTolerance == 0 {
		return value.Equal(a, b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindNumber:
		if value.Equal(a, b) {
			return true
		}
		if a.IsInteger() && b.IsInteger() {
			return false
		}
		return c.close(a, b)
	case value.KindSeq:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !c.equal(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case value.KindMap:
		if a.Len() != b.Len() {
			return false
		}
		for _, f := range a.Fields() {
			other, ok := b.Get(f.Key)
			if !ok || !c.equal(f.Value, other) {
				return false
			}
		}
		return true
	default:
		return value.Equal(a, b)
	}
}

func (c *Comparator) close(a, b value.Value) bool {
	x, okx := a.Float64()
	y, oky := b.Float64()
	if !okx || !oky {
		return false
	}
	diff := math.Abs(x - y)
	if diff <= c.FloatTolerance {
		return true
	}
	return diff <= c.FloatTolerance*math.Max(math.Abs(x), math.Abs(y))
}
