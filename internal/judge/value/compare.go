package value

import (
	"sort"
	"strings"
)

// Equal reports structural equality. Numbers compare by numeric value so 1
// equals 1.0; booleans never equal numbers; mappings ignore key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return compareNumbers(a, b) == 0
	case KindString:
		return a.str == b.str
	case KindSeq:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for i, key := range a.keys {
			other, ok := b.Get(key)
			if !ok || !Equal(a.items[i], other) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare is a total order consistent with Equal: kinds order as
// null < bool < number < string < sequence < mapping.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		return compareNumbers(a, b)
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindSeq:
		return compareItems(a.items, b.items)
	case KindMap:
		ak, bk := sortedKeys(a), sortedKeys(b)
		n := len(ak)
		if len(bk) < n {
			n = len(bk)
		}
		for i := 0; i < n; i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			av, _ := a.Get(ak[i])
			bv, _ := b.Get(bk[i])
			if c := Compare(av, bv); c != 0 {
				return c
			}
		}
		return compareLen(len(ak), len(bk))
	}
	return 0
}

func compareItems(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareLen(len(a), len(b))
}

func compareLen(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareNumbers(a, b Value) int {
	if a.num == b.num {
		return 0
	}
	ar, aok := a.rat()
	br, bok := b.rat()
	if !aok || !bok {
		return strings.Compare(a.num.String(), b.num.String())
	}
	return ar.Cmp(br)
}

func sortedKeys(v Value) []string {
	keys := v.Keys()
	sort.Strings(keys)
	return keys
}

// Sorted returns the items of a sequence ordered by Compare.
func Sorted(v Value) []Value {
	items := v.Items()
	sort.SliceStable(items, func(i, j int) bool { return Compare(items[i], items[j]) < 0 })
	return items
}
