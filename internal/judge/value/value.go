// Package value models the dynamically typed inputs and outputs exchanged with
// submissions: null, boolean, number, string, sequence and mapping.
//
// A Value is immutable once built. Mappings keep the order their keys were
// first seen in, which positional argument binding depends on.
package value

import (
	"encoding/json"
	"math/big"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a closed tagged union. The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	num   json.Number
	str   string
	items []Value
	keys  []string
	index map[string]int
}

// Field is one key/value pair of a mapping.
type Field struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number literal. Invalid literals become null.
func Number(n json.Number) Value {
	if _, ok := new(big.Rat).SetString(n.String()); !ok {
		return Null()
	}
	return Value{kind: KindNumber, num: n}
}

func Int(i int64) Value { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))} }

func Float(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func String(s string) Value { return Value{kind: KindString, str: s} }

// Seq builds a sequence holding a copy of items.
func Seq(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSeq, items: cp}
}

// Map builds a mapping. A repeated key keeps its first position and its last value.
func Map(fields ...Field) Value {
	v := Value{kind: KindMap, index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if i, ok := v.index[f.Key]; ok {
			v.items[i] = f.Value
			continue
		}
		v.index[f.Key] = len(v.keys)
		v.keys = append(v.keys, f.Key)
		v.items = append(v.items, f.Value)
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; ok is false for other kinds.
func (v Value) Bool() (b, ok bool) { return v.b, v.kind == KindBool }

// Number returns the number literal; ok is false for other kinds.
func (v Value) Number() (json.Number, bool) { return v.num, v.kind == KindNumber }

// Float64 converts a number to the nearest float64.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.num.String(), 64)
	if err != nil {
		r, ok := v.rat()
		if !ok {
			return 0, false
		}
		f, _ = r.Float64()
	}
	return f, true
}

// IsInteger reports whether the number has no fractional part.
func (v Value) IsInteger() bool {
	r, ok := v.rat()
	return ok && r.IsInt()
}

func (v Value) rat() (*big.Rat, bool) {
	if v.kind != KindNumber {
		return nil, false
	}
	return new(big.Rat).SetString(v.num.String())
}

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Len returns the number of items of a sequence or entries of a mapping.
func (v Value) Len() int {
	if v.kind == KindSeq || v.kind == KindMap {
		return len(v.items)
	}
	return 0
}

// Index returns the i-th item of a sequence or the i-th value of a mapping.
func (v Value) Index(i int) Value {
	if (v.kind != KindSeq && v.kind != KindMap) || i < 0 || i >= len(v.items) {
		return Null()
	}
	return v.items[i]
}

// Items returns a copy of the sequence items.
func (v Value) Items() []Value {
	if v.kind != KindSeq {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Keys returns the mapping keys in stored order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	cp := make([]string, len(v.keys))
	copy(cp, v.keys)
	return cp
}

// Get looks up a mapping entry.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	i, ok := v.index[key]
	if !ok {
		return Null(), false
	}
	return v.items[i], true
}

// Fields returns the mapping entries in stored order.
func (v Value) Fields() []Field {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Field, len(v.keys))
	for i, k := range v.keys {
		out[i] = Field{Key: k, Value: v.items[i]}
	}
	return out
}

// String renders the value as compact JSON.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}
