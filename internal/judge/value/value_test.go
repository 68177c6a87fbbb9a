package value

import (
	"encoding/json"
	"testing"
)

func mustParse(t *testing.T, raw string) Value {
	t.Helper()
	v, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return v
}

func TestParseKeepsKeyOrder(t *testing.T) {
	v := mustParse(t, `{"target": 9, "nums": [2, 7, 11, 15], "flag": true, "name": null}`)
	keys := v.Keys()
	want := []string{"target", "nums", "flag", "name"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys: %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
	if got := v.String(); got != `{"target":9,"nums":[2,7,11,15],"flag":true,"name":null}` {
		t.Fatalf("unexpected encoding: %s", got)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	if _, err := Parse([]byte(`[1] [2]`)); err == nil {
		t.Fatalf("expected trailing data error")
	}
	if _, err := Parse([]byte(`{"a":`)); err == nil {
		t.Fatalf("expected truncated document error")
	}
}

func TestMapDuplicateKeys(t *testing.T) {
	v := Map(Field{Key: "a", Value: Int(1)}, Field{Key: "b", Value: Int(2)}, Field{Key: "a", Value: Int(3)})
	if v.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", v.Len())
	}
	got, _ := v.Get("a")
	if !Equal(got, Int(3)) || v.Keys()[0] != "a" {
		t.Fatalf("expected a=3 in first position, got %s", v)
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{"int and float", `1`, `1.0`, true},
		{"exponent", `100`, `1e2`, true},
		{"different numbers", `0.1`, `0.10000001`, false},
		{"bool is not number", `true`, `1`, false},
		{"null", `null`, `null`, true},
		{"sequence order matters", `[1,2]`, `[2,1]`, false},
		{"mapping order ignored", `{"a":1,"b":[1]}`, `{"b":[1],"a":1}`, true},
		{"mapping missing key", `{"a":1}`, `{"a":1,"b":2}`, false},
		{"big integers", `123456789012345678901234567890`, `123456789012345678901234567891`, false},
		{"strings", `"abc"`, `"abc"`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(mustParse(t, tc.a), mustParse(t, tc.b)); got != tc.want {
				t.Fatalf("Equal(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCompareTotalOrder(t *testing.T) {
	ordered := []string{`null`, `false`, `true`, `-3`, `2`, `2.5`, `"a"`, `"b"`, `[]`, `[1]`, `[1,2]`, `[2]`, `{}`, `{"a":1}`}
	for i := range ordered {
		for j := range ordered {
			a, b := mustParse(t, ordered[i]), mustParse(t, ordered[j])
			got := Compare(a, b)
			switch {
			case i < j && got >= 0:
				t.Fatalf("expected %s < %s", ordered[i], ordered[j])
			case i > j && got <= 0:
				t.Fatalf("expected %s > %s", ordered[i], ordered[j])
			case i == j && got != 0:
				t.Fatalf("expected %s == %s", ordered[i], ordered[j])
			}
		}
	}
}

func TestSorted(t *testing.T) {
	v := mustParse(t, `[[3,4],[1,2],2,"x",1.5]`)
	sorted := Seq(Sorted(v)...)
	if got := sorted.String(); got != `[1.5,2,"x",[1,2],[3,4]]` {
		t.Fatalf("unexpected order: %s", got)
	}
	if v.String() != `[[3,4],[1,2],2,"x",1.5]` {
		t.Fatalf("Sorted must not reorder the original")
	}
}

func TestJSONInterop(t *testing.T) {
	type record struct {
		Input  Value `json:"input"`
		Output Value `json:"output"`
	}
	var r record
	if err := json.Unmarshal([]byte(`{"input":{"s":"abc","k":2},"output":[0,1]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Input.Kind() != KindMap || r.Output.Kind() != KindSeq {
		t.Fatalf("unexpected kinds: %s %s", r.Input.Kind(), r.Output.Kind())
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"input":{"s":"abc","k":2},"output":[0,1]}` {
		t.Fatalf("unexpected encoding: %s", data)
	}
}

func TestFloat64(t *testing.T) {
	f, ok := mustParse(t, `2.5e-1`).Float64()
	if !ok || f != 0.25 {
		t.Fatalf("expected 0.25, got %v", f)
	}
	if _, ok := String("1").Float64(); ok {
		t.Fatalf("strings are not numbers")
	}
	if !mustParse(t, `4.0`).IsInteger() || mustParse(t, `4.5`).IsInteger() {
		t.Fatalf("unexpected IsInteger result")
	}
}
