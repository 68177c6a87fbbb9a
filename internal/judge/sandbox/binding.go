package sandbox

import (
	"fmt"
	"strings"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/value"
	appErr "offlinejudge/pkg/errors"
)

// BindingMode says how test case inputs become call arguments.
type BindingMode int

const (
	// BindKeyword passes every input by parameter name.
	BindKeyword BindingMode = iota + 1
	// BindPositional passes inputs in stored order.
	BindPositional
)

func (m BindingMode) String() string {
	switch m {
	case BindKeyword:
		return "keyword"
	case BindPositional:
		return "positional"
	default:
		return "unknown"
	}
}

// Binding is decided once per run and applied to every case.
type Binding struct {
	Mode BindingMode
	// Order, when set, fixes the argument order of positional mapping
	// inputs; otherwise each input's stored key order is used.
	Order []string
}

// Call builds the harness request for one case input.
func (b Binding) Call(input value.Value) harness.Request {
	if b.Mode == BindKeyword {
		return harness.KeywordCall(input)
	}
	if input.Kind() == value.KindSeq {
		return harness.PositionalCall(input.Items())
	}
	args := make([]value.Value, 0, input.Len())
	if len(b.Order) > 0 {
		for _, name := range b.Order {
			v, _ := input.Get(name)
			args = append(args, v)
		}
		return harness.PositionalCall(args)
	}
	for i := 0; i < input.Len(); i++ {
		args = append(args, input.Index(i))
	}
	return harness.PositionalCall(args)
}

// Ordered pins positional arguments to the problem's parameter order when
// every mapping input has exactly those keys. Keyword bindings and inputs
// with other keys are left as they are.
func (b Binding) Ordered(params []string, cases []model.TestCase) Binding {
	if b.Mode != BindPositional || len(params) == 0 {
		return b
	}
	for _, tc := range cases {
		if tc.Input.Kind() != value.KindMap || tc.Input.Len() != len(params) {
			return b
		}
		for _, name := range params {
			if _, ok := tc.Input.Get(name); !ok {
				return b
			}
		}
	}
	b.Order = append([]string(nil), params...)
	return b
}

// DecideBinding picks one binding for all cases of a run:
//   - keyword, when every mapping input names only parameters the callable
//     accepts by keyword and supplies all required ones;
//   - positional, when every input count fits the callable's positional
//     arity (sequence inputs are always positional);
//   - otherwise a configuration fault (appErr.TestCaseInvalid).
func DecideBinding(entry EntryPoint, cases []model.TestCase) (Binding, error) {
	var seqs, maps int
	for _, tc := range cases {
		switch tc.Input.Kind() {
		case value.KindSeq:
			seqs++
		case value.KindMap:
			maps++
		default:
			return Binding{}, configFault("test case input must be a mapping or a sequence, got %s", tc.Input.Kind())
		}
	}
	if seqs > 0 && maps > 0 {
		return Binding{}, configFault("test case inputs mix mappings and sequences")
	}

	if seqs == 0 {
		if _, bad := firstKeywordMismatch(entry, cases); bad < 0 {
			return Binding{Mode: BindKeyword}, nil
		}
	}
	if i := firstArityMismatch(entry, cases); i >= 0 {
		if seqs == 0 {
			reason, _ := firstKeywordMismatch(entry, cases)
			return Binding{}, configFault("test case %d: %s for %s", i+1, reason, entry)
		}
		return Binding{}, configFault("test case %d: %d inputs do not fit %s", i+1, cases[i].Input.Len(), entry)
	}
	return Binding{Mode: BindPositional}, nil
}

// firstKeywordMismatch returns a reason and the index of the first case that
// cannot be bound by keyword, or -1.
func firstKeywordMismatch(entry EntryPoint, cases []model.TestCase) (string, int) {
	for i, tc := range cases {
		seen := make(map[string]struct{}, tc.Input.Len())
		for _, key := range tc.Input.Keys() {
			seen[key] = struct{}{}
			p, ok := entry.param(key)
			if ok && p.Keyword {
				continue
			}
			if !ok && entry.VarKw {
				continue
			}
			return fmt.Sprintf("input %q is not a parameter", key), i
		}
		var missing []string
		for _, p := range entry.Params {
			if !p.Required {
				continue
			}
			if _, ok := seen[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
		if len(missing) > 0 {
			return fmt.Sprintf("missing inputs %s", strings.Join(missing, ", ")), i
		}
	}
	return "", -1
}

// firstArityMismatch returns the index of the first case whose input count
// does not fit the positional arity, or -1.
func firstArityMismatch(entry EntryPoint, cases []model.TestCase) int {
	min, max := entry.positionalArity()
	for _, p := range entry.Params {
		if p.Required && !p.Positional {
			// A required keyword-only parameter can never be bound positionally.
			if len(cases) > 0 {
				return 0
			}
		}
	}
	for i, tc := range cases {
		n := tc.Input.Len()
		if n < min || (max >= 0 && n > max) {
			return i
		}
	}
	return -1
}

func configFault(format string, args ...interface{}) error {
	return appErr.Newf(appErr.TestCaseInvalid, "Test case configuration error: "+format, args...)
}
