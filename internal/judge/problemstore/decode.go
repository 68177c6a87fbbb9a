package problemstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/value"
	appErr "offlinejudge/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Decode reads a problem database: one JSON object keyed by question id.
// zstd-compressed input is detected by its frame magic.
func Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))
	if bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "create zstd reader failed")
		}
		defer zr.Close()
		return decodeJSON(zr)
	}
	return decodeJSON(br)
}

func decodeJSON(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "read problem database failed")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, appErr.Newf(appErr.ProblemStoreInvalid, "problem database must be a JSON object keyed by question id")
	}

	snap := &Snapshot{
		problems: make(map[string]*model.Problem),
		invalid:  make(map[string]string),
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "read question id failed")
		}
		id, _ := keyTok.(string)
		var p model.Problem
		if err := dec.Decode(&p); err != nil {
			return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "decode question %s failed", id)
		}
		p.ID = id
		if _, dup := snap.problems[id]; !dup {
			snap.ids = append(snap.ids, id)
		}
		delete(snap.invalid, id)
		if reason := validate(&p); reason != "" {
			snap.invalid[id] = reason
		}
		snap.problems[id] = &p
	}
	if _, err := dec.Token(); err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "read problem database failed")
	}
	sort.SliceStable(snap.ids, func(i, j int) bool { return idLess(snap.ids[i], snap.ids[j]) })
	return snap, nil
}

// validate returns why a problem can never be judged, or "".
func validate(p *model.Problem) string {
	if !identifier.MatchString(p.FunctionName) {
		return fmt.Sprintf("function_name %q is not a valid identifier", p.FunctionName)
	}
	if len(p.TestCases) == 0 {
		return "problem has no test cases"
	}
	for _, name := range p.Params {
		if !identifier.MatchString(name) {
			return fmt.Sprintf("parameter name %q is not a valid identifier", name)
		}
	}
	for i, tc := range p.TestCases {
		switch tc.Input.Kind() {
		case value.KindMap:
			for _, key := range tc.Input.Keys() {
				if !identifier.MatchString(key) {
					return fmt.Sprintf("test case %d: input key %q is not a valid identifier", i+1, key)
				}
			}
		case value.KindSeq:
		default:
			return fmt.Sprintf("test case %d: input must be an object, got %s", i+1, tc.Input.Kind())
		}
	}
	return ""
}

// idLess orders numeric ids numerically and places them before other ids.
func idLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
