package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/value"
)

func TestBuildOrdersAndCounts(t *testing.T) {
	b := NewBuilder(3)
	b.Add(model.ExecutionResult{ID: 3, Passed: true})
	b.Add(model.ExecutionResult{ID: 1, Passed: true})
	msg := "Runtime Error: boom"
	b.Add(model.ExecutionResult{ID: 2, Error: &msg, Fault: model.FaultRuntime})

	rep := b.Build()
	if rep.TotalCount != 3 || rep.PassedCount != 2 || rep.AllPassed {
		t.Fatalf("unexpected counts: %+v", rep)
	}
	for i, r := range rep.Results {
		if r.ID != i+1 {
			t.Fatalf("result %d has id %d", i, r.ID)
		}
	}
}

func TestBuildAllPassed(t *testing.T) {
	rep := Build(2, []model.ExecutionResult{{ID: 1, Passed: true}, {ID: 2, Passed: true}})
	if !rep.AllPassed || rep.PassedCount != 2 {
		t.Fatalf("expected all passed: %+v", rep)
	}
}

func TestBuildPartialNeverAllPassed(t *testing.T) {
	rep := Build(3, []model.ExecutionResult{{ID: 1, Passed: true}})
	if rep.AllPassed {
		t.Fatalf("partial report must not be all passed")
	}
}

func TestReportJSONShape(t *testing.T) {
	input := value.Map(
		value.Field{Key: "nums", Value: value.Seq(value.Int(2), value.Int(7))},
		value.Field{Key: "target", Value: value.Int(9)},
	)
	rep := Build(1, []model.ExecutionResult{{
		ID:       1,
		Input:    input,
		Expected: value.Seq(value.Int(0), value.Int(1)),
		Actual:   value.Seq(value.Int(1), value.Int(0)),
		Passed:   true,
		Duration: model.Duration(1234567 * time.Nanosecond),
	}})
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"all_passed":true,"passed_count":1,"total_count":1,"results":[{"id":1,"input":{"nums":[2,7],"target":9},"expected":[0,1],"actual":[1,0],"passed":true,"duration":"1.23ms","error":null}]}`
	if string(data) != want {
		t.Fatalf("unexpected json:\n%s\nwant\n%s", data, want)
	}

	var back model.Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.HasPrefix(back.Results[0].Duration.String(), "1.23") {
		t.Fatalf("duration lost: %s", back.Results[0].Duration)
	}
}
