package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildRunRequestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solution.py")
	if err := os.WriteFile(path, []byte("def twoSum(nums, target):\n    return [0, 1]\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	cmd := Registry()["run code"]
	params := Params{}
	params.Set("q", "1")
	params.Set("file", path)

	req, err := BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Method != "POST" || req.Path != "/api/questions/run" || req.Stream {
		t.Fatalf("unexpected request: %+v", req)
	}
	var payload map[string]string
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["question_id"] != "1" || payload["code"] == "" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestBuildRequestInlineCodeWins(t *testing.T) {
	params := Params{}
	params.Set("question_id", "20")
	params.Set("code", "x = 1")
	params.Set("code_file", "/does/not/exist.py")

	req, err := BuildRequest(Registry()["run stream"], params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if !req.Stream || req.Path != "/api/v1/runs/stream" {
		t.Fatalf("unexpected request: %+v", req)
	}
	var payload map[string]string
	_ = json.Unmarshal(req.Body, &payload)
	if payload["code"] != "x = 1" {
		t.Fatalf("inline code must be used: %v", payload)
	}
}

func TestBuildRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		cmd    string
		params map[string]string
	}{
		{name: "missing question", cmd: "run code", params: map[string]string{"code": "x"}},
		{name: "missing code", cmd: "run submit", params: map[string]string{"question_id": "1"}},
		{name: "unreadable file", cmd: "run code", params: map[string]string{"question_id": "1", "code_file": "/nope.py"}},
		{name: "missing path id", cmd: "run status", params: map[string]string{}},
	}
	for _, tt := range tests {
		params := Params{}
		for k, v := range tt.params {
			params.Set(k, v)
		}
		if _, err := BuildRequest(Registry()[tt.cmd], params); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestBuildPathEscapesID(t *testing.T) {
	params := Params{}
	params.Set("run_id", "a/b")
	req, err := BuildRequest(Registry()["run status"], params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Path != "/api/v1/runs/a%2Fb" || req.Body != nil {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseParamsAliases(t *testing.T) {
	fields := Registry()["run code"].Fields
	params, err := ParseParams([]string{"Q=1", "question_id=2", "f=a.py"}, fields)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.Get("question_id") != "2" || params.Get("code_file") != "a.py" {
		t.Fatalf("unexpected params: %v", params)
	}
	if _, ok := params["q"]; ok {
		t.Fatalf("alias key should be removed: %v", params)
	}
	if _, err := ParseParams([]string{"oops"}, fields); err == nil {
		t.Fatalf("expected error for token without =")
	}
}
