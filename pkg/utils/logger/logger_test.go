package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"offlinejudge/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(nil) })

	ctx := context.WithValue(context.Background(), contextkey.RunID, "run-1")
	ctx = context.WithValue(ctx, contextkey.QuestionID, "20")
	Info(ctx, "run finished", zap.Int("passed", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["run_id"] != "run-1" || fields["question_id"] != "20" || fields["passed"] != int64(3) {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(nil) })

	Debug(context.Background(), "hidden")
	Info(context.Background(), "hidden")
	Warn(context.Background(), "shown")
	Error(context.TODO(), "shown")
	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	Replace(nil)
	Info(context.Background(), "dropped")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func TestNewWritesErrorSink(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "judge.log")
	errPath := filepath.Join(dir, "judge.err.log")
	l, err := New(Config{Level: "info", Format: "json", OutputPath: out, ErrorPath: errPath, Service: "judge"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("loaded")
	l.Warn("slow case")
	_ = l.Sync()

	all, _ := os.ReadFile(out)
	errs, _ := os.ReadFile(errPath)
	if !strings.Contains(string(all), "loaded") || !strings.Contains(string(all), `"service":"judge"`) {
		t.Fatalf("unexpected output log: %s", all)
	}
	if strings.Contains(string(errs), "loaded") || !strings.Contains(string(errs), "slow case") {
		t.Fatalf("unexpected error log: %s", errs)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
