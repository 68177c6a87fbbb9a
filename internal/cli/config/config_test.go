package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(BaseURLEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.Timeout != DefaultTimeout || !*cfg.PrettyJSON {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("baseURL: http://judge:9000\ntimeout: 30s\nprettyJSON: false\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(BaseURLEnv, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://judge:9000" || cfg.Timeout != 30*time.Second || *cfg.PrettyJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv(BaseURLEnv, "http://override:1")
	cfg, err = Load(path)
	if err != nil || cfg.BaseURL != "http://override:1" {
		t.Fatalf("env override not applied: %+v %v", cfg, err)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("timeout: [\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
