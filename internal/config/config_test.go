package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Backend != BackendSQLite {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labflow.yaml")
	content := `addr: ":9090"
backend: memory
demo: true
admins: [pi@lab.org]
session_ttl: 2h
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Backend != BackendMemory || !cfg.Demo {
		t.Errorf("Backend = %q, Demo = %v", cfg.Backend, cfg.Demo)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel default lost: %q", cfg.LogLevel)
	}
	if !cfg.IsAdmin("PI@lab.org") {
		t.Error("IsAdmin should be case-insensitive")
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labflow.yaml")
	os.WriteFile(path, []byte("backend: firestore\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestMergeAdminsFromEnv(t *testing.T) {
	t.Setenv("LABFLOW_TEST_ADMINS", " a@x.org, ,B@x.org")
	cfg := DefaultServerConfig()
	cfg.MergeAdminsFromEnv("LABFLOW_TEST_ADMINS")
	if len(cfg.Admins) != 2 {
		t.Fatalf("Admins = %v", cfg.Admins)
	}
	if !cfg.IsAdmin("b@x.org") {
		t.Error("expected b@x.org to be admin")
	}
}
