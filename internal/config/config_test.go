package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	paths := NewPaths(t.TempDir())

	cfg, err := Load(paths.Config, paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Depot != paths.Depot {
		t.Errorf("Depot = %s, want %s", cfg.Depot, paths.Depot)
	}
	if cfg.Layout != "per-package" || cfg.OnRefetchFailure != "error" {
		t.Errorf("layout/policy = %s/%s", cfg.Layout, cfg.OnRefetchFailure)
	}
	if cfg.MaxDepth != 64 {
		t.Errorf("MaxDepth = %d", cfg.MaxDepth)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	paths := NewPaths(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "custom.yaml"), paths)
	if err == nil || !strings.Contains(err.Error(), "failed to read config") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	paths := NewPaths(t.TempDir())
	contents := `
depot: s3://depots/prod
install_root: /opt/voltron
layout: flat
on_refetch_failure: abort
log_level: debug
fetch:
  attempts: 5
  backoff: 500ms
  timeout: 2m
s3:
  region: eu-west-1
`
	if err := os.WriteFile(paths.Config, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(paths.Config, paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Depot != "s3://depots/prod" || cfg.InstallRoot != "/opt/voltron" {
		t.Errorf("depot/install = %s/%s", cfg.Depot, cfg.InstallRoot)
	}
	if cfg.Layout != "flat" || cfg.OnRefetchFailure != "abort" || cfg.LogLevel != "debug" {
		t.Errorf("layout/policy/level = %s/%s/%s", cfg.Layout, cfg.OnRefetchFailure, cfg.LogLevel)
	}
	if cfg.Fetch.Attempts != 5 || cfg.Fetch.Backoff != 500*time.Millisecond || cfg.Fetch.Timeout != 2*time.Minute {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	// Unset keys keep their defaults.
	if cfg.Fetch.MaxBackoff != 5*time.Second {
		t.Errorf("MaxBackoff = %v", cfg.Fetch.MaxBackoff)
	}
	if cfg.S3.Region != "eu-west-1" {
		t.Errorf("S3 region = %s", cfg.S3.Region)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{"bad yaml", "layout: [", "failed to parse"},
		{"bad layout", "layout: nested", "invalid layout"},
		{"bad policy", "on_refetch_failure: explode", "invalid refetch failure policy"},
		{"bad level", "log_level: loud", "invalid log_level"},
		{"negative depth", "max_depth: -1", "max_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := NewPaths(t.TempDir())
			if err := os.WriteFile(paths.Config, []byte(tt.contents), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(paths.Config, paths)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_MarshalRoundTrip(t *testing.T) {
	paths := NewPaths(t.TempDir())
	cfg := Default(paths)
	cfg.Layout = "flat"

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}
