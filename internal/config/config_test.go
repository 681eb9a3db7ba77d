package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("GEMINI_POLL_ATTEMPTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gemini.PollAttempts != 60 {
		t.Errorf("expected 60 poll attempts, got %d", cfg.Gemini.PollAttempts)
	}
	if cfg.Gemini.PollInterval != time.Second {
		t.Errorf("expected 1s poll interval, got %v", cfg.Gemini.PollInterval)
	}
	if cfg.Dispatch.Queue != "video" {
		t.Errorf("expected queue 'video', got %q", cfg.Dispatch.Queue)
	}
	if cfg.Worker.AssertionSecret == "" {
		t.Error("expected assertion secret to fall back to the JWT secret")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("DISPATCH_ACTIVE_JOB_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "minio" {
		t.Errorf("expected driver lower-cased to minio, got %s", cfg.Storage.Driver)
	}
	if cfg.Dispatch.ActiveJobTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Dispatch.ActiveJobTTL)
	}
}

func TestReadSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gemini_key")
	if err := os.WriteFile(path, []byte("  secret-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gemini.APIKey != "secret-value" {
		t.Errorf("expected secret from file, got %q", cfg.Gemini.APIKey)
	}
}
