package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Window.Width != 1024 || cfg.Window.Height != 768 {
		t.Errorf("default window = %+v", cfg.Window)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("default level = %v", cfg.SlogLevel())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plover.yaml")
	body := "window:\n  width: 640\n  height: 480\nhomepage: http://example.com\nlog_level: debug\nuser_agent: tester/1.0\nhttp_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Window.Width != 640 || cfg.Window.Height != 480 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Homepage != "http://example.com" {
		t.Errorf("homepage = %q", cfg.Homepage)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
	if cfg.UserAgent != "tester/1.0" {
		t.Errorf("user agent = %q", cfg.UserAgent)
	}
	d, err := cfg.HTTPTimeoutDuration()
	if err != nil {
		t.Fatalf("HTTPTimeoutDuration failed: %v", err)
	}
	if d != 5*time.Second {
		t.Errorf("http timeout = %v", d)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plover.yaml")
	if err := os.WriteFile(path, []byte("http_timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable http_timeout")
	}
}

func TestLoadRejectsBadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plover.yaml")
	if err := os.WriteFile(path, []byte("window:\n  width: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative width")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plover.yaml")
	if err := os.WriteFile(path, []byte("window: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
