package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if !cfg.HeadlessBrowser {
		t.Error("browser should default to headless")
	}
	if cfg.BrowserWidth != 1920 || cfg.BrowserHeight != 1080 {
		t.Errorf("viewport = %dx%d", cfg.BrowserWidth, cfg.BrowserHeight)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("request timeout = %v", cfg.RequestTimeout)
	}
	if len(cfg.AllowedOrigins) == 0 {
		t.Error("default origins missing")
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ListenAddr != ":8080" {
			t.Errorf("listen addr = %q", cfg.ListenAddr)
		}
	})

	t.Run("empty path keeps defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Provider != "openai" {
			t.Errorf("provider = %q", cfg.Provider)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := []byte(`
listen_addr: ":9090"
provider: anthropic
model: claude-sonnet-4-20250514
headless_browser: false
browser_width: 1280
request_timeout: 10s
allowed_origins:
  - https://qa.example.com
`)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ListenAddr != ":9090" || cfg.Provider != "anthropic" {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.Model != "claude-sonnet-4-20250514" {
			t.Errorf("model = %q", cfg.Model)
		}
		if cfg.HeadlessBrowser {
			t.Error("headless override ignored")
		}
		if cfg.BrowserWidth != 1280 || cfg.BrowserHeight != 1080 {
			t.Errorf("viewport = %dx%d, unset fields must keep defaults", cfg.BrowserWidth, cfg.BrowserHeight)
		}
		if cfg.RequestTimeout != 10*time.Second {
			t.Errorf("request timeout = %v", cfg.RequestTimeout)
		}
		if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://qa.example.com" {
			t.Errorf("origins = %v", cfg.AllowedOrigins)
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("listen_addr: [unclosed"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatal("expected a parse error")
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLACKSCOPE_LISTEN_ADDR", ":7070")
	t.Setenv("BLACKSCOPE_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "secret")
	t.Setenv("BLACKSCOPE_HEADLESS", "false")
	t.Setenv("BLACKSCOPE_LOG_JSON", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":7070" || cfg.Provider != "google" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GoogleAPIKey != "secret" {
		t.Errorf("google key = %q", cfg.GoogleAPIKey)
	}
	if cfg.HeadlessBrowser {
		t.Error("BLACKSCOPE_HEADLESS=false ignored")
	}
	if !cfg.LogJSON {
		t.Error("BLACKSCOPE_LOG_JSON=true ignored")
	}

	t.Run("env wins over file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("listen_addr: \":9999\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ListenAddr != ":7070" {
			t.Errorf("listen addr = %q", cfg.ListenAddr)
		}
	})

	t.Run("empty env value is ignored", func(t *testing.T) {
		t.Setenv("BLACKSCOPE_MODEL", "")
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Model != "" {
			t.Errorf("model = %q", cfg.Model)
		}
	})

	t.Run("unparsable bool is ignored", func(t *testing.T) {
		t.Setenv("BLACKSCOPE_HEADLESS", "maybe")
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if !cfg.HeadlessBrowser {
			t.Error("unparsable value must keep the default")
		}
	})
}
