package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.MaxPages != 20 {
		t.Fatalf("expected max_pages 20, got %d", cfg.Crawler.MaxPages)
	}
	if cfg.Crawler.SRPPause != 800*time.Millisecond {
		t.Fatalf("expected srp_pause 800ms, got %v", cfg.Crawler.SRPPause)
	}
	if cfg.Crawler.VDPPause != 600*time.Millisecond {
		t.Fatalf("expected vdp_pause 600ms, got %v", cfg.Crawler.VDPPause)
	}
	if cfg.HTTP.MaxAttempts != 4 || cfg.HTTP.BackoffBase != 500*time.Millisecond {
		t.Fatalf("expected retry defaults, got %+v", cfg.HTTP)
	}
	if cfg.Guardrail.MinVehicles != 20 {
		t.Fatalf("expected min_vehicles 20, got %d", cfg.Guardrail.MinVehicles)
	}
	if !cfg.Robots.Enabled || !cfg.Robots.FailOpen {
		t.Fatalf("expected robots enabled and fail-open by default: %+v", cfg.Robots)
	}
	if cfg.Merge.PreferredStockType != "New" {
		t.Fatalf("expected merge preference New, got %q", cfg.Merge.PreferredStockType)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://dealer.example.com
  new_srp: https://dealer.example.com/new-vehicles/
  used_srp: https://dealer.example.com/used-vehicles/
crawler:
  max_pages: 5
  srp_pause: 100ms
  vdp_pause: 50ms
http:
  max_attempts: 2
  backoff_base: 10ms
guardrail:
  min_vehicles: 3
snapshot:
  path: /tmp/inventory.json
archive:
  enabled: true
  backend: local
  dir: /tmp/pages
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.BaseURL != "https://dealer.example.com" {
		t.Fatalf("expected site override, got %q", cfg.Site.BaseURL)
	}
	if cfg.Crawler.MaxPages != 5 || cfg.Crawler.SRPPause != 100*time.Millisecond {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.HTTP.MaxAttempts != 2 {
		t.Fatalf("expected http override, got %d", cfg.HTTP.MaxAttempts)
	}
	if cfg.Guardrail.MinVehicles != 3 {
		t.Fatalf("expected guardrail override, got %d", cfg.Guardrail.MinVehicles)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Dir != "/tmp/pages" {
		t.Fatalf("expected archive overrides to apply: %+v", cfg.Archive)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Site: SiteConfig{
			BaseURL:       "https://dealer.example.com",
			NewSRP:        "https://dealer.example.com/new-vehicles/",
			UsedSRP:       "https://dealer.example.com/used-vehicles/",
			VDPPathMarker: "/vehicle",
		},
		Crawler:  CrawlerConfig{UserAgent: "agent", MaxPages: 20},
		HTTP:     HTTPConfig{Timeout: 15 * time.Second, MaxAttempts: 4, BackoffBase: 500 * time.Millisecond},
		Merge:    MergeConfig{PreferredStockType: "New"},
		Snapshot: SnapshotConfig{Path: "data/inventory.json"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing base url",
			cfg: func() Config {
				c := base
				c.Site.BaseURL = ""
				return c
			}(),
			want: "site.base_url",
		},
		{
			name: "missing user agent",
			cfg: func() Config {
				c := base
				c.Crawler.UserAgent = ""
				return c
			}(),
			want: "crawler.user_agent",
		},
		{
			name: "invalid max pages",
			cfg: func() Config {
				c := base
				c.Crawler.MaxPages = 0
				return c
			}(),
			want: "crawler.max_pages",
		},
		{
			name: "invalid max attempts",
			cfg: func() Config {
				c := base
				c.HTTP.MaxAttempts = 0
				return c
			}(),
			want: "http.max_attempts",
		},
		{
			name: "merge bad preference",
			cfg: func() Config {
				c := base
				c.Merge.PreferredStockType = "Certified"
				return c
			}(),
			want: "merge.preferred_stock_type",
		},
		{
			name: "missing snapshot path",
			cfg: func() Config {
				c := base
				c.Snapshot.Path = ""
				return c
			}(),
			want: "snapshot.path",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "archive bad backend",
			cfg: func() Config {
				c := base
				c.Archive.Enabled = true
				c.Archive.Backend = "s3"
				return c
			}(),
			want: "archive.backend",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
