// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	History   HistoryConfig   `mapstructure:"history"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig identifies the dealership site being crawled.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	NewSRP        string `mapstructure:"new_srp"`
	UsedSRP       string `mapstructure:"used_srp"`
	VDPPathMarker string `mapstructure:"vdp_path_marker"`
}

// CrawlerConfig governs pagination and politeness behavior.
type CrawlerConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	MaxPages  int           `mapstructure:"max_pages"`
	SRPPause  time.Duration `mapstructure:"srp_pause"`
	VDPPause  time.Duration `mapstructure:"vdp_pause"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// RobotsConfig controls robots.txt enforcement.
type RobotsConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	FailOpen bool `mapstructure:"fail_open"`
}

// GuardrailConfig sets the minimum plausible inventory size.
type GuardrailConfig struct {
	MinVehicles int `mapstructure:"min_vehicles"`
}

// MergeConfig sets which stock type wins a VIN collision.
type MergeConfig struct {
	PreferredStockType string `mapstructure:"preferred_stock_type"`
}

// SnapshotConfig locates the persisted inventory snapshot.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// HeadlessConfig configures the optional chromedp escalation path.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	QPS         float64       `mapstructure:"qps"`
}

// ArchiveConfig controls optional raw-HTML archival of fetched pages.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
}

// HistoryConfig controls the optional Postgres run-history store.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for snapshot-change notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.quirkchevynh.com")
	v.SetDefault("site.new_srp", "https://www.quirkchevynh.com/new-vehicles/")
	v.SetDefault("site.used_srp", "https://www.quirkchevynh.com/used-vehicles/")
	v.SetDefault("site.vdp_path_marker", "/vehicle")
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("crawler.max_pages", 20)
	v.SetDefault("crawler.srp_pause", "800ms")
	v.SetDefault("crawler.vdp_pause", "600ms")
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.max_attempts", 4)
	v.SetDefault("http.backoff_base", "500ms")
	v.SetDefault("http.backoff_max", "8s")
	v.SetDefault("robots.enabled", true)
	v.SetDefault("robots.fail_open", true)
	v.SetDefault("guardrail.min_vehicles", 20)
	v.SetDefault("merge.preferred_stock_type", "New")
	v.SetDefault("snapshot.path", "data/inventory.json")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", "25s")
	v.SetDefault("headless.qps", 0.5)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.dir", "data/pages")
	v.SetDefault("history.table", "inventory_runs")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"site.base_url": c.Site.BaseURL,
		"site.new_srp":  c.Site.NewSRP,
		"site.used_srp": c.Site.UsedSRP,
	} {
		if raw == "" {
			return fmt.Errorf("%s must be set", name)
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
	}
	if c.Site.VDPPathMarker == "" {
		return fmt.Errorf("site.vdp_path_marker must be set")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffBase <= 0 {
		return fmt.Errorf("http.backoff_base must be > 0")
	}
	if c.Guardrail.MinVehicles < 0 {
		return fmt.Errorf("guardrail.min_vehicles must be >= 0")
	}
	if c.Merge.PreferredStockType != "New" && c.Merge.PreferredStockType != "Used" {
		return fmt.Errorf("merge.preferred_stock_type must be New or Used, got %q", c.Merge.PreferredStockType)
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.Dir == "" {
				return fmt.Errorf("archive.dir must be set for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be local or gcs, got %q", c.Archive.Backend)
		}
	}
	return nil
}
