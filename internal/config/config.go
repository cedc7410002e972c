// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// DBConfig controls the Postgres catalog store. An empty DSN selects the
// in-memory store, useful for local development.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	CategoriesTable string `mapstructure:"categories_table"`
	ProductsTable   string `mapstructure:"products_table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
}

// ArchiveConfig controls page-snapshot archiving.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"` // "local" or "gcs"
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// EventsConfig controls run-completion event publishing.
type EventsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Init registers defaults, environment bindings, and the optional config
// file. Call once at startup before Load.
func Init() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/catalog-scraper/")
	viper.AddConfigPath("$HOME/.catalog-scraper")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.request_timeout_seconds", 300)

	viper.SetDefault("scraper.entry_url", "https://www.worldofbooks.com/")
	viper.SetDefault("scraper.user_agent", "CatalogScraper/1.0 (+https://github.com/shelfwise/catalog-scraper)")
	viper.SetDefault("scraper.request_timeout", "15s")
	viper.SetDefault("scraper.navigation_timeout", "45s")
	viper.SetDefault("scraper.ready_timeout", "10s")
	viper.SetDefault("scraper.settle_delay", "1s")
	viper.SetDefault("scraper.scroll_step_delay", "400ms")
	viper.SetDefault("scraper.scroll_max_height", 60000)
	viper.SetDefault("scraper.scroll_max_steps", 30)
	viper.SetDefault("scraper.max_pages_per_run", 5)
	viper.SetDefault("scraper.domain_qps", 0.5)

	viper.SetDefault("detector.min_html_bytes", 2000)
	viper.SetDefault("detector.selector_must", "")
	viper.SetDefault("detector.keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"window.__APOLLO_STATE__",
	})

	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.categories_table", "categories")
	viper.SetDefault("db.products_table", "products")
	viper.SetDefault("db.max_conns", 8)
	viper.SetDefault("db.min_conns", 0)

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.backend", "local")
	viper.SetDefault("archive.base_dir", "data/snapshots")
	viper.SetDefault("archive.bucket", "")

	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.project_id", "")
	viper.SetDefault("events.topic", "catalog-scrapes")

	viper.SetDefault("logging.development", false)

	viper.SetEnvPrefix("SCRAPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Missing config file is fine; defaults and env vars carry the load.
	_ = viper.ReadInConfig()
}

// Load unmarshals the typed service config from Viper.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.BaseDir == "" {
				return fmt.Errorf("archive.base_dir is required for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket is required for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be \"local\" or \"gcs\"")
		}
	}
	if c.Events.Enabled {
		if c.Events.ProjectID == "" {
			return fmt.Errorf("events.project_id is required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}
	return nil
}
