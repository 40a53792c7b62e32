// Package config loads and validates menusync configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // campus zone must resolve on minimal images

	"github.com/spf13/viper"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// ErrCredentialsMissing is returned when a configured credentials file does
// not exist.
var ErrCredentialsMissing = errors.New("credentials file not found")

// Config captures every knob loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Campus    CampusConfig    `mapstructure:"campus"`
	MenuAPI   MenuAPIConfig   `mapstructure:"menu_api"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Store     StoreConfig     `mapstructure:"store"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	History   HistoryConfig   `mapstructure:"history"`
	Retail    RetailConfig    `mapstructure:"retail"`
	Halls     []menu.Hall     `mapstructure:"halls"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CampusConfig holds the zone menu dates are computed in.
type CampusConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the campus zone.
func (c CampusConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load campus timezone: %w", err)
	}
	return loc, nil
}

// MenuAPIConfig points at the GraphQL menu API.
type MenuAPIConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Origin         string        `mapstructure:"origin"`
	Referer        string        `mapstructure:"referer"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	HistoryTimeout time.Duration `mapstructure:"history_timeout"`
}

// DirectoryConfig controls the retail directory crawl.
type DirectoryConfig struct {
	IndexURL         string        `mapstructure:"index_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	IndexTimeout     time.Duration `mapstructure:"index_timeout"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	HeadlessFallback bool          `mapstructure:"headless_fallback"`
	HeadlessTimeout  time.Duration `mapstructure:"headless_timeout"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Backend         string         `mapstructure:"backend"`
	CredentialsFile string         `mapstructure:"credentials_file"`
	ProjectID       string         `mapstructure:"project_id"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig configures the JSONB document table.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ReconcileConfig tunes the daily menu upload.
type ReconcileConfig struct {
	MaxBatchOps  int           `mapstructure:"max_batch_ops"`
	Pause        time.Duration `mapstructure:"pause"`
	SlugLength   int           `mapstructure:"slug_length"`
	Policy       string        `mapstructure:"policy"`
	SeededScores int           `mapstructure:"seeded_scores"`
}

// HistoryConfig tunes the backfill of past days.
type HistoryConfig struct {
	Days        int           `mapstructure:"days"`
	MaxBatchOps int           `mapstructure:"max_batch_ops"`
	Pause       time.Duration `mapstructure:"pause"`
	SlugLength  int           `mapstructure:"slug_length"`
}

// RetailConfig tunes the retail location upload.
type RetailConfig struct {
	MaxBatchOps int           `mapstructure:"max_batch_ops"`
	Pause       time.Duration `mapstructure:"pause"`
}

// ArchiveConfig selects where raw payloads are kept.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Dir     string `mapstructure:"dir"`
}

// NotifyConfig names the Pub/Sub topic run reports go to. An empty topic
// disables publishing.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// TelemetryConfig points trace export at an OTLP collector. Tracing is off
// when both endpoints are empty.
type TelemetryConfig struct {
	ServiceName  string            `mapstructure:"service_name"`
	GRPCEndpoint string            `mapstructure:"grpc_endpoint"`
	HTTPEndpoint string            `mapstructure:"http_endpoint"`
	Headers      map[string]string `mapstructure:"headers"`
}

// Load builds a Config from disk and environment. Variables use the
// MENUSYNC_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MENUSYNC")
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

// DefaultHalls are the dining courts queried when none are configured.
var DefaultHalls = []menu.Hall{
	{Name: "Ford", ID: "ford-dining-court"},
	{Name: "Wiley", ID: "wiley-dining-court"},
	{Name: "Earhart", ID: "earhart-dining-court"},
	{Name: "Hillenbrand", ID: "hillenbrand-dining-court"},
	{Name: "Windsor", ID: "windsor-dining-court"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("campus.timezone", "America/Indiana/Indianapolis")

	v.SetDefault("menu_api.endpoint", "https://api.hfs.purdue.edu/menus/v3/GraphQL")
	v.SetDefault("menu_api.origin", "https://dining.purdue.edu")
	v.SetDefault("menu_api.referer", "https://dining.purdue.edu/")
	v.SetDefault("menu_api.user_agent", "Mozilla/5.0")
	v.SetDefault("menu_api.timeout", 10*time.Second)
	v.SetDefault("menu_api.history_timeout", 5*time.Second)

	v.SetDefault("directory.index_url", "https://purdue.campusdish.com/LocationsAndMenus")
	v.SetDefault("directory.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("directory.index_timeout", 15*time.Second)
	v.SetDefault("directory.page_timeout", 10*time.Second)
	v.SetDefault("directory.respect_robots", false)
	v.SetDefault("directory.headless_fallback", false)
	v.SetDefault("directory.headless_timeout", 30*time.Second)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "documents")
	v.SetDefault("store.postgres.max_conns", 4)

	v.SetDefault("reconcile.max_batch_ops", 400)
	v.SetDefault("reconcile.pause", time.Duration(0))
	v.SetDefault("reconcile.slug_length", menu.DefaultSlugLength)
	v.SetDefault("reconcile.policy", "daily")
	v.SetDefault("reconcile.seeded_scores", 0)

	v.SetDefault("history.days", 3)
	v.SetDefault("history.max_batch_ops", 100)
	v.SetDefault("history.pause", 500*time.Millisecond)
	v.SetDefault("history.slug_length", menu.HistorySlugLength)

	v.SetDefault("retail.max_batch_ops", 400)
	v.SetDefault("retail.pause", 100*time.Millisecond)

	halls := make([]map[string]any, 0, len(DefaultHalls))
	for _, h := range DefaultHalls {
		halls = append(halls, map[string]any{"name": h.Name, "id": h.ID})
	}
	v.SetDefault("halls", halls)

	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("archive.dir", "./archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")

	v.SetDefault("telemetry.service_name", "menusync")
	v.SetDefault("telemetry.grpc_endpoint", "")
	v.SetDefault("telemetry.http_endpoint", "")
}

// Validate enforces required values and reasonable limits. A credentials
// file that was set but does not exist is reported as ErrCredentialsMissing.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFirestore:
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, firestore, postgres", c.Store.Backend)
	}
	if c.Store.CredentialsFile != "" {
		if _, err := os.Stat(c.Store.CredentialsFile); err != nil {
			return fmt.Errorf("%w: %s", ErrCredentialsMissing, c.Store.CredentialsFile)
		}
	}
	if c.Reconcile.MaxBatchOps <= 0 || c.History.MaxBatchOps <= 0 || c.Retail.MaxBatchOps <= 0 {
		return fmt.Errorf("max_batch_ops must be > 0")
	}
	if c.Reconcile.MaxBatchOps > 500 || c.History.MaxBatchOps > 500 || c.Retail.MaxBatchOps > 500 {
		return fmt.Errorf("max_batch_ops must be <= 500")
	}
	if c.Reconcile.SlugLength <= 0 || c.History.SlugLength <= 0 {
		return fmt.Errorf("slug_length must be > 0")
	}
	if c.Reconcile.Policy != "daily" && c.Reconcile.Policy != "history" {
		return fmt.Errorf("reconcile.policy %q is not one of daily, history", c.Reconcile.Policy)
	}
	if c.Reconcile.SeededScores < 0 {
		return fmt.Errorf("reconcile.seeded_scores must be >= 0")
	}
	if c.History.Days < 0 {
		return fmt.Errorf("history.days must be >= 0")
	}
	if c.Reconcile.Pause < 0 || c.History.Pause < 0 || c.Retail.Pause < 0 {
		return fmt.Errorf("pause must be >= 0")
	}
	if len(c.Halls) == 0 {
		return fmt.Errorf("at least one hall must be configured")
	}
	for _, h := range c.Halls {
		if h.Name == "" || h.ID == "" {
			return fmt.Errorf("hall entries need both name and id: %+v", h)
		}
	}
	if c.MenuAPI.Endpoint == "" {
		return fmt.Errorf("menu_api.endpoint must be set")
	}
	if c.MenuAPI.Timeout <= 0 || c.MenuAPI.HistoryTimeout <= 0 {
		return fmt.Errorf("menu_api timeouts must be > 0")
	}
	if c.Directory.IndexURL == "" {
		return fmt.Errorf("directory.index_url must be set")
	}
	switch c.Archive.Backend {
	case ArchiveNone, "":
	case ArchiveLocal:
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local archive")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, local, gcs", c.Archive.Backend)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, err := c.Campus.Location(); err != nil {
		return err
	}
	return nil
}
