// Package config loads the service configuration from a YAML or JSON file,
// .env files and K_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/bustrack/core/factory"
	"github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/infra/feed"
	"github.com/kilianp07/bustrack/infra/store"
)

type Config struct {
	Feed          feed.Config            `json:"feed"`
	Collector     CollectorConfig        `json:"collector"`
	Store         store.Config           `json:"store"`
	Projection    ProjectionConfig       `json:"projection"`
	Prediction    PredictionConfig       `json:"prediction"`
	Watches       []WatchConfig          `json:"watches" validate:"dive"`
	Publishers    []factory.ModuleConfig `json:"publishers"`
	Metrics       metrics.Config         `json:"metrics"`
	HTTP          HTTPConfig             `json:"http"`
	PredictionLog PredictionLogConfig    `json:"prediction_log"`
	Sentry        SentryConfig           `json:"sentry"`
}

// CollectorConfig tunes the poll loop.
type CollectorConfig struct {
	Interval       time.Duration `json:"interval" validate:"gt=0"`
	InitialBackoff time.Duration `json:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `json:"max_backoff" validate:"gtefield=InitialBackoff"`
}

// ProjectionConfig selects the planar projection.
type ProjectionConfig struct {
	// Name is "lonlat", "webmercator" or "utm".
	Name    string `json:"name" validate:"oneof=lonlat webmercator epsg:3857 utm"`
	UTMZone int    `json:"utm_zone" validate:"gte=0,lte=60"`
}

// PredictionConfig holds engine parameters shared by every watch.
type PredictionConfig struct {
	RadiusSq        float64       `json:"radius_sq" validate:"gt=0"`
	TopN            int           `json:"top_n" validate:"gt=0"`
	RecentThreshold time.Duration `json:"recent_threshold" validate:"gt=0"`
}

// WatchConfig is a reference point on one line and direction whose arrivals
// are predicted after every poll.
type WatchConfig struct {
	Name     string  `json:"name" validate:"required"`
	Line     string  `json:"line" validate:"required"`
	Towards  int64   `json:"towards" validate:"gt=0"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon      float64 `json:"lon" validate:"gte=-180,lte=180"`
	RadiusSq float64 `json:"radius_sq" validate:"gte=0"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
	// Token, when set, is required as a bearer token on the history endpoint.
	Token string `json:"token"`
}

// PredictionLogConfig defines settings for the published-estimate log and
// its rotation. An empty path disables it.
type PredictionLogConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
}

// Default feed location: central Aarhus, covering the Midttrafik city lines.
const (
	DefaultFeedURL = "https://live.midttrafik.dk"
	DefaultLat     = 56.154437121004236
	DefaultLon     = 10.204795170878484
	DefaultRadiusM = 11379.443078698932
)

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = DefaultFeedURL
	}
	if c.Feed.Lat == 0 && c.Feed.Lon == 0 {
		c.Feed.Lat, c.Feed.Lon = DefaultLat, DefaultLon
	}
	if c.Feed.RadiusM == 0 {
		c.Feed.RadiusM = DefaultRadiusM
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 10 * time.Second
	}
	if c.Feed.TimeZone == "" {
		c.Feed.TimeZone = "Europe/Copenhagen"
	}
	c.Sentry.SetDefaults()
	if c.Collector.Interval == 0 {
		c.Collector.Interval = 15 * time.Second
	}
	if c.Collector.InitialBackoff == 0 {
		c.Collector.InitialBackoff = time.Second
	}
	if c.Collector.MaxBackoff == 0 {
		c.Collector.MaxBackoff = 5 * time.Minute
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = "bustrack.db"
	}
	if c.Projection.Name == "" {
		c.Projection.Name = "lonlat"
	}
	if c.Prediction.RadiusSq == 0 {
		c.Prediction.RadiusSq = 1e-5
	}
	if c.Prediction.TopN == 0 {
		c.Prediction.TopN = 5
	}
	if c.Prediction.RecentThreshold == 0 {
		c.Prediction.RecentThreshold = 60 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.PredictionLog.MaxSizeMB == 0 {
		c.PredictionLog.MaxSizeMB = 50
	}
	if c.PredictionLog.MaxBackups == 0 {
		c.PredictionLog.MaxBackups = 5
	}
	if c.PredictionLog.MaxAgeDays == 0 {
		c.PredictionLog.MaxAgeDays = 30
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Projection.Name == "utm" && c.Projection.UTMZone == 0 {
		return errors.New("projection: utm requires utm_zone")
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return errors.New("store: postgres requires dsn")
	}
	seen := make(map[string]bool, len(c.Watches))
	for _, w := range c.Watches {
		if seen[w.Name] {
			return fmt.Errorf("watches: duplicate name %q", w.Name)
		}
		seen[w.Name] = true
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	for i, p := range c.Publishers {
		if p.Type == "" {
			return fmt.Errorf("publishers[%d]: type is required", i)
		}
	}
	return nil
}

// Watch returns the watch named name.
func (c *Config) Watch(name string) (WatchConfig, bool) {
	for _, w := range c.Watches {
		if w.Name == name {
			return w, true
		}
	}
	return WatchConfig{}, false
}

// LoadDotEnv loads the given .env files into the process environment,
// skipping missing ones. Existing variables win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path (YAML or JSON; empty for defaults only), applies K_
// environment overrides such as K_FEED__LAT, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
