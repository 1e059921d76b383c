package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"moodcanvas/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Sentiment   SentimentConfig   `mapstructure:"sentiment"`
	Selector    SelectorConfig    `mapstructure:"selector"`
	ImageGen    ImageGenConfig    `mapstructure:"image_gen"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Cache       CacheConfig       `mapstructure:"cache"`
	API         APIConfig         `mapstructure:"api"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ObjectStoreConfig covers the artifact blob store.
type ObjectStoreConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Bucket         string        `mapstructure:"bucket"`
	APIKey         string        `mapstructure:"api_key"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig governs pipeline cadence. The interval doubles as the
// idempotency bucket width.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// MarketDataConfig captures the global market aggregates provider.
type MarketDataConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SentimentConfig captures the best-effort sentiment index provider.
type SentimentConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SelectorConfig tunes token candidate selection.
type SelectorConfig struct {
	TrendingLimit           int           `mapstructure:"trending_limit"`
	OverrideTokens          string        `mapstructure:"override_tokens"`
	ExcludeRecentlySelected bool          `mapstructure:"exclude_recently_selected"`
	RecencyWindow           time.Duration `mapstructure:"recency_window"`
}

// ImageGenConfig covers the image generation provider.
type ImageGenConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Format         string        `mapstructure:"format"`
	ReferenceImage string        `mapstructure:"reference_image"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Mock           bool          `mapstructure:"mock"`
}

// ArchiveConfig tunes the archive read path.
type ArchiveConfig struct {
	DefaultLimit  int `mapstructure:"default_limit"`
	MaxLimit      int `mapstructure:"max_limit"`
	ListOverfetch int `mapstructure:"list_overfetch"`
}

// CacheConfig covers the optional Redis list cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// APIConfig covers the read-side HTTP server.
type APIConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOODCANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "moodcanvas")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("market_data.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market_data.api_key", "")
	v.SetDefault("market_data.request_timeout", "10s")
	v.SetDefault("market_data.user_agent", "moodcanvas/1.0")

	v.SetDefault("sentiment.base_url", "https://api.alternative.me")
	v.SetDefault("sentiment.request_timeout", "5s")

	v.SetDefault("selector.trending_limit", 15)
	v.SetDefault("selector.override_tokens", "")
	v.SetDefault("selector.exclude_recently_selected", true)
	v.SetDefault("selector.recency_window", "72h")

	v.SetDefault("image_gen.base_url", "https://api.stability.ai")
	v.SetDefault("image_gen.api_key", "")
	v.SetDefault("image_gen.model", "sd3.5-large")
	v.SetDefault("image_gen.width", 1024)
	v.SetDefault("image_gen.height", 1024)
	v.SetDefault("image_gen.format", "webp")
	v.SetDefault("image_gen.request_timeout", "120s")
	v.SetDefault("image_gen.mock", false)

	v.SetDefault("object_store.base_url", "")
	v.SetDefault("object_store.bucket", "paintings")
	v.SetDefault("object_store.api_key", "")
	v.SetDefault("object_store.public_base_url", "")
	v.SetDefault("object_store.request_timeout", "30s")

	v.SetDefault("archive.default_limit", 20)
	v.SetDefault("archive.max_limit", 100)
	v.SetDefault("archive.list_overfetch", 3)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "60s")

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.rate_limit_rps", 5.0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.shutdown_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Selector.TrendingLimit <= 0 {
		return fmt.Errorf("selector.trending_limit must be greater than zero")
	}
	if c.Selector.RecencyWindow < 0 {
		return fmt.Errorf("selector.recency_window cannot be negative")
	}
	if c.Archive.MaxLimit <= 0 {
		return fmt.Errorf("archive.max_limit must be greater than zero")
	}
	if c.Archive.DefaultLimit <= 0 || c.Archive.DefaultLimit > c.Archive.MaxLimit {
		return fmt.Errorf("archive.default_limit must be within (0, archive.max_limit]")
	}
	if c.Archive.ListOverfetch <= 0 {
		return fmt.Errorf("archive.list_overfetch must be greater than zero")
	}
	if c.ImageGen.Width <= 0 || c.ImageGen.Height <= 0 {
		return fmt.Errorf("image_gen dimensions must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
