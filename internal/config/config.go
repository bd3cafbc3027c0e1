package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Routing   RoutingConfig   `yaml:"routing" mapstructure:"routing"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SearchConfig holds the default search parameters. Zero prices fall back
// to the city profile.
type SearchConfig struct {
	City     string   `yaml:"city" mapstructure:"city"`
	MinPrice float64  `yaml:"min_price" mapstructure:"min_price"`
	MaxPrice float64  `yaml:"max_price" mapstructure:"max_price"`
	Sites    []string `yaml:"sites" mapstructure:"sites"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	DelayMinMs    int    `yaml:"delay_min_ms" mapstructure:"delay_min_ms"`
	DelayMaxMs    int    `yaml:"delay_max_ms" mapstructure:"delay_max_ms"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	RawPagesDir   string `yaml:"raw_pages_dir" mapstructure:"raw_pages_dir"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	TestModeLimit int    `yaml:"test_mode_limit" mapstructure:"test_mode_limit"`
}

// AnthropicConfig holds Anthropic API settings for LLM extraction.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxInputChars int    `yaml:"max_input_chars" mapstructure:"max_input_chars"`
}

// GeocodeConfig configures the Nominatim geocoder.
type GeocodeConfig struct {
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Email      string  `yaml:"email" mapstructure:"email"`
}

// RoutingConfig configures the OSRM bike router.
type RoutingConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// PipelineConfig configures the stage runner.
type PipelineConfig struct {
	CheckpointFile    string `yaml:"checkpoint_file" mapstructure:"checkpoint_file"`
	CheckpointEvery   int    `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	EnrichWorkers     int    `yaml:"enrich_workers" mapstructure:"enrich_workers"`
	ScrapeConcurrency int    `yaml:"scrape_concurrency" mapstructure:"scrape_concurrency"`
}

// ExportConfig configures report output.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir" mapstructure:"output_dir"`
	Formats   []string `yaml:"formats" mapstructure:"formats"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("search.city", "amsterdam")
	v.SetDefault("search.min_price", 0)
	v.SetDefault("search.max_price", 0)
	v.SetDefault("search.sites", []string{})
	v.SetDefault("scrape.delay_min_ms", 2000)
	v.SetDefault("scrape.delay_max_ms", 5000)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.raw_pages_dir", "")
	v.SetDefault("scrape.respect_robots", true)
	v.SetDefault("scrape.test_mode_limit", 3)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.max_input_chars", 12000)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.email", "")
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.enabled", false)
	v.SetDefault("pipeline.checkpoint_file", "")
	v.SetDefault("pipeline.checkpoint_every", 50)
	v.SetDefault("pipeline.enrich_workers", 1)
	v.SetDefault("pipeline.scrape_concurrency", 1)
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.formats", []string{"excel", "issues"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would make a command impossible. mode is
// "scrape" for pipeline runs or "store" for commands that only read and
// write the database.
func (c *Config) Validate(mode string) error {
	if err := c.validateStore(); err != nil {
		return err
	}
	switch mode {
	case "store":
		return nil
	case "scrape":
		return c.validateScrape()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite", "":
		return nil
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
		return nil
	}
	return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
}

func (c *Config) validateScrape() error {
	if _, err := ProfileFor(c.Search.City); err != nil {
		return err
	}
	if c.Search.MinPrice < 0 || c.Search.MaxPrice < 0 {
		return eris.New("config: search prices must not be negative")
	}
	if c.Search.MaxPrice > 0 && c.Search.MinPrice > c.Search.MaxPrice {
		return eris.Errorf("config: search.min_price %.0f exceeds search.max_price %.0f",
			c.Search.MinPrice, c.Search.MaxPrice)
	}
	if c.Scrape.DelayMinMs < 0 || c.Scrape.DelayMaxMs < c.Scrape.DelayMinMs {
		return eris.Errorf("config: invalid scrape delay range %d..%d ms",
			c.Scrape.DelayMinMs, c.Scrape.DelayMaxMs)
	}
	if c.Pipeline.CheckpointEvery <= 0 {
		return eris.New("config: pipeline.checkpoint_every must be positive")
	}
	if c.Pipeline.EnrichWorkers < 1 || c.Pipeline.EnrichWorkers > 16 {
		return eris.New("config: pipeline.enrich_workers must be between 1 and 16")
	}
	if c.Pipeline.ScrapeConcurrency < 1 || c.Pipeline.ScrapeConcurrency > 16 {
		return eris.New("config: pipeline.scrape_concurrency must be between 1 and 16")
	}
	if c.Geocode.RatePerSec <= 0 {
		return eris.New("config: geocode.rate_per_sec must be positive")
	}
	if c.Export.OutputDir == "" {
		return eris.New("config: export.output_dir is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
