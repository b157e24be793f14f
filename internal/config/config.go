// Package config loads settings from defaults, an optional YAML file and
// environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "2s" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Scraper ScraperConfig `yaml:"scraper"`
	Browser BrowserConfig `yaml:"browser"`
	Batch   BatchConfig   `yaml:"batch"`
	Export  ExportConfig  `yaml:"export"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type ScraperConfig struct {
	RankingsURL  string   `yaml:"rankings_url"`
	Domain       string   `yaml:"domain"`
	MaxRetries   int      `yaml:"max_retries"`
	RequestDelay Duration `yaml:"request_delay"`
	WaitTimeout  Duration `yaml:"wait_timeout"`
}

type BrowserConfig struct {
	Headless       bool     `yaml:"headless"`
	Timeout        Duration `yaml:"timeout"`
	UserAgent      string   `yaml:"user_agent"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
	Locale         string   `yaml:"locale"`
	ScrollPause    Duration `yaml:"scroll_pause"`
	MaxScrolls     int      `yaml:"max_scrolls"`
}

type BatchConfig struct {
	Size          int    `yaml:"size"`
	CheckpointDir string `yaml:"checkpoint_dir"`
}

type ExportConfig struct {
	Dir      string         `yaml:"dir"`
	Format   string         `yaml:"format"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServerConfig struct {
	Port            string   `yaml:"port"`
	Host            string   `yaml:"host"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds the configuration: defaults, then the YAML file at path if it
// is non-empty, then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Scraper: ScraperConfig{
			RankingsURL:  "https://www.timeshighereducation.com/world-university-rankings/2024/world-ranking",
			Domain:       "timeshighereducation.com",
			MaxRetries:   3,
			RequestDelay: Duration(2 * time.Second),
			WaitTimeout:  Duration(30 * time.Second),
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        Duration(30 * time.Second),
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Locale:         "en-GB",
			ScrollPause:    Duration(2 * time.Second),
			MaxScrolls:     30,
		},
		Batch: BatchConfig{
			Size:          50,
			CheckpointDir: "data/checkpoints",
		},
		Export: ExportConfig{
			Dir:    "data/exports",
			Format: "json",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "uni_rankings",
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Scraper.RankingsURL = getEnvOrDefault("SCRAPER_RANKINGS_URL", cfg.Scraper.RankingsURL)
	cfg.Scraper.Domain = getEnvOrDefault("SCRAPER_DOMAIN", cfg.Scraper.Domain)
	cfg.Scraper.MaxRetries = getIntOrDefault("SCRAPER_MAX_RETRIES", cfg.Scraper.MaxRetries)
	cfg.Scraper.RequestDelay = getDurationOrDefault("SCRAPER_REQUEST_DELAY", cfg.Scraper.RequestDelay)
	cfg.Scraper.WaitTimeout = getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", cfg.Scraper.WaitTimeout)

	cfg.Browser.Headless = getBoolOrDefault("BROWSER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.Timeout = getDurationOrDefault("BROWSER_TIMEOUT", cfg.Browser.Timeout)
	cfg.Browser.UserAgent = getEnvOrDefault("BROWSER_USER_AGENT", cfg.Browser.UserAgent)
	cfg.Browser.Locale = getEnvOrDefault("BROWSER_LOCALE", cfg.Browser.Locale)

	cfg.Batch.Size = getIntOrDefault("BATCH_SIZE", cfg.Batch.Size)
	cfg.Batch.CheckpointDir = getEnvOrDefault("BATCH_CHECKPOINT_DIR", cfg.Batch.CheckpointDir)

	cfg.Export.Dir = getEnvOrDefault("EXPORT_DIR", cfg.Export.Dir)
	cfg.Export.Format = getEnvOrDefault("EXPORT_FORMAT", cfg.Export.Format)
	cfg.Export.Postgres.Host = getEnvOrDefault("DB_HOST", cfg.Export.Postgres.Host)
	cfg.Export.Postgres.Port = getIntOrDefault("DB_PORT", cfg.Export.Postgres.Port)
	cfg.Export.Postgres.User = getEnvOrDefault("DB_USER", cfg.Export.Postgres.User)
	cfg.Export.Postgres.Password = getEnvOrDefault("DB_PASSWORD", cfg.Export.Postgres.Password)
	cfg.Export.Postgres.Database = getEnvOrDefault("DB_NAME", cfg.Export.Postgres.Database)

	cfg.Redis.Enabled = getBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Server.Port = getEnvOrDefault("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvOrDefault("LOG_FORMAT", cfg.Logging.Format)
}

func (c *Config) Validate() error {
	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("scraper.max_retries must be at least 1")
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be at least 1")
	}
	switch c.Export.Format {
	case "json", "csv", "xlsx", "postgres":
	default:
		return fmt.Errorf("export.format must be one of json, csv, xlsx, postgres")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
