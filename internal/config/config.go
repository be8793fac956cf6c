// Package config loads application configuration from a TOML file and
// applies environment-variable overrides in a two-pass load-then-override
// structure. Recognized environment variables govern only transport —
// none change crawl semantics.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Crawler CrawlerConfig `toml:"crawler"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StoreConfig struct {
	Path      string `toml:"path"`
	QueuePath string `toml:"queue_path"`
}

// CrawlerConfig carries the defaults CreateJob applies when a field is
// omitted, plus the dispatcher's timing knobs. CompletionIntervalMs and
// DefaultThrottleSeconds are loaded but not read elsewhere: the
// completion detector probes every 10s and a 429/503 without Retry-After
// throttles for 60s regardless of these values.
type CrawlerConfig struct {
	UserAgent                string  `toml:"user_agent"`
	DefaultMaxDepth          int     `toml:"default_max_depth"`
	DefaultMaxPages          int     `toml:"default_max_pages"`
	DefaultConcurrency       int     `toml:"default_concurrency"`
	DefaultCrawlDelayMs      int     `toml:"default_crawl_delay_ms"`
	DefaultRequestsPerSecond float64 `toml:"default_requests_per_second"`
	RequestTimeoutMs         int     `toml:"request_timeout_ms"`
	RobotsFetchTimeoutMs     int     `toml:"robots_fetch_timeout_ms"`
	CompletionIntervalMs     int     `toml:"completion_interval_ms"`
	DefaultThrottleSeconds   int     `toml:"default_throttle_seconds"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
	FilePath   string   `toml:"file_path"`
}

// Default returns the baseline configuration before file/env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Store:  StoreConfig{Path: "./data/crawler.db", QueuePath: "./data/crawler.db"},
		Crawler: CrawlerConfig{
			UserAgent:                "crawld/1.0 (+https://example.invalid/bot)",
			DefaultMaxDepth:          10,
			DefaultMaxPages:          100_000,
			DefaultConcurrency:       10,
			DefaultCrawlDelayMs:      1000,
			DefaultRequestsPerSecond: 1.0,
			RequestTimeoutMs:         30_000,
			RobotsFetchTimeoutMs:     10_000,
			CompletionIntervalMs:     10_000,
			DefaultThrottleSeconds:   60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
			FilePath:   "./logs/crawld.log",
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// environment overrides; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies the recognized CRAWLD_* environment variable
// overrides on top of the loaded file config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRAWLD_STORE_URL"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CRAWLD_QUEUE_STORE_URL"); v != "" {
		// No separate ephemeral queue store exists (see DESIGN.md); the
		// durable frontier table doubles as the work queue, so this
		// override is accepted and recorded in QueuePath, which nothing
		// reads: the store is opened from Store.Path alone.
		cfg.Store.QueuePath = v
	}
	if v := os.Getenv("CRAWLD_BIND_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CRAWLD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRAWLD_DEFAULT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.DefaultConcurrency = n
		}
	}
	if v := os.Getenv("CRAWLD_DEFAULT_CRAWL_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.DefaultCrawlDelayMs = n
		}
	}
	if v := os.Getenv("CRAWLD_DEFAULT_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.DefaultMaxPages = n
		}
	}
	if v := os.Getenv("CRAWLD_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.RequestTimeoutMs = n
		}
	}
	if v := os.Getenv("CRAWLD_DEFAULT_THROTTLE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.DefaultThrottleSeconds = n
		}
	}
	if v := os.Getenv("CRAWLD_DEFAULT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil && rps > 0 {
			cfg.Crawler.DefaultRequestsPerSecond = rps
			cfg.Crawler.DefaultCrawlDelayMs = int(1000 / rps)
		}
	}
}
