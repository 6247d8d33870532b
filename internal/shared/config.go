package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Downloader DownloaderConfig `toml:"downloader"`
	HTTP       HTTPConfig       `toml:"http"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Batch      BatchConfig      `toml:"batch"`
	Publish    PublishConfig    `toml:"publish"`
}

// DownloaderConfig contains the staging layout and record field names used by generations.
type DownloaderConfig struct {
	BaseDir         string `toml:"base_dir"`
	StagingDir      string `toml:"staging_dir"`
	UnifiedFilename string `toml:"unified_filename"`
	SourcesKey      string `toml:"sources_key"`
	URLKey          string `toml:"url_key"`
	PathKey         string `toml:"path_key"`
	PartialKey      string `toml:"partial_key"`
	IOWorkers       int    `toml:"io_workers"`
	WatchNetwork    bool   `toml:"watch_network"`
	WatchInterval   string `toml:"watch_interval"`
}

// HTTPConfig contains transport settings for media fetches.
type HTTPConfig struct {
	UserAgent           string `toml:"user_agent"`
	MaxIdleConnsPerHost int    `toml:"max_idle_conns_per_host"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BatchConfig controls how quickly batch generations are started.
type BatchConfig struct {
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// PublishConfig contains the optional bucket finished media files are copied to.
type PublishConfig struct {
	BucketURL string `toml:"bucket_url"`
}

// Interval parses WatchInterval, falling back to two seconds when unset or malformed.
func (d DownloaderConfig) Interval() time.Duration {
	if d.WatchInterval == "" {
		return 2 * time.Second
	}
	v, err := time.ParseDuration(d.WatchInterval)
	if err != nil || v <= 0 {
		return 2 * time.Second
	}
	return v
}

// Validate checks the fields the downloader cannot run without.
func (c *Config) Validate() error {
	if c.Downloader.BaseDir == "" {
		return fmt.Errorf("%w: downloader.base_dir is required", ErrInvalidConfig)
	}
	if c.Downloader.StagingDir == "" || c.Downloader.UnifiedFilename == "" {
		return fmt.Errorf("%w: downloader.staging_dir and downloader.unified_filename are required", ErrInvalidConfig)
	}
	if c.Downloader.StagingDir == c.Downloader.UnifiedFilename {
		return fmt.Errorf("%w: staging_dir and unified_filename must differ", ErrInvalidConfig)
	}
	if c.Downloader.WatchInterval != "" {
		if _, err := time.ParseDuration(c.Downloader.WatchInterval); err != nil {
			return fmt.Errorf("%w: downloader.watch_interval: %v", ErrInvalidConfig, err)
		}
	}
	if c.Batch.RateLimit < 0 {
		return fmt.Errorf("%w: batch.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
