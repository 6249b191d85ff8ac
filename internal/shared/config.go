package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimit      float64  `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst      int      `toml:"rate_burst"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
}

// AuthConfig contains the JWT signing settings for the HTTP API.
type AuthConfig struct {
	Secret   string `toml:"secret"`
	TokenTTL string `toml:"token_ttl"` // parsed with time.ParseDuration, empty means no expiry
}

// StorageConfig points at the blob bucket holding uploaded and derived files.
type StorageConfig struct {
	BucketURL string `toml:"bucket_url"`
}

// CacheConfig sizes the in-memory label lookup cache.
type CacheConfig struct {
	LabelCacheBytes int `toml:"label_cache_bytes"` // 0 disables the cache
	LabelTTLSeconds int `toml:"label_ttl_seconds"`
}

// LogConfig contains logger settings. An empty File logs to stderr.
type LogConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	MaxSize int    `toml:"max_size"` // megabytes
	MaxAge  int    `toml:"max_age"`  // days
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
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

// TTL parses TokenTTL. An empty value yields zero, meaning tokens never expire.
func (a AuthConfig) TTL() (time.Duration, error) {
	if a.TokenTTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(a.TokenTTL)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("%w: token_ttl %q", ErrInvalidConfig, a.TokenTTL)
	}
	return ttl, nil
}
