// Package config provides configuration management for the post link bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned by Validate when no bot credential is configured.
var ErrMissingToken = errors.New("bot token is required (set BOT_TOKEN)")

// Config represents the main configuration structure
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Links   LinksConfig   `yaml:"links"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// BotConfig contains chat transport settings
type BotConfig struct {
	Token       string        `yaml:"token" env:"BOT_TOKEN"` //#nosec G117 -- Token field holds the bot credential
	AdminIDs    []int64       `yaml:"admin_ids"`
	AdminIDsEnv string        `yaml:"-" env:"ADMIN_IDS"`
	Username    string        `yaml:"username" env:"BOT_USERNAME"`
	PollTimeout time.Duration `yaml:"poll_timeout" env:"POLL_TIMEOUT"`
	Workers     int           `yaml:"workers" env:"BOT_WORKERS"`
}

// LinksConfig contains link resolution settings
type LinksConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	MaxPost int    `yaml:"max_post" env:"MAX_POST"`
}

// StorageConfig contains link store persistence settings
type StorageConfig struct {
	Type   string       `yaml:"type" env:"STORAGE_TYPE"` // "file", "redis", "sqlite" or "memory"
	File   FileConfig   `yaml:"file"`
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// FileConfig contains JSON file persistence settings
type FileConfig struct {
	Path string `yaml:"path" env:"DATA_FILE"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"` //#nosec G117 -- Password field is intentional for Redis auth config
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Key      string `yaml:"key" env:"REDIS_KEY"`
}

// SQLiteConfig contains SQLite persistence settings
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// ServerConfig contains health check listener settings
type ServerConfig struct {
	Port        int    `yaml:"port" env:"PORT"`
	MetricsPath string `yaml:"metrics_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "console"
}

// Storage backend names accepted by StorageConfig.Type.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			PollTimeout: 60 * time.Second,
			Workers:     4,
		},
		Links: LinksConfig{
			BaseURL: "https://gplink.com/post/",
			MaxPost: 10000,
		},
		Storage: StorageConfig{
			Type: StorageFile,
			File: FileConfig{
				Path: "links.json",
			},
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
				Key:     "postlink:links",
			},
			SQLite: SQLiteConfig{
				Path: "links.db",
			},
		},
		Server: ServerConfig{
			Port:        8080,
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the configuration from file, then applies environment overrides.
// An empty path falls back to CONFIG_PATH and then to config.yaml.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := path
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Absolute paths are an explicit operator choice and are used as-is
	if !filepath.IsAbs(configPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		configPath, err = sanitizeConfigPath(configPath, wd)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) //#nosec G304 -- config path is sanitized above
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// No config file, defaults plus environment
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Bot.AdminIDsEnv != "" {
		cfg.Bot.AdminIDs = ParseIDList(cfg.Bot.AdminIDsEnv)
	}

	return cfg, nil
}

// Validate reports the first configuration problem that prevents serving commands.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return ErrMissingToken
	}
	if c.Links.BaseURL == "" {
		return errors.New("links.base_url must not be empty")
	}
	if c.Links.MaxPost < 1 {
		return fmt.Errorf("links.max_post must be at least 1, got %d", c.Links.MaxPost)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1..65535, got %d", c.Server.Port)
	}
	if c.Bot.Workers < 1 {
		return fmt.Errorf("bot.workers must be at least 1, got %d", c.Bot.Workers)
	}
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.File.Path == "" {
			return errors.New("storage.file.path must not be empty")
		}
	case StorageRedis:
		if c.Storage.Redis.Address == "" {
			return errors.New("storage.redis.address must not be empty")
		}
	case StorageSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path must not be empty")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	return nil
}

// ListenAddr returns the health listener address on all interfaces.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// ParseIDList parses a comma-separated list of numeric caller identities.
// Entries that are not plain digit runs are skipped.
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || !isDigits(part) {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// sanitizeConfigPath resolves path against baseDir and rejects results
// that escape it.
func sanitizeConfigPath(path, baseDir string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absBase, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(absBase, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", path, absBase)
	}
	return resolved, nil
}
