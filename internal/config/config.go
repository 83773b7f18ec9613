package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port           string
	DatabaseURL    string
	SQLitePath     string
	RedisURL       string
	CacheTTL       time.Duration
	WorkerCount    int
	TasksAPIURL    string
	RequestTimeout time.Duration
}

// fileConfig mirrors Config in a TOML file. Durations are written as
// strings such as "30s".
type fileConfig struct {
	Port           *string `toml:"port"`
	DatabaseURL    *string `toml:"database_url"`
	SQLitePath     *string `toml:"sqlite_path"`
	RedisURL       *string `toml:"redis_url"`
	CacheTTL       *string `toml:"cache_ttl"`
	WorkerCount    *int    `toml:"worker_count"`
	TasksAPIURL    *string `toml:"tasks_api_url"`
	RequestTimeout *string `toml:"request_timeout"`
}

func Default() Config {
	return Config{
		Port:           "8080",
		SQLitePath:     "taskboard.db",
		CacheTTL:       30 * time.Second,
		WorkerCount:    3,
		TasksAPIURL:    "http://localhost:3001",
		RequestTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// at path, then environment variables. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := LoadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path onto cfg. A blank path or a
// missing file leaves cfg untouched.
func LoadFile(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(content, &fc); err != nil {
		return fmt.Errorf("decode toml: %w", err)
	}

	setString(&cfg.Port, fc.Port)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.SQLitePath, fc.SQLitePath)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.TasksAPIURL, fc.TasksAPIURL)
	if fc.WorkerCount != nil {
		cfg.WorkerCount = *fc.WorkerCount
	}
	if err := setDuration(&cfg.CacheTTL, "cache_ttl", fc.CacheTTL); err != nil {
		return err
	}
	return setDuration(&cfg.RequestTimeout, "request_timeout", fc.RequestTimeout)
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.TasksAPIURL = getEnv("TASKS_API_URL", cfg.TasksAPIURL)

	var err error
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", cfg.WorkerCount); err != nil {
		return err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port must not be empty")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	u, err := url.Parse(c.TasksAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid tasks api url %q", c.TasksAPIURL)
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("either database url or sqlite path is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, key string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
