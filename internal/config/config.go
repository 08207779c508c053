// Package config provides persistent configuration for the ramadan CLI and
// server.
//
// Configuration is stored as JSON at ~/.config/ramadan-times/config.json
// (XDG-compliant). RAMADAN_* environment variables, optionally loaded from a
// .env file, override the file. The merge priority is:
// CLI flags > environment > config file > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	configDirName  = "ramadan-times"
	configFileName = "config.json"

	// DateLayout is the layout of ramadan_start.
	DateLayout = "2006-01-02"

	// MaxBatchSize is the largest accepted batch_size.
	MaxBatchSize = 10
)

// ValidKeys lists all config keys that can be set via `config set`.
var ValidKeys = []string{
	"city", "country",
	"latitude", "longitude",
	"timezone",
	"method", "use_offsets",
	"time_format",
	"cache_dir",
	"redis_addr", "redis_password", "redis_db",
	"listen", "refresh_cron",
	"mqtt_broker", "mqtt_topic",
	"offset_table",
	"ramadan_start", "hijri_year",
	"batch_size", "fetch_timeout", "rate_limit",
	"log_level",
}

// Config holds all user-configurable settings.
// Zero values mean "not set" (use defaults or auto-detect).
type Config struct {
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	Latitude   float64  `json:"latitude,omitempty"`
	Longitude  float64  `json:"longitude,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
	Method     *int     `json:"method,omitempty"`      // pointer so we can distinguish "not set" from 0
	UseOffsets *bool    `json:"use_offsets,omitempty"` // pointer so we can distinguish "not set" from false
	TimeFormat string   `json:"time_format,omitempty"` // "12h" or "24h"
	CacheDir   string   `json:"cache_dir,omitempty"`
	RateLimit  *float64 `json:"rate_limit,omitempty"` // requests per second, 0 disables

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	Listen      string `json:"listen,omitempty"`
	RefreshCron string `json:"refresh_cron,omitempty"`
	MQTTBroker  string `json:"mqtt_broker,omitempty"`
	MQTTTopic   string `json:"mqtt_topic,omitempty"`

	OffsetTable  string `json:"offset_table,omitempty"`  // YAML override file
	RamadanStart string `json:"ramadan_start,omitempty"` // YYYY-MM-DD, 1 Ramadan for offset 0
	HijriYear    int    `json:"hijri_year,omitempty"`

	BatchSize    int    `json:"batch_size,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"` // Go duration
	LogLevel     string `json:"log_level,omitempty"`
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	method := -1
	useOffsets := true
	rate := 5.0
	return Config{
		Method:       &method,
		UseOffsets:   &useOffsets,
		TimeFormat:   "24h",
		RateLimit:    &rate,
		Listen:       ":8080",
		RefreshCron:  "5 0 * * *",
		MQTTTopic:    "ramadan-times",
		RamadanStart: "2026-02-18",
		HijriYear:    1447,
		BatchSize:    10,
		FetchTimeout: "8s",
		LogLevel:     "warn",
	}
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file from disk.
// If the file does not exist, it returns an empty Config (not an error).
// If the file exists but is invalid JSON, it returns an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	return LoadFrom(path)
}

// LoadFrom reads the config from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Config{}
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}

	return c.SaveTo(path)
}

// SaveTo writes the config to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	// The file may hold a redis password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Reset deletes the config file.
func Reset() error {
	path, err := Path()
	if err != nil {
		return err
	}

	return ResetAt(path)
}

// ResetAt deletes the config file at a specific path.
func ResetAt(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// Set sets a config key to the given value.
// It validates the key name and parses the value into the correct type.
func (c *Config) Set(key, value string) error {
	switch key {
	case "city":
		c.City = value
	case "country":
		c.Country = value
	case "latitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: must be a number", value)
		}
		if v < -90 || v > 90 {
			return fmt.Errorf("invalid latitude %q: must be between -90 and 90", value)
		}
		c.Latitude = v
	case "longitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: must be a number", value)
		}
		if v < -180 || v > 180 {
			return fmt.Errorf("invalid longitude %q: must be between -180 and 180", value)
		}
		c.Longitude = v
	case "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", value, err)
		}
		c.Timezone = value
	case "method":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid method %q: must be an integer", value)
		}
		if v < 0 || v > 23 {
			return fmt.Errorf("invalid method %q: must be between 0 and 23", value)
		}
		c.Method = &v
	case "use_offsets":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid use_offsets %q: must be true or false", value)
		}
		c.UseOffsets = &v
	case "time_format":
		if value != "12h" && value != "24h" {
			return fmt.Errorf("invalid time_format %q: must be \"12h\" or \"24h\"", value)
		}
		c.TimeFormat = value
	case "cache_dir":
		c.CacheDir = value
	case "redis_addr":
		c.RedisAddr = value
	case "redis_password":
		c.RedisPassword = value
	case "redis_db":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid redis_db %q: must be a non-negative integer", value)
		}
		c.RedisDB = v
	case "listen":
		c.Listen = value
	case "refresh_cron":
		if _, err := cron.ParseStandard(value); err != nil {
			return fmt.Errorf("invalid refresh_cron %q: %w", value, err)
		}
		c.RefreshCron = value
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_topic":
		if strings.ContainsAny(value, "#+") {
			return fmt.Errorf("invalid mqtt_topic %q: must not contain wildcards", value)
		}
		c.MQTTTopic = strings.TrimSuffix(value, "/")
	case "offset_table":
		c.OffsetTable = value
	case "ramadan_start":
		if _, err := time.Parse(DateLayout, value); err != nil {
			return fmt.Errorf("invalid ramadan_start %q: must be YYYY-MM-DD", value)
		}
		c.RamadanStart = value
	case "hijri_year":
		v, err := strconv.Atoi(value)
		if err != nil || v < 1 {
			return fmt.Errorf("invalid hijri_year %q: must be a positive integer", value)
		}
		c.HijriYear = v
	case "batch_size":
		v, err := strconv.Atoi(value)
		if err != nil || v < 1 || v > MaxBatchSize {
			return fmt.Errorf("invalid batch_size %q: must be between 1 and %d", value, MaxBatchSize)
		}
		c.BatchSize = v
	case "fetch_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid fetch_timeout %q: must be a positive duration like 8s", value)
		}
		c.FetchTimeout = value
	case "rate_limit":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid rate_limit %q: must be a non-negative number", value)
		}
		c.RateLimit = &v
	case "log_level":
		if _, err := zerolog.ParseLevel(value); err != nil || value == "" {
			return fmt.Errorf("invalid log_level %q: must be one of trace, debug, info, warn, error", value)
		}
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
	}

	return nil
}

// Get returns the string value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "city":
		return c.City, nil
	case "country":
		return c.Country, nil
	case "latitude":
		return formatFloat(c.Latitude), nil
	case "longitude":
		return formatFloat(c.Longitude), nil
	case "timezone":
		return c.Timezone, nil
	case "method":
		if c.Method == nil {
			return "", nil
		}
		return strconv.Itoa(*c.Method), nil
	case "use_offsets":
		if c.UseOffsets == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.UseOffsets), nil
	case "time_format":
		return c.TimeFormat, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "redis_addr":
		return c.RedisAddr, nil
	case "redis_password":
		return c.RedisPassword, nil
	case "redis_db":
		return formatInt(c.RedisDB), nil
	case "listen":
		return c.Listen, nil
	case "refresh_cron":
		return c.RefreshCron, nil
	case "mqtt_broker":
		return c.MQTTBroker, nil
	case "mqtt_topic":
		return c.MQTTTopic, nil
	case "offset_table":
		return c.OffsetTable, nil
	case "ramadan_start":
		return c.RamadanStart, nil
	case "hijri_year":
		return formatInt(c.HijriYear), nil
	case "batch_size":
		return formatInt(c.BatchSize), nil
	case "fetch_timeout":
		return c.FetchTimeout, nil
	case "rate_limit":
		if c.RateLimit == nil {
			return "", nil
		}
		return strconv.FormatFloat(*c.RateLimit, 'f', -1, 64), nil
	case "log_level":
		return c.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// Merge returns c with every field that is set in o applied on top.
func (c Config) Merge(o Config) Config {
	for _, key := range ValidKeys {
		v, _ := o.Get(key)
		if v == "" {
			continue
		}
		// Values in o were validated when they were set.
		_ = c.Set(key, v)
	}
	return c
}

// MethodOrDefault returns the method value, falling back to the given default.
func (c *Config) MethodOrDefault(def int) int {
	if c.Method != nil {
		return *c.Method
	}
	return def
}

// UseOffsetsOrDefault returns the use_offsets value, falling back to the given default.
func (c *Config) UseOffsetsOrDefault(def bool) bool {
	if c.UseOffsets != nil {
		return *c.UseOffsets
	}
	return def
}

// RateLimitOrDefault returns the rate_limit value, falling back to the given default.
func (c *Config) RateLimitOrDefault(def float64) float64 {
	if c.RateLimit != nil {
		return *c.RateLimit
	}
	return def
}

// Start parses ramadan_start. It returns the zero time when unset.
func (c *Config) Start() (time.Time, error) {
	if c.RamadanStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, c.RamadanStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ramadan_start %q: %w", c.RamadanStart, err)
	}
	return t, nil
}

// Timeout parses fetch_timeout, falling back to def when unset or invalid.
func (c *Config) Timeout(def time.Duration) time.Duration {
	if c.FetchTimeout == "" {
		return def
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
