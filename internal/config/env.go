package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// envVars maps RAMADAN_* variables to config keys. Values stay strings so
// they go through the same validation as `config set`.
type envVars struct {
	City          string `env:"RAMADAN_CITY"`
	Country       string `env:"RAMADAN_COUNTRY"`
	Latitude      string `env:"RAMADAN_LATITUDE"`
	Longitude     string `env:"RAMADAN_LONGITUDE"`
	Timezone      string `env:"RAMADAN_TIMEZONE"`
	Method        string `env:"RAMADAN_METHOD"`
	UseOffsets    string `env:"RAMADAN_USE_OFFSETS"`
	TimeFormat    string `env:"RAMADAN_TIME_FORMAT"`
	CacheDir      string `env:"RAMADAN_CACHE_DIR"`
	RedisAddr     string `env:"RAMADAN_REDIS_ADDR"`
	RedisPassword string `env:"RAMADAN_REDIS_PASSWORD"`
	RedisDB       string `env:"RAMADAN_REDIS_DB"`
	Listen        string `env:"RAMADAN_LISTEN"`
	RefreshCron   string `env:"RAMADAN_REFRESH_CRON"`
	MQTTBroker    string `env:"RAMADAN_MQTT_BROKER"`
	MQTTTopic     string `env:"RAMADAN_MQTT_TOPIC"`
	OffsetTable   string `env:"RAMADAN_OFFSET_TABLE"`
	RamadanStart  string `env:"RAMADAN_START"`
	HijriYear     string `env:"RAMADAN_HIJRI_YEAR"`
	BatchSize     string `env:"RAMADAN_BATCH_SIZE"`
	FetchTimeout  string `env:"RAMADAN_FETCH_TIMEOUT"`
	RateLimit     string `env:"RAMADAN_RATE_LIMIT"`
	LogLevel      string `env:"RAMADAN_LOG_LEVEL"`
}

func (e envVars) pairs() [][2]string {
	return [][2]string{
		{"city", e.City},
		{"country", e.Country},
		{"latitude", e.Latitude},
		{"longitude", e.Longitude},
		{"timezone", e.Timezone},
		{"method", e.Method},
		{"use_offsets", e.UseOffsets},
		{"time_format", e.TimeFormat},
		{"cache_dir", e.CacheDir},
		{"redis_addr", e.RedisAddr},
		{"redis_password", e.RedisPassword},
		{"redis_db", e.RedisDB},
		{"listen", e.Listen},
		{"refresh_cron", e.RefreshCron},
		{"mqtt_broker", e.MQTTBroker},
		{"mqtt_topic", e.MQTTTopic},
		{"offset_table", e.OffsetTable},
		{"ramadan_start", e.RamadanStart},
		{"hijri_year", e.HijriYear},
		{"batch_size", e.BatchSize},
		{"fetch_timeout", e.FetchTimeout},
		{"rate_limit", e.RateLimit},
		{"log_level", e.LogLevel},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv returns a Config holding only the values set through RAMADAN_*
// variables.
func FromEnv() (Config, error) {
	var e envVars
	if err := envdecode.Decode(&e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}

	var cfg Config
	for _, kv := range e.pairs() {
		if kv[1] == "" {
			continue
		}
		if err := cfg.Set(kv[0], kv[1]); err != nil {
			return Config{}, fmt.Errorf("environment: %w", err)
		}
	}
	return cfg, nil
}

// Resolve layers defaults, the config file and the environment.
// CLI flags are applied on top by the caller.
func Resolve(file *Config) (Config, error) {
	cfg := Defaults()
	if file != nil {
		cfg = cfg.Merge(*file)
	}
	env, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg.Merge(env), nil
}
