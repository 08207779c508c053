package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempConfigPath returns a path to a config file inside a temp directory.
func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

// --- Defaults ---

func TestDefaults(t *testing.T) {
	d := Defaults()

	if d.Method == nil {
		t.Fatal("Defaults().Method should not be nil")
	}
	if *d.Method != -1 {
		t.Errorf("Defaults().Method = %d, want -1", *d.Method)
	}
	if d.UseOffsets == nil || !*d.UseOffsets {
		t.Errorf("Defaults().UseOffsets = %v, want true", d.UseOffsets)
	}
	if d.TimeFormat != "24h" {
		t.Errorf("Defaults().TimeFormat = %q, want %q", d.TimeFormat, "24h")
	}
	if d.RamadanStart != "2026-02-18" || d.HijriYear != 1447 {
		t.Errorf("Defaults() reference = %s/%d, want 2026-02-18/1447", d.RamadanStart, d.HijriYear)
	}
	if d.BatchSize != 10 {
		t.Errorf("Defaults().BatchSize = %d, want 10", d.BatchSize)
	}
	if d.RefreshCron != "5 0 * * *" {
		t.Errorf("Defaults().RefreshCron = %q", d.RefreshCron)
	}

	// Location is auto-detected when unset.
	if d.City != "" || d.Country != "" || d.Latitude != 0 || d.Longitude != 0 {
		t.Errorf("Defaults() should not carry a location, got %+v", d)
	}
	if d.RedisAddr != "" || d.MQTTBroker != "" {
		t.Error("Defaults() should not enable redis or mqtt")
	}
}

// --- Dir and Path with XDG ---

func TestDir_XDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-test", "ramadan-times")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestDir_FallbackToHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".config", "ramadan-times")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestPath_XDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	p, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-test", "ramadan-times", "config.json")
	if p != want {
		t.Errorf("Path() = %q, want %q", p, want)
	}
}

// --- LoadFrom ---

func TestLoadFrom_NonExistentFile(t *testing.T) {
	cfg, err := LoadFrom("/no/such/file.json")
	if err != nil {
		t.Fatalf("LoadFrom non-existent should not error, got: %v", err)
	}
	if cfg.City != "" || cfg.Method != nil || cfg.UseOffsets != nil {
		t.Error("LoadFrom non-existent should return empty config")
	}
}

func TestLoadFrom_ValidJSON(t *testing.T) {
	path := tempConfigPath(t)

	method := 1
	offsets := false
	data := Config{
		City:       "Dhaka",
		Country:    "Bangladesh",
		Method:     &method,
		UseOffsets: &offsets,
		TimeFormat: "12h",
		RedisAddr:  "localhost:6379",
	}
	raw, _ := json.MarshalIndent(data, "", "  ")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}

	if cfg.City != "Dhaka" || cfg.Country != "Bangladesh" {
		t.Errorf("location = %q/%q, want Dhaka/Bangladesh", cfg.City, cfg.Country)
	}
	if cfg.Method == nil || *cfg.Method != 1 {
		t.Errorf("Method = %v, want 1", cfg.Method)
	}
	if cfg.UseOffsets == nil || *cfg.UseOffsets {
		t.Errorf("UseOffsets = %v, want false", cfg.UseOffsets)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("{bad json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("LoadFrom with invalid JSON should error")
	}
}

func TestLoadFrom_MethodZero(t *testing.T) {
	// Method 0 (Jafari) is valid and must be distinguishable from "not set".
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{"method": 0, "use_offsets": false}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Method == nil || *cfg.Method != 0 {
		t.Fatalf("Method = %v, want 0", cfg.Method)
	}
	if cfg.UseOffsets == nil || *cfg.UseOffsets {
		t.Fatalf("UseOffsets = %v, want false", cfg.UseOffsets)
	}
}

// --- SaveTo ---

func TestSaveTo_CreatesDirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dir", "config.json")

	method := 2
	cfg := &Config{City: "London", Method: &method, RedisPassword: "secret"}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	data, _ := os.ReadFile(path)
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Error("saved file should end with a newline")
	}
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("saved file has invalid JSON: %v", err)
	}
	if loaded.City != "London" || loaded.Method == nil || *loaded.Method != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{}
	for key, value := range map[string]string{
		"city":          "Dhaka",
		"country":       "Bangladesh",
		"latitude":      "23.8103",
		"longitude":     "90.4125",
		"timezone":      "Asia/Dhaka",
		"method":        "0",
		"use_offsets":   "false",
		"time_format":   "12h",
		"cache_dir":     "/tmp/cache",
		"redis_addr":    "localhost:6379",
		"redis_db":      "2",
		"listen":        ":9090",
		"refresh_cron":  "0 1 * * *",
		"mqtt_broker":   "tcp://localhost:1883",
		"mqtt_topic":    "home/ramadan",
		"offset_table":  "/etc/ramadan/offsets.yaml",
		"ramadan_start": "2027-02-08",
		"hijri_year":    "1448",
		"batch_size":    "5",
		"fetch_timeout": "3s",
		"rate_limit":    "2.5",
		"log_level":     "debug",
	} {
		if err := original.Set(key, value); err != nil {
			t.Fatalf("Set(%q, %q): %v", key, value, err)
		}
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}

	for _, key := range ValidKeys {
		want, _ := original.Get(key)
		got, _ := loaded.Get(key)
		if got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

// --- ResetAt ---

func TestResetAt_DeletesFile(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{City: "London"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	if err := ResetAt(path); err != nil {
		t.Fatalf("ResetAt error: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("ResetAt should have deleted the file")
	}
}

func TestResetAt_NonExistentFile(t *testing.T) {
	if err := ResetAt("/no/such/file.json"); err != nil {
		t.Errorf("ResetAt on non-existent file should not error, got: %v", err)
	}
}

// --- Set ---

func TestSet_Validation(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"latitude", "51.5074", false},
		{"latitude", "-90", false},
		{"latitude", "91", true},
		{"latitude", "abc", true},
		{"longitude", "180", false},
		{"longitude", "-181", true},
		{"timezone", "Asia/Dhaka", false},
		{"timezone", "Mars/Olympus", true},
		{"method", "0", false},
		{"method", "23", false},
		{"method", "24", true},
		{"method", "-1", true},
		{"use_offsets", "true", false},
		{"use_offsets", "0", false},
		{"use_offsets", "maybe", true},
		{"time_format", "12h", false},
		{"time_format", "", true},
		{"redis_db", "0", false},
		{"redis_db", "-1", true},
		{"refresh_cron", "5 0 * * *", false},
		{"refresh_cron", "@daily", false},
		{"refresh_cron", "every day", true},
		{"mqtt_topic", "home/ramadan", false},
		{"mqtt_topic", "home/#", true},
		{"ramadan_start", "2026-02-18", false},
		{"ramadan_start", "18/02/2026", true},
		{"hijri_year", "1447", false},
		{"hijri_year", "0", true},
		{"batch_size", "1", false},
		{"batch_size", "10", false},
		{"batch_size", "11", true},
		{"batch_size", "30", true},
		{"fetch_timeout", "500ms", false},
		{"fetch_timeout", "-1s", true},
		{"fetch_timeout", "soon", true},
		{"rate_limit", "0", false},
		{"rate_limit", "-2", true},
		{"log_level", "info", false},
		{"log_level", "loud", true},
		{"log_level", "", true},
		{"school", "1", true},
		{"unknown_key", "value", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set(%s, %q) error = %v, wantErr = %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSet_MQTTTopicTrailingSlash(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Set("mqtt_topic", "home/ramadan/"); err != nil {
		t.Fatal(err)
	}
	if cfg.MQTTTopic != "home/ramadan" {
		t.Errorf("MQTTTopic = %q, want %q", cfg.MQTTTopic, "home/ramadan")
	}
}

// --- Get ---

func TestGet_UnsetValuesAreEmpty(t *testing.T) {
	cfg := &Config{}
	for _, key := range ValidKeys {
		got, err := cfg.Get(key)
		if err != nil {
			t.Fatalf("Get(%q) error: %v", key, err)
		}
		if got != "" {
			t.Errorf("Get(%q) = %q on empty config, want empty", key, got)
		}
	}
}

func TestGet_UnknownKey(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.Get("nope"); err == nil {
		t.Fatal("Get with unknown key should error")
	}
}

// --- Merge and Resolve ---

func TestMerge_OverridesOnlySetFields(t *testing.T) {
	method := 3
	offsets := false
	over := Config{City: "Dubai", Method: &method, UseOffsets: &offsets}

	got := Defaults().Merge(over)

	if got.City != "Dubai" {
		t.Errorf("City = %q, want Dubai", got.City)
	}
	if got.MethodOrDefault(-1) != 3 {
		t.Errorf("Method = %d, want 3", got.MethodOrDefault(-1))
	}
	if got.UseOffsetsOrDefault(true) {
		t.Error("UseOffsets should be overridden to false")
	}
	if got.TimeFormat != "24h" || got.BatchSize != 10 {
		t.Error("unset fields should keep their defaults")
	}
}

func TestResolve_Priority(t *testing.T) {
	t.Setenv("RAMADAN_CITY", "Sylhet")
	t.Setenv("RAMADAN_BATCH_SIZE", "5")

	file := &Config{City: "Dhaka", Country: "Bangladesh", TimeFormat: "12h"}
	got, err := Resolve(file)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if got.City != "Sylhet" {
		t.Errorf("City = %q, env should win over file", got.City)
	}
	if got.Country != "Bangladesh" || got.TimeFormat != "12h" {
		t.Errorf("file values lost: %+v", got)
	}
	if got.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", got.BatchSize)
	}
	if got.HijriYear != 1447 {
		t.Errorf("HijriYear = %d, default should remain", got.HijriYear)
	}
}

func TestFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("RAMADAN_METHOD", "99")
	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv should reject an invalid method")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RAMADAN_COUNTRY=Morocco\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAMADAN_COUNTRY", "")
	os.Unsetenv("RAMADAN_COUNTRY")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	env, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if env.Country != "Morocco" {
		t.Errorf("Country = %q, want Morocco", env.Country)
	}
}

// --- Typed accessors ---

func TestStartAndTimeout(t *testing.T) {
	cfg := Defaults()
	start, err := cfg.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", start)
	}
	if got := cfg.Timeout(time.Second); got != 8*time.Second {
		t.Errorf("Timeout() = %v, want 8s", got)
	}

	empty := Config{}
	if s, _ := empty.Start(); !s.IsZero() {
		t.Errorf("Start() on empty config = %v, want zero", s)
	}
	if got := empty.Timeout(time.Second); got != time.Second {
		t.Errorf("Timeout() on empty config = %v, want default", got)
	}
	if got := empty.RateLimitOrDefault(5); got != 5 {
		t.Errorf("RateLimitOrDefault() = %v, want 5", got)
	}
}
