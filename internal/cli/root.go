package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/ramadan-times/internal/config"
	"github.com/smokyabdulrahman/ramadan-times/internal/display"
	"github.com/smokyabdulrahman/ramadan-times/internal/logging"
)

// Global flags shared across all subcommands.
var (
	FlagCity       string
	FlagCountry    string
	FlagLatitude   float64
	FlagLongitude  float64
	FlagMethod     int
	FlagOffsets    bool
	FlagJSON       bool
	FlagCacheDir   string
	FlagTimeFormat string
	FlagLogLevel   string
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"city":        "city",
	"country":     "country",
	"latitude":    "latitude",
	"longitude":   "longitude",
	"method":      "method",
	"offsets":     "use_offsets",
	"cache-dir":   "cache_dir",
	"time-format": "time_format",
	"log-level":   "log_level",
}

// loadedConfig holds defaults, config file and environment merged during
// PersistentPreRunE. Flags are applied on top by effectiveConfig.
var loadedConfig *config.Config

// logger is built once the log level is known.
var logger = zerolog.Nop()

// NewRootCmd creates the root command for the ramadan CLI.
// The version parameter is set by the calling binary via ldflags.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ramadan",
		Short:   "Ramadan calendar with sehri and iftar times",
		Long:    "Builds the 30-day Ramadan calendar for a location, with sehri and iftar times from the Al Adhan API and national start-date offsets.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			file, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg, err := config.Resolve(file)
			if err != nil {
				return err
			}
			loadedConfig = &cfg

			eff, err := effectiveConfig(cmd)
			if err != nil {
				return err
			}
			logger = logging.Setup(eff.LogLevel)
			if FlagJSON {
				display.SetEnabled(false)
			}
			return nil
		},
		// Default action: show the whole calendar.
		RunE:          runCalendar,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&FlagCity, "city", "", "Override city (takes precedence over config)")
	pf.StringVar(&FlagCountry, "country", "", "Override country")
	pf.Float64Var(&FlagLatitude, "latitude", 0, "Override latitude")
	pf.Float64Var(&FlagLongitude, "longitude", 0, "Override longitude")
	pf.IntVar(&FlagMethod, "method", -1, "Override calculation method (0-23)")
	pf.BoolVar(&FlagOffsets, "offsets", true, "Apply national Ramadan start offsets")
	pf.BoolVar(&FlagJSON, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&FlagCacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/ramadan-times/)")
	pf.StringVar(&FlagTimeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")
	pf.StringVar(&FlagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "Discard the saved calendar and fetch again")

	rootCmd.AddCommand(newTodayCmd())
	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newOffsetCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMethodsCmd())

	return rootCmd
}

// PrintVersion prints the version string in the expected format.
func PrintVersion(version string) string {
	return fmt.Sprintf("ramadan %s\n", version)
}

// effectiveConfig returns the merged configuration values, applying the
// priority: CLI flags > environment > config file > defaults. Flag values
// go through config.Set so they are validated like any other source.
func effectiveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()
	if loadedConfig != nil {
		cfg = *loadedConfig
	}

	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if setErr := cfg.Set(key, f.Value.String()); setErr != nil {
			err = fmt.Errorf("--%s: %w", f.Name, setErr)
		}
	})
	if err != nil {
		return config.Config{}, err
	}

	// A flag location replaces the configured one entirely.
	if flagWasSet(cmd.Flags(), "city", "country") && !flagWasSet(cmd.Flags(), "latitude", "longitude") {
		cfg.Latitude, cfg.Longitude = 0, 0
		cfg.Timezone = ""
	}
	return cfg, nil
}

// flagWasSet reports whether any of the named flags was explicitly set.
func flagWasSet(flags *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if f := flags.Lookup(name); f != nil && f.Changed {
			return true
		}
	}
	return false
}
