package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/ramadan-times/internal/display"
	"github.com/smokyabdulrahman/ramadan-times/internal/ics"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

var flagRefresh bool

// runCalendar is the root command: the full 30-day table.
func runCalendar(cmd *cobra.Command, args []string) error {
	cal, err := loadCalendar(cmd, flagRefresh)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if FlagJSON {
		return writeJSON(out, cal)
	}

	cfg, _ := effectiveConfig(cmd)
	fmt.Fprint(out, display.RenderCalendar(cal, cfg.TimeFormat))
	fmt.Fprintln(out)
	return nil
}

// loadCalendar builds the app for cmd and loads the calendar.
func loadCalendar(cmd *cobra.Command, refresh bool) (*ramadan.Calendar, error) {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.calendar(cmd.Context(), refresh)
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the calendar as iCalendar",
		Long:  "Write sehri and iftar events for all 30 days as an .ics file.\nWith no file, or \"-\", the calendar is written to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	cal, err := loadCalendar(cmd, false)
	if err != nil {
		return err
	}

	if len(args) == 0 || args[0] == "-" {
		return ics.Write(cmd.OutOrStdout(), cal)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	if err := ics.Write(f, cal); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d days to %s\n", len(cal.Days), args[0])
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
