package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/ramadan-times/internal/display"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

var flagShort bool

func newTodayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's sehri and iftar",
		Long:  "Show today's sehri and iftar with a countdown to the next one.\nOutside Ramadan, shows when it starts or that it has ended.",
		RunE:  runToday,
	}
	cmd.Flags().BoolVar(&flagShort, "short", false, "Print only \"sehri iftar\" on one line")
	return cmd
}

func runToday(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	cal, err := loadCalendar(cmd, false)
	if err != nil {
		return err
	}

	t := now()
	out := cmd.OutOrStdout()
	day, ok := cal.Today()

	switch {
	case FlagJSON:
		return writeJSON(out, buildTodayJSON(cal, day, ok, t, cfg.TimeFormat))
	case flagShort:
		if ok {
			fmt.Fprintf(out, "%s %s\n", pick(day.Sehri24, day.Sehri12, cfg.TimeFormat), pick(day.Iftar24, day.Iftar12, cfg.TimeFormat))
		}
		return nil
	}

	printTodayRich(out, cal, day, ok, t, cfg.TimeFormat)
	return nil
}

func pick(h24, h12, timeFormat string) string {
	if timeFormat == "12h" {
		return h12
	}
	return h24
}

// printTodayRich renders the colored terminal output for today.
func printTodayRich(w io.Writer, cal *ramadan.Calendar, day ramadan.Day, ok bool, t time.Time, timeFormat string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold(fmt.Sprintf("Ramadan %d AH", cal.HijriYear)))
	fmt.Fprintf(w, "  %s\n", cal.Location)

	if !ok {
		if n := daysUntil(cal, t); n > 0 {
			fmt.Fprintf(w, "  Starts %s, in %d days\n\n", cal.StartDate, n)
		} else {
			fmt.Fprintf(w, "  Ended %s\n\n", cal.EndDate)
		}
		return
	}

	fmt.Fprintf(w, "  %s %s  ·  %s\n\n", day.Weekday, day.Date, day.Hijri)

	next, _ := nextEvent(cal, t)
	for _, row := range []struct{ name, clock string }{
		{prayer.Sehri, pick(day.Sehri24, day.Sehri12, timeFormat)},
		{prayer.Iftar, pick(day.Iftar24, day.Iftar12, timeFormat)},
	} {
		line := fmt.Sprintf("  %-7s %s", row.name, row.clock)
		if next != nil && next.Name == row.name && sameDate(next.Time, day) {
			suffix := fmt.Sprintf("  <- in %s", prayer.FormatRemaining(prayer.TimeRemaining(*next, t)))
			fmt.Fprintln(w, display.Accent(line+suffix))
			continue
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  %-7s %s\n", "Fasting", day.FastingDuration)
	if !day.FetchSucceeded {
		fmt.Fprintf(w, "\n  %s\n", display.Warn("Times are approximate; the fetch for today failed."))
	}
	fmt.Fprintln(w)
}

func sameDate(t time.Time, d ramadan.Day) bool {
	return t.Format("2006-01-02") == d.Date
}

// todayJSON is the JSON output structure for the today command.
type todayJSON struct {
	Location  geo.Location   `json:"location"`
	HijriYear int            `json:"hijri_year"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Day       int            `json:"day"`
	Today     *ramadan.Day   `json:"today"`
	Next      *todayJSONNext `json:"next"`
}

type todayJSONNext struct {
	Event     string `json:"event"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
}

func buildTodayJSON(cal *ramadan.Calendar, day ramadan.Day, ok bool, t time.Time, timeFormat string) todayJSON {
	out := todayJSON{
		Location:  cal.Location,
		HijriYear: cal.HijriYear,
		StartDate: cal.StartDate,
		EndDate:   cal.EndDate,
		Day:       cal.CurrentDay,
	}
	if ok {
		out.Today = &day
	}
	if ev, _ := nextEvent(cal, t); ev != nil {
		out.Next = &todayJSONNext{
			Event:     ev.Name,
			Time:      prayer.NewClock(ev.Time.Hour(), ev.Time.Minute()).Format(timeFormat),
			Remaining: prayer.FormatRemaining(prayer.TimeRemaining(*ev, t)),
		}
	}
	return out
}
