package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

var flagFormat string

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next sehri or iftar with countdown",
		Long: "Print a single line with the next fasting boundary, suitable for status bars such as tmux.\n\n" +
			"Formats: time-remaining, event-time, name-and-time, name-and-remaining, short-name-and-remaining, full,\n" +
			"or a Go template, e.g. \"R{{.Day}} {{.ShortName}} {{.Remaining}}\".",
		RunE: runNext,
	}

	cmd.Flags().StringVar(&flagFormat, "format", prayer.FormatFull, "Display format or Go template")

	return cmd
}

func runNext(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	cal, err := loadCalendar(cmd, false)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), nextLine(cal, now(), flagFormat, cfg.TimeFormat))
	return nil
}

// nextLine renders the status line for t. Until the eve of Ramadan it counts
// down to the first day; after the last iftar it is empty.
func nextLine(cal *ramadan.Calendar, t time.Time, format, timeFormat string) string {
	ev, day := nextEvent(cal, t)
	if ev == nil {
		return ""
	}
	if day == 1 && ev.Name == prayer.Sehri {
		if n := daysUntil(cal, t); n > 1 {
			return fmt.Sprintf("Ramadan in %d days", n)
		}
	}
	return prayer.FormatOutput(*ev, t, day, format, timeFormat)
}

// nextEvent finds the next boundary across the whole calendar and the
// ordinal of the day it belongs to.
func nextEvent(cal *ramadan.Calendar, t time.Time) (*prayer.Event, int) {
	tz := cal.Location.TZ()
	for _, d := range cal.Days {
		if ev := prayer.NextEvent(dayEvents(d, tz), t); ev != nil {
			return ev, d.Ordinal
		}
	}
	return nil, 0
}

// dayEvents anchors a day's sehri and iftar in tz. Clocks that do not parse
// are skipped.
func dayEvents(d ramadan.Day, tz *time.Location) []prayer.Event {
	date, err := time.Parse(hijri.DateLayout, d.Date)
	if err != nil {
		return nil
	}

	var events []prayer.Event
	for _, e := range []struct{ name, clock string }{
		{prayer.Sehri, d.Sehri24},
		{prayer.Iftar, d.Iftar24},
	} {
		c, err := prayer.ParseClock(e.clock)
		if err != nil {
			continue
		}
		events = append(events, prayer.Event{
			Name: e.name,
			Time: c.On(date, tz),
		})
	}
	return events
}

// daysUntil counts calendar days from t to the first day of Ramadan, in the
// calendar location's timezone.
func daysUntil(cal *ramadan.Calendar, t time.Time) int {
	if len(cal.Days) == 0 {
		return 0
	}
	y, m, d := t.In(cal.Location.TZ()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(cal.Days[0].Time().Sub(today).Hours() / 24)
}
