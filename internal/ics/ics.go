// Package ics exports a Ramadan calendar as an iCalendar feed with one
// "Sehri ends" and one "Iftar" event per day.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

const (
	productID = "-//ramadan-times//Ramadan Calendar//EN"
	uidDomain = "ramadan-times"

	// eventLength keeps clients that hide zero-length events happy.
	eventLength = 15 * time.Minute
)

// UID returns the stable identifier of a day's event; kind is "sehri" or "iftar".
func UID(year, ordinal int, kind string) string {
	return fmt.Sprintf("ramadan-%d-%d-%s@%s", year, ordinal, kind, uidDomain)
}

// Build converts cal into an iCalendar. Event times are the local times in
// the calendar location's timezone.
func Build(cal *ramadan.Calendar) *ical.Calendar {
	tz := cal.Location.TZ()

	out := ical.NewCalendar()
	out.SetMethod(ical.MethodPublish)
	out.SetProductId(productID)
	out.SetXWRCalName(fmt.Sprintf("Ramadan %d AH - %s", cal.HijriYear, cal.Location))
	out.SetXWRTimezone(tz.String())

	stamp := cal.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, d := range cal.Days {
		addEvent(out, cal, d, "sehri", "Sehri ends", d.Sehri24, tz, stamp)
		addEvent(out, cal, d, "iftar", "Iftar", d.Iftar24, tz, stamp)
	}
	return out
}

func addEvent(out *ical.Calendar, cal *ramadan.Calendar, d ramadan.Day, kind, title, clock string, tz *time.Location, stamp time.Time) {
	c, err := prayer.ParseClock(clock)
	if err != nil {
		return
	}
	start := c.On(d.Time(), tz)

	desc := fmt.Sprintf("%s, fasting %s", d.Hijri, d.FastingDuration)
	if !d.FetchSucceeded {
		desc += " (approximate)"
	}

	ev := out.AddEvent(UID(cal.HijriYear, d.Ordinal, kind))
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(eventLength))
	ev.SetSummary(fmt.Sprintf("%s (Day %d)", title, d.Ordinal))
	ev.SetDescription(desc)
	ev.SetLocation(cal.Location.String())
}

// Write serializes cal as iCalendar text.
func Write(w io.Writer, cal *ramadan.Calendar) error {
	_, err := io.WriteString(w, Build(cal).Serialize())
	return err
}
