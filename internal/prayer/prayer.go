// Package prayer holds clock arithmetic for the two daily fasting boundaries
// (sehri and iftar): parsing API time strings, 12-hour display, fasting
// duration and countdowns.
package prayer

import (
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Event names for the two fasting boundaries.
const (
	Sehri = "Sehri"
	Iftar = "Iftar"
)

// ShortNames maps event names to single-character abbreviations.
var ShortNames = map[string]string{
	Sehri: "S",
	Iftar: "I",
}

// Clock is a wall-clock time expressed as minutes since midnight, always in [0, 1440).
type Clock int

// NewClock builds a Clock from hour and minute, wrapping around midnight.
func NewClock(hour, min int) Clock {
	return Clock(0).Add(hour*60 + min)
}

// ParseClock parses a time string like "05:17" or "05:17 (BST)".
func ParseClock(raw string) (Clock, error) {
	// Strip timezone suffix like " (BST)" that the API sometimes appends.
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, " "); idx != -1 {
		s = s[:idx]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", raw)
	}

	var hour, min int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &min); err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, fmt.Errorf("time out of range: %q", raw)
	}

	return Clock(hour*60 + min), nil
}

// MustClock is ParseClock for compile-time constants.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the 0-23 hour.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the 0-59 minute.
func (c Clock) Minute() int { return int(c) % 60 }

// Add shifts the clock by n minutes with 24h wraparound.
func (c Clock) Add(n int) Clock {
	v := (int(c) + n) % minutesPerDay
	if v < 0 {
		v += minutesPerDay
	}
	return Clock(v)
}

// String returns the 24-hour "HH:MM" form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Format12 returns the 12-hour "3:04 PM" form.
func (c Clock) Format12() string {
	h := c.Hour()
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute(), period)
}

// Format renders the clock using a "12h" or "24h" preference.
func (c Clock) Format(timeFormat string) string {
	if timeFormat == "12h" {
		return c.Format12()
	}
	return c.String()
}

// On anchors the clock in loc on the civil date of day, as written in day's
// own zone. A date parsed at UTC midnight keeps its day in any loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

// FastingMinutes returns the minutes from sehri to iftar, wrapping past midnight.
func FastingMinutes(sehri, iftar Clock) int {
	return ((int(iftar)-int(sehri))%minutesPerDay + minutesPerDay) % minutesPerDay
}

// FastingDuration formats the sehri-to-iftar span as "XhYm".
func FastingDuration(sehri, iftar Clock) string {
	m := FastingMinutes(sehri, iftar)
	return fmt.Sprintf("%dh%dm", m/60, m%60)
}

// Event is one fasting boundary anchored to a concrete instant.
type Event struct {
	Name string
	Time time.Time
}

// NextEvent finds the next upcoming event from the given slice, relative to now.
// It returns nil when every event has passed.
func NextEvent(events []Event, now time.Time) *Event {
	for i := range events {
		if events[i].Time.After(now) {
			return &events[i]
		}
	}
	return nil
}

// TimeRemaining returns the duration until the given event.
func TimeRemaining(ev Event, now time.Time) time.Duration {
	return ev.Time.Sub(now)
}

// FormatRemaining formats a duration as "Xh Ym" or "Ym" if less than an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
