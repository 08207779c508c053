// Package ramadan assembles the 30-day Ramadan calendar: it resolves each
// day's sehri and iftar through the cache or the fetch client in bounded
// concurrent batches and merges them onto the date window.
package ramadan

import (
	"errors"
	"fmt"
	"time"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
)

// Day is one fully resolved Ramadan day.
type Day struct {
	Ordinal         int    `json:"ordinal"`
	Date            string `json:"date"` // YYYY-MM-DD
	Hijri           string `json:"hijri"`
	Weekday         string `json:"weekday"`
	Sehri24         string `json:"sehri_24"`
	Iftar24         string `json:"iftar_24"`
	Sehri12         string `json:"sehri_12"`
	Iftar12         string `json:"iftar_12"`
	FastingDuration string `json:"fasting_duration"`
	// IsToday is set at build time from the Hijri ordinal (Calendar.CurrentDay).
	// A calendar restored on a later day keeps the old mark; presenters that
	// need the wall-clock day re-mark by Gregorian date.
	IsToday        bool `json:"is_today"`
	FetchSucceeded bool `json:"fetch_succeeded"`
}

// Time returns the day's Gregorian date at midnight UTC.
func (d Day) Time() time.Time {
	t, _ := time.Parse(hijri.DateLayout, d.Date)
	return t
}

// Calendar is the merged result of one load.
type Calendar struct {
	HijriYear   int          `json:"hijri_year"`
	StartDate   string       `json:"start_date"`
	EndDate     string       `json:"end_date"`
	CurrentDay  int          `json:"current_day"`
	Days        []Day        `json:"days"`
	OffsetUsed  int          `json:"offset_used"`
	Loaded      int          `json:"loaded"`
	Location    geo.Location `json:"location"`
	Method      int          `json:"method"`
	UseOffsets  bool         `json:"use_offsets"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ErrInvalidCalendar wraps every Validate failure.
var ErrInvalidCalendar = errors.New("invalid calendar")

// Validate checks there are exactly 30 days with ordinals 1..30 on
// consecutive Gregorian dates matching StartDate and EndDate.
func (c *Calendar) Validate() error {
	if len(c.Days) != hijri.DaysInRamadan {
		return fmt.Errorf("%w: %d days", ErrInvalidCalendar, len(c.Days))
	}
	var prev time.Time
	for i, d := range c.Days {
		if d.Ordinal != i+1 {
			return fmt.Errorf("%w: day %d has ordinal %d", ErrInvalidCalendar, i+1, d.Ordinal)
		}
		t, err := time.Parse(hijri.DateLayout, d.Date)
		if err != nil {
			return fmt.Errorf("%w: day %d: %v", ErrInvalidCalendar, d.Ordinal, err)
		}
		if i > 0 && !t.Equal(prev.AddDate(0, 0, 1)) {
			return fmt.Errorf("%w: day %d (%s) does not follow %s", ErrInvalidCalendar, d.Ordinal, d.Date, prev.Format(hijri.DateLayout))
		}
		prev = t
	}
	if c.Days[0].Date != c.StartDate || c.Days[len(c.Days)-1].Date != c.EndDate {
		return fmt.Errorf("%w: window %s..%s does not match days", ErrInvalidCalendar, c.StartDate, c.EndDate)
	}
	return nil
}

// Today returns the day marked as today, if any.
func (c *Calendar) Today() (Day, bool) {
	for _, d := range c.Days {
		if d.IsToday {
			return d, true
		}
	}
	return Day{}, false
}

// Summary reports how many days came from a successful fetch.
func (c *Calendar) Summary() string {
	return summary(c.Loaded, len(c.Days))
}

func summary(ok, total int) string {
	return fmt.Sprintf("Loaded %d/%d days", ok, total)
}
