// Package hijri reconciles the Hijri and Gregorian calendars for the Ramadan
// window: today's Hijri date for a location and the 30-day Gregorian window.
package hijri

import "fmt"

// Ramadan is the ninth Hijri month.
const Ramadan = 9

// DaysInRamadan is fixed; the engine does not model 29-day months.
const DaysInRamadan = 30

const daysPerMonth = 30

var monthNames = [...]string{
	"Muharram", "Safar", "Rabi al-Awwal", "Rabi al-Thani",
	"Jumada al-Ula", "Jumada al-Akhirah", "Rajab", "Shaban",
	"Ramadan", "Shawwal", "Dhu al-Qadah", "Dhu al-Hijjah",
}

// Date is a Hijri calendar date. Day is in [1,30] and Month in [1,12].
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// AddDays shifts the date by n days assuming 30-day months, carrying or
// borrowing across month and year boundaries.
func (d Date) AddDays(n int) Date {
	// Work in a zero-based day count so negative n borrows naturally.
	total := (d.Year*12+(d.Month-1))*daysPerMonth + (d.Day - 1) + n
	months := floorDiv(total, daysPerMonth)
	return Date{
		Day:   total - months*daysPerMonth + 1,
		Month: months%12 + 1,
		Year:  months / 12,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MonthName returns the English transliteration of the month.
func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return monthNames[d.Month-1]
}

// Label returns e.g. "1 Ramadan 1447 AH".
func (d Date) Label() string {
	return fmt.Sprintf("%d %s %d AH", d.Day, d.MonthName(), d.Year)
}

func (d Date) String() string { return d.Label() }

// InRamadan reports whether the date falls in Ramadan.
func (d Date) InRamadan() bool { return d.Month == Ramadan }

// CurrentDay returns the Ramadan ordinal (1..30) for d, or 0 outside Ramadan.
func CurrentDay(d Date) int {
	if !d.InRamadan() || d.Day < 1 || d.Day > DaysInRamadan {
		return 0
	}
	return d.Day
}
