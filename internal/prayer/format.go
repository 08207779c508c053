package prayer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Format constants for status-line display modes.
const (
	FormatTimeRemaining    = "time-remaining"
	FormatEventTime        = "event-time"
	FormatNameAndTime      = "name-and-time"
	FormatNameAndRemaining = "name-and-remaining"
	FormatShortAndRemain   = "short-name-and-remaining"
	FormatFull             = "full"
)

// FormatData is the data passed to custom Go templates.
type FormatData struct {
	Name      string // "Sehri" or "Iftar"
	ShortName string // "S" or "I"
	Time      string // e.g. "18:14" or "6:14 PM"
	Remaining string // e.g. "2h 15m"
	Hours     int
	Minutes   int
	Day       int // Ramadan ordinal, 0 outside Ramadan
}

// FormatOutput renders the next event for a status line.
// timeFormat is "12h" or "24h". A mode containing "{{" is executed as a Go template.
//
// Example: "R{{.Day}} {{.Name}} in {{.Remaining}}" -> "R12 Iftar in 2h 15m"
func FormatOutput(ev Event, now time.Time, day int, mode, timeFormat string) string {
	d := TimeRemaining(ev, now)
	remaining := FormatRemaining(d)
	timeStr := NewClock(ev.Time.Hour(), ev.Time.Minute()).Format(timeFormat)
	short := ShortNames[ev.Name]

	if strings.Contains(mode, "{{") {
		return formatCustom(mode, FormatData{
			Name:      ev.Name,
			ShortName: short,
			Time:      timeStr,
			Remaining: remaining,
			Hours:     int(d.Hours()),
			Minutes:   int(d.Minutes()) % 60,
			Day:       day,
		})
	}

	switch mode {
	case FormatTimeRemaining:
		return remaining
	case FormatEventTime:
		return timeStr
	case FormatNameAndRemaining:
		return fmt.Sprintf("%s %s", ev.Name, remaining)
	case FormatShortAndRemain:
		return fmt.Sprintf("%s %s", short, remaining)
	case FormatFull:
		return fmt.Sprintf("%s %s (%s)", ev.Name, timeStr, remaining)
	default:
		return fmt.Sprintf("%s %s", ev.Name, timeStr)
	}
}

// formatCustom executes a user-provided Go template string against the FormatData.
func formatCustom(tmpl string, data FormatData) string {
	t, err := template.New("custom").Parse(tmpl)
	if err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	return buf.String()
}
