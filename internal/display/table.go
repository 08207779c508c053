package display

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

// approxMark flags days that fell back to default times.
const approxMark = "~"

// Table renders an aligned text table.
type Table struct {
	headers []string
	rows    [][]string
	// highlight is the 0-based row to highlight; -1 for none.
	highlight int
	// dimmed rows are rendered with Warn.
	dimmed map[int]bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers []string) *Table {
	return &Table{
		headers:   headers,
		highlight: -1,
		dimmed:    make(map[int]bool),
	}
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(values []string) {
	t.rows = append(t.rows, values)
}

// SetHighlightRow sets which row (0-based) is highlighted.
func (t *Table) SetHighlightRow(idx int) {
	t.highlight = idx
}

// MarkRow renders row idx in the warning color.
func (t *Table) MarkRow(idx int) {
	t.dimmed[idx] = true
}

// Render produces the formatted table with a two-space indent.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("  " + Bold(formatRow(t.headers, widths)) + "\n")

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	sb.WriteString(Dim("  "+strings.Join(sep, "  ")) + "\n")

	for i, row := range t.rows {
		line := formatRow(row, widths)
		switch {
		case i == t.highlight:
			line = Accent(line)
		case t.dimmed[i]:
			line = Warn(line)
		}
		sb.WriteString("  " + line + "\n")
	}
	return sb.String()
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = cell + strings.Repeat(" ", w-utf8.RuneCountInString(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// CalendarTable lays out the 30 days of cal. Today's row is highlighted and
// days without fetched times are marked approximate.
func CalendarTable(cal *ramadan.Calendar, timeFormat string) *Table {
	t := NewTable([]string{"Day", "Date", "Weekday", "Sehri", "Iftar", "Fasting"})
	for i, d := range cal.Days {
		sehri, iftar := d.Sehri24, d.Iftar24
		if timeFormat == "12h" {
			sehri, iftar = d.Sehri12, d.Iftar12
		}
		if !d.FetchSucceeded {
			sehri += approxMark
			iftar += approxMark
			t.MarkRow(i)
		}
		t.AddRow([]string{
			fmt.Sprintf("%d", d.Ordinal),
			d.Date,
			d.Weekday[:min(3, len(d.Weekday))],
			sehri,
			iftar,
			d.FastingDuration,
		})
		if d.IsToday {
			t.SetHighlightRow(i)
		}
	}
	return t
}

// RenderCalendar renders a header line, the day table and a footer.
func RenderCalendar(cal *ramadan.Calendar, timeFormat string) string {
	var sb strings.Builder

	offset := "national offsets off"
	if cal.UseOffsets {
		offset = fmt.Sprintf("offset %+d", cal.OffsetUsed)
	}
	fmt.Fprintf(&sb, "\n  %s\n", Bold(fmt.Sprintf("Ramadan %d AH  ·  %s", cal.HijriYear, cal.Location)))
	fmt.Fprintf(&sb, "  %s\n\n", Dim(fmt.Sprintf("%s to %s, method %d, %s", cal.StartDate, cal.EndDate, cal.Method, offset)))

	sb.WriteString(CalendarTable(cal, timeFormat).Render())

	footer := cal.Summary()
	if cal.Loaded < len(cal.Days) {
		sb.WriteString("\n  " + Warn(footer+"; "+approxMark+" marks approximate times") + "\n")
	} else {
		sb.WriteString("\n  " + Good(footer) + "\n")
	}
	return sb.String()
}

// ProgressLine renders e.g. "[######....] 60% Fetching prayer times".
func ProgressLine(percent int, stage string) string {
	const width = 20
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	return fmt.Sprintf("[%s] %3d%% %s", bar, percent, stage)
}
