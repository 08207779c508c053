package display

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

func TestNewTable(t *testing.T) {
	tbl := NewTable([]string{"Name", "Value"})
	if tbl.highlight != -1 {
		t.Errorf("highlight = %d, want -1", tbl.highlight)
	}
}

func TestTable_EmptyHeaders(t *testing.T) {
	if got := NewTable(nil).Render(); got != "" {
		t.Errorf("Render() with no headers = %q, want empty", got)
	}
}

func TestTable_BasicRender(t *testing.T) {
	SetEnabled(false)

	tbl := NewTable([]string{"Day", "Sehri", "Iftar"})
	tbl.AddRow([]string{"1", "04:58", "18:01"})
	tbl.AddRow([]string{"2", "04:57"})

	got := tbl.Render()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "  Day  Sehri  Iftar" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Error("missing separator line")
	}
	if lines[2] != "  1    04:58  18:01" {
		t.Errorf("row = %q", lines[2])
	}
	if lines[3] != "  2    04:57" {
		t.Errorf("short row = %q", lines[3])
	}
}

func TestTable_HighlightAndMark(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	tbl := NewTable([]string{"Day"})
	tbl.AddRow([]string{"1"})
	tbl.AddRow([]string{"2"})
	tbl.AddRow([]string{"3"})
	tbl.SetHighlightRow(0)
	tbl.MarkRow(2)

	got := tbl.Render()
	if !strings.Contains(got, bold+cyan+"1") {
		t.Error("highlighted row should use the accent color")
	}
	if !strings.Contains(got, yellow+"3") {
		t.Error("marked row should use the warning color")
	}
	if strings.Contains(got, cyan+"2") || strings.Contains(got, yellow+"2") {
		t.Error("plain row should not be colored")
	}
}

func testCalendar() *ramadan.Calendar {
	start := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	days := make([]ramadan.Day, 30)
	for i := range days {
		d := start.AddDate(0, 0, i)
		days[i] = ramadan.Day{
			Ordinal:         i + 1,
			Date:            d.Format("2006-01-02"),
			Hijri:           fmt.Sprintf("%d Ramadan 1447 AH", i+1),
			Weekday:         d.Weekday().String(),
			Sehri24:         "04:58",
			Iftar24:         "18:01",
			Sehri12:         "4:58 AM",
			Iftar12:         "6:01 PM",
			FastingDuration: "13h3m",
			IsToday:         i == 10,
			FetchSucceeded:  i != 3,
		}
	}
	return &ramadan.Calendar{
		HijriYear:  1447,
		StartDate:  days[0].Date,
		EndDate:    days[29].Date,
		CurrentDay: 11,
		Days:       days,
		OffsetUsed: -1,
		Loaded:     29,
		Location:   geo.Location{City: "Dhaka", Country: "Bangladesh"},
		Method:     1,
		UseOffsets: true,
	}
}

func TestCalendarTable(t *testing.T) {
	SetEnabled(false)
	cal := testCalendar()

	tbl := CalendarTable(cal, "24h")
	if len(tbl.rows) != 30 {
		t.Fatalf("rows = %d, want 30", len(tbl.rows))
	}
	if tbl.highlight != 10 {
		t.Errorf("highlight = %d, want 10", tbl.highlight)
	}
	if !tbl.dimmed[3] || len(tbl.dimmed) != 1 {
		t.Errorf("dimmed = %v, want only row 3", tbl.dimmed)
	}

	first := tbl.rows[0]
	want := []string{"1", "2026-02-19", "Thu", "04:58", "18:01", "13h3m"}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("row 0 col %d = %q, want %q", i, first[i], want[i])
		}
	}
	if tbl.rows[3][3] != "04:58~" {
		t.Errorf("approximate sehri = %q, want marked", tbl.rows[3][3])
	}

	tbl = CalendarTable(cal, "12h")
	if tbl.rows[0][4] != "6:01 PM" {
		t.Errorf("12h iftar = %q", tbl.rows[0][4])
	}
}

func TestRenderCalendar(t *testing.T) {
	SetEnabled(false)
	cal := testCalendar()

	got := RenderCalendar(cal, "24h")
	for _, want := range []string{
		"Ramadan 1447 AH",
		"Dhaka, Bangladesh",
		"2026-02-19 to 2026-03-20",
		"offset -1",
		"Loaded 29/30 days",
		"~ marks approximate times",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderCalendar missing %q in:\n%s", want, got)
		}
	}

	cal.UseOffsets = false
	cal.Loaded = 30
	for i := range cal.Days {
		cal.Days[i].FetchSucceeded = true
	}
	got = RenderCalendar(cal, "24h")
	if !strings.Contains(got, "national offsets off") {
		t.Error("missing offsets-off note")
	}
	if strings.Contains(got, "approximate") {
		t.Error("fully loaded calendar should not mention approximate times")
	}
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{0, "[....................]   0% Fetching"},
		{33, "[######..............]  33% Fetching"},
		{100, "[####################] 100% Fetching"},
		{150, "[####################] 100% Fetching"},
		{-5, "[....................]   0% Fetching"},
	}
	for _, tt := range tests {
		if got := ProgressLine(tt.pct, "Fetching"); got != tt.want {
			t.Errorf("ProgressLine(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
