package cache

import (
	"fmt"
	"math"
	"strings"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
)

// Prefix namespaces every key this subsystem owns. Eviction and purge only
// touch keys under it.
const Prefix = "ramadan:"

// Kind distinguishes cached payload types.
type Kind string

const (
	KindDay      Kind = "day"
	KindCalendar Kind = "calendar"
)

// Location-independent singleton keys.
const (
	MetaKey = Prefix + "meta"
	GeoKey  = Prefix + "geo"
)

// Key identifies a cached payload. Coordinates are rounded to four decimals
// (about 11 m) so GPS jitter maps to the same entry. A location known only
// by name is keyed by Place instead.
type Key struct {
	Kind   Kind
	Lat    float64
	Lng    float64
	Place  string
	Method int
	// Date is optional, "YYYY-MM-DD".
	Date string
	// Offsets is optional; nil omits the segment.
	Offsets *bool
}

// DayKey is the key for one fetched day.
func DayKey(loc geo.Location, method int, useOffsets bool, date string) Key {
	k := keyFor(KindDay, loc, method, useOffsets)
	k.Date = date
	return k
}

// CalendarKey is the key for a merged calendar.
func CalendarKey(loc geo.Location, method int, useOffsets bool) Key {
	return keyFor(KindCalendar, loc, method, useOffsets)
}

func keyFor(kind Kind, loc geo.Location, method int, useOffsets bool) Key {
	k := Key{Kind: kind, Lat: loc.Latitude, Lng: loc.Longitude, Method: method, Offsets: &useOffsets}
	if !loc.HasCoordinates() {
		k.Place = placeSlug(loc.City, loc.Country)
	}
	return k
}

// placeSlug lowercases and joins name parts with "-", dropping anything that
// could collide with the ":" separator.
func placeSlug(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		for _, f := range strings.Fields(strings.ToLower(p)) {
			if b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteString(strings.ReplaceAll(f, ":", ""))
		}
	}
	return b.String()
}

// String renders ramadan:{kind}:{lat}:{lng}:m{method}[:d{date}][:o{0|1}], or
// ramadan:{kind}:p{place}:m{method}... for a named location.
func (k Key) String() string {
	var b strings.Builder
	if k.Place != "" {
		fmt.Fprintf(&b, "%s%s:p%s:m%d", Prefix, k.Kind, k.Place, k.Method)
	} else {
		fmt.Fprintf(&b, "%s%s:%s:%s:m%d", Prefix, k.Kind, round4(k.Lat), round4(k.Lng), k.Method)
	}
	if k.Date != "" {
		b.WriteString(":d")
		b.WriteString(k.Date)
	}
	if k.Offsets != nil {
		if *k.Offsets {
			b.WriteString(":o1")
		} else {
			b.WriteString(":o0")
		}
	}
	return b.String()
}

func round4(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // normalize -0
	}
	return fmt.Sprintf("%.4f", r)
}
