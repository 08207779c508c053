package offset

import (
	"strings"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
)

// Correction is a minute-level shift applied to fetched times. It runs after,
// and independently of, the day-level Offset.
type Correction struct {
	SehriMinutes int `json:"sehri_minutes"`
	IftarMinutes int `json:"iftar_minutes"`
}

// Apply shifts both clocks, wrapping around midnight.
func (c Correction) Apply(sehri, iftar prayer.Clock) (prayer.Clock, prayer.Clock) {
	return sehri.Add(c.SehriMinutes), iftar.Add(c.IftarMinutes)
}

// IsZero reports whether the correction is a no-op.
func (c Correction) IsZero() bool {
	return c.SehriMinutes == 0 && c.IftarMinutes == 0
}

// MinuteCorrection returns the district correction for loc, if its country
// publishes one and the city is in the table.
func (r *Resolver) MinuteCorrection(loc geo.Location) (Correction, bool) {
	if !strings.EqualFold(r.Country(loc), "Bangladesh") {
		return Correction{}, false
	}
	city := normalize(loc.City)
	for name, c := range bangladeshDistricts {
		if normalize(name) == city {
			return c, true
		}
	}
	return Correction{}, false
}

// MinuteCorrection is Default().MinuteCorrection(loc).
func MinuteCorrection(loc geo.Location) (Correction, bool) {
	return defaultResolver.MinuteCorrection(loc)
}
