package api

import "time"

// Response represents the top-level Al Adhan API response. Only the fields
// this module reads are decoded.
type Response struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   Data   `json:"data"`
}

// Data holds the prayer timings and the date they were computed for.
type Data struct {
	Timings Timings  `json:"timings"`
	Date    DateInfo `json:"date"`
}

// Timings holds the two times a fast is bounded by, as HH:MM strings.
// The API may include a timezone suffix like " (BST)" which we strip during parsing.
type Timings struct {
	Fajr    string `json:"Fajr"`
	Maghrib string `json:"Maghrib"`
}

// DateLayout is the DD-MM-YYYY layout the API uses in paths and responses.
const DateLayout = "02-01-2006"

// DateInfo contains the date the timings belong to.
type DateInfo struct {
	Gregorian GregorianDate `json:"gregorian"`
}

// ForDate reports whether the response was computed for date. A response
// without a Gregorian date is accepted.
func (d DateInfo) ForDate(date time.Time) bool {
	if d.Gregorian.Date == "" {
		return true
	}
	return d.Gregorian.Date == date.Format(DateLayout)
}

// GregorianDate is the Gregorian date from the API response.
type GregorianDate struct {
	Date string `json:"date"` // e.g. "28-02-2026"
}

// HijriConversion is the unadjusted Hijri date returned by the gToH endpoint.
type HijriConversion struct {
	Day       int
	Month     int
	Year      int
	Gregorian string // "DD-MM-YYYY" echoed by the API
}
