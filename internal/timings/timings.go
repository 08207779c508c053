// Package timings fetches the sehri and iftar times for a single day. It never
// fails: any problem with the remote service yields the fallback times.
package timings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/api"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
	"github.com/smokyabdulrahman/ramadan-times/internal/offset"
	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
)

// Times returned when a fetch fails.
const (
	FallbackSehri = "05:30"
	FallbackIftar = "18:15"
)

// DefaultTimeout bounds a single day fetch.
const DefaultTimeout = 8 * time.Second

// DayTimes is the result of one day fetch. Times are 24-hour "HH:MM".
type DayTimes struct {
	Sehri   string `json:"sehri"`
	Iftar   string `json:"iftar"`
	Success bool   `json:"success"`
}

// Fallback returns the sentinel times with Success=false.
func Fallback() DayTimes {
	return DayTimes{Sehri: FallbackSehri, Iftar: FallbackIftar}
}

// Client is the subset of *api.Client used for day fetches.
type Client interface {
	FetchByCoordinates(ctx context.Context, date time.Time, lat, lon float64, method int) (*api.Response, error)
	FetchByCity(ctx context.Context, date time.Time, city, country string, method int) (*api.Response, error)
}

// Fetcher resolves one day's times.
type Fetcher struct {
	Client   Client
	Resolver *offset.Resolver
	Timeout  time.Duration
	Metrics  metrics.Recorder
	Logger   zerolog.Logger
}

// NewFetcher returns a fetcher with the default timeout and resolver.
func NewFetcher(client Client, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		Client:   client,
		Resolver: offset.Default(),
		Timeout:  DefaultTimeout,
		Metrics:  metrics.NewNoOpCollector(),
		Logger:   logger,
	}
}

// FetchDay returns sehri (Fajr) and iftar (Maghrib) for date at loc. After a
// successful fetch the location's minute correction, if any, is applied.
func (f *Fetcher) FetchDay(ctx context.Context, loc geo.Location, method int, date time.Time) DayTimes {
	sehri, iftar, err := f.fetch(ctx, loc, method, date)
	if err != nil {
		f.Logger.Debug().Err(err).Str("date", date.Format("2006-01-02")).Str("location", loc.String()).Msg("day fetch failed, using fallback times")
		f.record(false)
		return Fallback()
	}

	if c, ok := f.Resolver.MinuteCorrection(loc); ok {
		sehri, iftar = c.Apply(sehri, iftar)
	}

	f.record(true)
	return DayTimes{Sehri: sehri.String(), Iftar: iftar.String(), Success: true}
}

func (f *Fetcher) fetch(ctx context.Context, loc geo.Location, method int, date time.Time) (prayer.Clock, prayer.Clock, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		resp *api.Response
		err  error
	)
	switch {
	case loc.HasCoordinates():
		resp, err = f.Client.FetchByCoordinates(ctx, date, loc.Latitude, loc.Longitude, method)
	case loc.City != "":
		resp, err = f.Client.FetchByCity(ctx, date, loc.City, loc.Country, method)
	default:
		return 0, 0, fmt.Errorf("location has neither coordinates nor city")
	}
	if err != nil {
		return 0, 0, err
	}
	if !resp.Data.Date.ForDate(date) {
		return 0, 0, fmt.Errorf("response is for %s, not %s", resp.Data.Date.Gregorian.Date, date.Format(api.DateLayout))
	}

	sehri, err := prayer.ParseClock(resp.Data.Timings.Fajr)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing Fajr: %w", err)
	}
	iftar, err := prayer.ParseClock(resp.Data.Timings.Maghrib)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing Maghrib: %w", err)
	}
	return sehri, iftar, nil
}

func (f *Fetcher) record(success bool) {
	if f.Metrics != nil {
		f.Metrics.RecordFetch(success)
	}
}
