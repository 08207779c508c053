package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/api"
	"github.com/smokyabdulrahman/ramadan-times/internal/cache"
	"github.com/smokyabdulrahman/ramadan-times/internal/config"
	"github.com/smokyabdulrahman/ramadan-times/internal/controller"
	"github.com/smokyabdulrahman/ramadan-times/internal/display"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
	"github.com/smokyabdulrahman/ramadan-times/internal/offset"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
	"github.com/smokyabdulrahman/ramadan-times/internal/timings"
)

// apiBaseURL overrides the Al Adhan endpoint in tests.
var apiBaseURL string

// now is the wall clock used to pick today's row.
var now = time.Now

// app holds everything a command needs to produce a calendar.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	metrics  *metrics.Collector
	client   *api.Client
	cache    *cache.Cache // nil when no store could be opened
	resolver *offset.Resolver
	engine   *hijri.Engine
	ctrl     *controller.Controller
}

// newApp wires the store, cache, API client, date engine, orchestrator and
// controller from cfg. A store that cannot be opened disables caching
// rather than failing the command.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	resolver, err := offset.LoadFile(cfg.OffsetTable)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.NewCollector(""),
		resolver: resolver,
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("cache disabled")
	} else {
		a.cache = cache.New(store,
			cache.WithLogger(logger),
			cache.WithMetrics(a.metrics),
		)
	}

	a.client = api.NewClient(api.WithRateLimit(cfg.RateLimitOrDefault(api.DefaultRateLimit), api.DefaultBurst))
	if apiBaseURL != "" {
		a.client.BaseURL = apiBaseURL
	}

	fetcher := timings.NewFetcher(a.client, logger)
	fetcher.Resolver = resolver
	fetcher.Timeout = cfg.Timeout(timings.DefaultTimeout)
	fetcher.Metrics = a.metrics

	a.engine = hijri.NewEngine(a.client, logger)
	a.engine.Resolver = resolver
	ref, err := reference(cfg)
	if err != nil {
		return nil, err
	}
	a.engine.Reference = ref

	orch := ramadan.NewOrchestrator(fetcher, a.cache, logger)
	if cfg.BatchSize > 0 {
		orch.BatchSize = cfg.BatchSize
	}
	orch.Metrics = a.metrics

	a.ctrl = controller.New(controller.Config{
		Engine:       a.engine,
		Orchestrator: orch,
		Cache:        a.cache,
		Metrics:      a.metrics,
		Logger:       logger,
		Defaults:     a.request(geo.Location{}),
	})
	return a, nil
}

// openStore picks Redis when an address is configured, else the file store.
func openStore(ctx context.Context, cfg config.Config) (cache.Store, error) {
	if cfg.RedisAddr != "" {
		rdb, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStore(rdb, cache.DefaultTTL), nil
	}

	dir := cfg.CacheDir
	if dir == "" {
		var err error
		if dir, err = cache.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return cache.NewFileStore(dir)
}

// reference builds the Ramadan anchor from ramadan_start and hijri_year.
func reference(cfg config.Config) (hijri.Reference, error) {
	ref := hijri.DefaultReference()
	start, err := cfg.Start()
	if err != nil {
		return ref, err
	}
	if !start.IsZero() {
		ref.Start = start
	}
	if cfg.HijriYear > 0 {
		ref.Year = cfg.HijriYear
	}
	return ref, nil
}

func (a *app) request(loc geo.Location) controller.Request {
	return controller.Request{
		Location:   loc,
		Method:     a.cfg.MethodOrDefault(-1),
		UseOffsets: a.cfg.UseOffsetsOrDefault(true),
	}
}

// location resolves the configured location. Without coordinates or a city
// it falls back to the cached IP lookup, then to a fresh one.
func (a *app) location(ctx context.Context) (geo.Location, error) {
	cfg := a.cfg
	switch {
	case cfg.Latitude != 0 || cfg.Longitude != 0:
		return geo.Location{
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			City:      cfg.City,
			Country:   cfg.Country,
			Timezone:  cfg.Timezone,
		}, nil
	case cfg.City != "":
		return geo.Location{City: cfg.City, Country: cfg.Country, Timezone: cfg.Timezone}, nil
	}

	var loc geo.Location
	if a.cache != nil && a.cache.GetJSON(cache.GeoKey, &loc) {
		a.logger.Debug().Str("location", loc.String()).Msg("using cached location")
		return loc, nil
	}

	detected, err := geo.DetectLocation(ctx)
	if err != nil {
		return geo.Location{}, fmt.Errorf("could not determine location (set one with --city/--country or 'ramadan config set city <name>'): %w", err)
	}
	if a.cache != nil {
		a.cache.SetJSON(cache.GeoKey, detected)
	}
	return *detected, nil
}

// calendar loads the calendar for the resolved location, drawing a progress
// line on stderr when it is a terminal. With refresh the saved calendar is
// discarded first.
func (a *app) calendar(ctx context.Context, refresh bool) (*ramadan.Calendar, error) {
	loc, err := a.location(ctx)
	if err != nil {
		return nil, err
	}
	if refresh {
		a.ctrl.Clear()
	}

	var done chan struct{}
	if display.IsTerminal(os.Stderr) && !FlagJSON {
		snaps, unsubscribe := a.ctrl.Subscribe()
		done = make(chan struct{})
		go func() {
			defer close(done)
			drawn := false
			for s := range snaps {
				if s.Loading {
					fmt.Fprintf(os.Stderr, "\r  %s", display.ProgressLine(s.Progress, s.StageMessage))
					drawn = true
				}
			}
			if drawn {
				fmt.Fprint(os.Stderr, "\r\033[K")
			}
		}()
		defer func() {
			unsubscribe()
			<-done
		}()
	}

	cal, err := a.ctrl.Load(ctx, a.request(loc))
	if err != nil {
		return nil, err
	}
	return markToday(cal, now()), nil
}

// markToday returns a copy of cal with IsToday and CurrentDay recomputed by
// Gregorian date for t in the calendar location's timezone. A restored
// calendar may have been built on an earlier day. The server keeps the
// build-time Hijri ordinal marking.
func markToday(cal *ramadan.Calendar, t time.Time) *ramadan.Calendar {
	out := *cal
	out.Days = make([]ramadan.Day, len(cal.Days))
	copy(out.Days, cal.Days)

	today := t.In(cal.Location.TZ()).Format(hijri.DateLayout)
	out.CurrentDay = 0
	for i := range out.Days {
		out.Days[i].IsToday = out.Days[i].Date == today
		if out.Days[i].IsToday {
			out.CurrentDay = out.Days[i].Ordinal
		}
	}
	return &out
}

// Close flushes pending cache writes.
func (a *app) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
