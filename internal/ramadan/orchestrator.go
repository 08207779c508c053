package ramadan

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smokyabdulrahman/ramadan-times/internal/cache"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
	"github.com/smokyabdulrahman/ramadan-times/internal/prayer"
	"github.com/smokyabdulrahman/ramadan-times/internal/timings"
)

const (
	// DefaultBatchSize is the number of days fetched concurrently.
	DefaultBatchSize = 10
	// MaxBatchSize caps concurrent day fetches whatever BatchSize says.
	MaxBatchSize = 10
)

// Fetcher resolves one day's times. *timings.Fetcher satisfies it.
type Fetcher interface {
	FetchDay(ctx context.Context, loc geo.Location, method int, date time.Time) timings.DayTimes
}

// ProgressFunc receives 0-100 after each batch. Values never decrease.
type ProgressFunc func(percent int)

// Result is the outcome of one orchestrated run.
type Result struct {
	Days      []Day
	Succeeded int
	Total     int
}

// Summary returns e.g. "Loaded 27/30 days".
func (r Result) Summary() string {
	return summary(r.Succeeded, r.Total)
}

// Orchestrator resolves a window of days in sequential batches; days within
// a batch are resolved concurrently.
type Orchestrator struct {
	Fetcher   Fetcher
	Cache     *cache.Cache // optional
	BatchSize int
	Metrics   metrics.Recorder
	Logger    zerolog.Logger
}

// NewOrchestrator returns an orchestrator with the default batch size.
func NewOrchestrator(f Fetcher, c *cache.Cache, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Fetcher:   f,
		Cache:     c,
		BatchSize: DefaultBatchSize,
		Metrics:   metrics.NewNoOpCollector(),
		Logger:    logger,
	}
}

// Run resolves every stub. A failed day degrades to fallback times and never
// fails the run. Cancellation is checked before each batch; a cancelled run
// returns ctx.Err() and no days.
func (o *Orchestrator) Run(ctx context.Context, stubs []hijri.Stub, loc geo.Location, method int, useOffsets bool, currentDay int, progress ProgressFunc) (Result, error) {
	size := o.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}

	days := make([]Day, len(stubs))
	succeeded := make([]bool, len(stubs))
	batches := (len(stubs) + size - 1) / size
	last := 0

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		lo := b * size
		hi := min(lo+size, len(stubs))
		start := time.Now()

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			i := i
			g.Go(func() error {
				t := o.resolve(gctx, stubs[i], loc, method, useOffsets)
				days[i] = merge(stubs[i], t, currentDay)
				succeeded[i] = t.Success
				return nil
			})
		}
		_ = g.Wait()

		pct := int(math.Round(100 * float64(b+1) / float64(batches)))
		if pct < last {
			pct = last
		}
		last = pct
		o.Logger.Debug().Int("batch", b+1).Int("days", hi-lo).Dur("took", time.Since(start)).Int("progress", pct).Msg("batch settled")
		if o.Metrics != nil {
			o.Metrics.RecordProgress(pct)
		}
		if progress != nil {
			progress(pct)
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Days: days, Total: len(days)}
	for _, ok := range succeeded {
		if ok {
			res.Succeeded++
		}
	}
	return res, nil
}

// resolve consults the cache before fetching. Only successful fetches are cached.
func (o *Orchestrator) resolve(ctx context.Context, s hijri.Stub, loc geo.Location, method int, useOffsets bool) timings.DayTimes {
	date := s.Date.Format(hijri.DateLayout)
	key := cache.DayKey(loc, method, useOffsets, date).String()

	if o.Cache != nil {
		var cached timings.DayTimes
		if o.Cache.GetJSON(key, &cached) && cached.Success {
			o.Logger.Debug().Str("key", key).Int("ordinal", s.Ordinal).Msg("day cache hit")
			return cached
		}
	}

	t := o.Fetcher.FetchDay(ctx, loc, method, s.Date)
	if t.Success && o.Cache != nil {
		o.Cache.SetJSON(key, t)
	}
	return t
}

// merge attaches times and display strings to a stub.
func merge(s hijri.Stub, t timings.DayTimes, currentDay int) Day {
	sehri, err := prayer.ParseClock(t.Sehri)
	if err != nil {
		sehri = prayer.MustClock(timings.FallbackSehri)
	}
	iftar, err := prayer.ParseClock(t.Iftar)
	if err != nil {
		iftar = prayer.MustClock(timings.FallbackIftar)
	}

	return Day{
		Ordinal:         s.Ordinal,
		Date:            s.Date.Format(hijri.DateLayout),
		Hijri:           s.Hijri.Label(),
		Weekday:         s.Weekday,
		Sehri24:         sehri.String(),
		Iftar24:         iftar.String(),
		Sehri12:         sehri.Format12(),
		Iftar12:         iftar.Format12(),
		FastingDuration: prayer.FastingDuration(sehri, iftar),
		IsToday:         currentDay > 0 && s.Ordinal == currentDay,
		FetchSucceeded:  t.Success,
	}
}
