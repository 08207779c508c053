package hijri

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/api"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/offset"
)

// DateLayout is the ISO date layout used for Gregorian dates throughout.
const DateLayout = "2006-01-02"

// Lookup converts a Gregorian date to an unadjusted Hijri date.
// *api.Client satisfies it.
type Lookup interface {
	HijriForDate(ctx context.Context, date time.Time) (*api.HijriConversion, error)
}

// Reference anchors the window: Start is 1 Ramadan for the earliest observing
// group (offset 0) and Year is its Hijri year.
type Reference struct {
	Start time.Time
	Year  int
}

// DefaultReference is Ramadan 1447 AH, first observed on 18 February 2026.
func DefaultReference() Reference {
	return Reference{
		Start: time.Date(2026, time.February, 18, 0, 0, 0, 0, time.UTC),
		Year:  1447,
	}
}

// StartFor returns 1 Ramadan for the given offset group.
func (r Reference) StartFor(o offset.Offset) time.Time {
	return r.Start.AddDate(0, 0, o.Days())
}

// Seed is 1 Ramadan of the reference year.
func (r Reference) Seed() Date {
	return Date{Day: 1, Month: Ramadan, Year: r.Year}
}

// Stub is a Ramadan day without prayer times.
//
// IsToday is the Gregorian view: the stub's date equals today's date in the
// location's timezone. The merged ramadan.Day is marked by the Hijri ordinal
// instead, so the two differ when the Hijri lookup and the window disagree,
// for instance when the lookup failed and the seed date was used.
type Stub struct {
	Ordinal int       `json:"ordinal"`
	Date    time.Time `json:"date"`
	Weekday string    `json:"weekday"`
	Hijri   Date      `json:"hijri"`
	IsToday bool      `json:"is_today"`
}

// Engine produces Hijri dates and Ramadan windows for a location.
type Engine struct {
	Lookup    Lookup
	Resolver  *offset.Resolver
	Reference Reference
	Now       func() time.Time
	Logger    zerolog.Logger
}

// NewEngine returns an engine over lookup with the default reference and resolver.
func NewEngine(lookup Lookup, logger zerolog.Logger) *Engine {
	return &Engine{
		Lookup:    lookup,
		Resolver:  offset.Default(),
		Reference: DefaultReference(),
		Now:       time.Now,
		Logger:    logger,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) reference() Reference {
	if e.Reference.Start.IsZero() {
		return DefaultReference()
	}
	return e.Reference
}

// WithOffsets returns e when use is true, otherwise a copy that resolves
// every location to GroupFeb18.
func (e *Engine) WithOffsets(use bool) *Engine {
	if use {
		return e
	}
	cp := *e
	cp.Resolver = nil
	return &cp
}

// Offset returns the resolver decision for loc.
func (e *Engine) Offset(loc geo.Location) offset.Offset {
	return e.Resolver.Resolve(loc)
}

// Current returns today's Hijri date for loc with the location's day offset
// applied. A failed lookup falls back to a date counted from the reference
// start, so Current never fails.
func (e *Engine) Current(ctx context.Context, loc geo.Location) Date {
	off := e.Offset(loc)
	today := civilDate(e.now(), loc.TZ())

	if e.Lookup != nil {
		conv, err := e.Lookup.HijriForDate(ctx, today)
		if err == nil {
			raw := Date{Day: conv.Day, Month: conv.Month, Year: conv.Year}
			return raw.AddDays(int(off))
		}
		e.Logger.Warn().Err(err).Str("date", today.Format(DateLayout)).Msg("hijri lookup failed, using seed date")
	}

	return e.seedFor(today, off)
}

// seedFor counts from 1 Ramadan of the location's group.
func (e *Engine) seedFor(today time.Time, off offset.Offset) Date {
	ref := e.reference()
	days := daysBetween(ref.StartFor(off), today)
	return ref.Seed().AddDays(days)
}

// Window returns the 30 Ramadan days for loc, starting at the reference start
// shifted by the location's offset.
func (e *Engine) Window(loc geo.Location) []Stub {
	ref := e.reference()
	start := ref.StartFor(e.Offset(loc))
	today := civilDate(e.now(), loc.TZ()).Format(DateLayout)

	stubs := make([]Stub, DaysInRamadan)
	for i := range stubs {
		d := start.AddDate(0, 0, i)
		stubs[i] = Stub{
			Ordinal: i + 1,
			Date:    d,
			Weekday: d.Weekday().String(),
			Hijri:   Date{Day: i + 1, Month: Ramadan, Year: ref.Year},
			IsToday: d.Format(DateLayout) == today,
		}
	}
	return stubs
}

// civilDate returns midnight UTC of t's calendar date in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	f := civilDate(from, time.UTC)
	return int(to.Sub(f).Hours() / 24)
}
