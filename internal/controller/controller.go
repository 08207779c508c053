// Package controller decides when the Ramadan calendar must be rebuilt and
// owns the single in-flight load. Consumers read Snapshots and call the
// mutators; everything else is internal.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/cache"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrLoadAborted is returned by a load that was superseded or cancelled.
	// It never becomes the controller's error state.
	ErrLoadAborted = errors.New("load aborted")
	// ErrNoLocation is returned when a load is requested without a usable location.
	ErrNoLocation = errors.New("location has neither coordinates nor city")
)

// Request is the tuple a calendar is built for.
type Request struct {
	Location   geo.Location `json:"location"`
	Method     int          `json:"method"`
	UseOffsets bool         `json:"use_offsets"`
}

// Same reports whether r and o would produce the same calendar.
func (r Request) Same(o Request) bool {
	return r.Location.SamePlace(o.Location) && r.Method == o.Method && r.UseOffsets == o.UseOffsets
}

func (r Request) valid() bool {
	return r.Location.HasCoordinates() || r.Location.City != ""
}

// Snapshot is the consumer view of the controller.
type Snapshot struct {
	State        State             `json:"state"`
	Calendar     *ramadan.Calendar `json:"calendar,omitempty"`
	Loading      bool              `json:"loading"`
	Progress     int               `json:"progress"`
	StageMessage string            `json:"stage_message,omitempty"`
	Error        string            `json:"error,omitempty"`
	Request      *Request          `json:"request,omitempty"`
	LoadID       string            `json:"load_id,omitempty"`
}

// meta is persisted next to the calendar so a restart can find it.
type meta struct {
	Location   geo.Location `json:"location"`
	Method     int          `json:"method"`
	UseOffsets bool         `json:"use_offsets"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Config wires a Controller.
type Config struct {
	Engine       *hijri.Engine
	Orchestrator *ramadan.Orchestrator
	Cache        *cache.Cache // optional
	Metrics      metrics.Recorder
	Logger       zerolog.Logger
	Now          func() time.Time
	// Defaults seeds the request before any location is known.
	Defaults Request
}

// Controller is safe for concurrent use.
type Controller struct {
	engine  *hijri.Engine
	orch    *ramadan.Orchestrator
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	state    State
	cal      *ramadan.Calendar
	loaded   *Request
	req      Request
	progress int
	stage    string
	errMsg   string
	loadID   string
	gen      uint64
	cancel   context.CancelFunc
	subs     map[chan Snapshot]struct{}
}

// New creates a controller and restores a persisted calendar if one is
// still within its TTL.
func New(cfg Config) *Controller {
	c := &Controller{
		engine:  cfg.Engine,
		orch:    cfg.Orchestrator,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
		req:     cfg.Defaults,
		subs:    make(map[chan Snapshot]struct{}),
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNoOpCollector()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.rehydrate()
	return c
}

func (c *Controller) rehydrate() {
	if c.cache == nil {
		return
	}
	var m meta
	if !c.cache.GetJSON(cache.MetaKey, &m) {
		return
	}
	req := Request{Location: m.Location, Method: m.Method, UseOffsets: m.UseOffsets}

	var cal ramadan.Calendar
	if !c.cache.GetJSON(cache.CalendarKey(req.Location, req.Method, req.UseOffsets).String(), &cal) {
		c.req = req
		return
	}
	if err := cal.Validate(); err != nil {
		c.logger.Warn().Err(err).Msg("discarding persisted calendar")
		return
	}

	c.req = req
	c.loaded = &req
	c.cal = &cal
	c.state = Loaded
	c.progress = 100
	c.stage = "Restored " + cal.Summary()
	c.metrics.RecordLoad(0, metrics.OutcomeCached)
	c.logger.Info().Str("location", req.Location.String()).Time("generated_at", cal.GeneratedAt).Msg("restored persisted calendar")
}

// Snapshot returns the current consumer view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        c.state,
		Calendar:     c.cal,
		Loading:      c.state == Loading,
		Progress:     c.progress,
		StageMessage: c.stage,
		Error:        c.errMsg,
		LoadID:       c.loadID,
	}
	if c.req.valid() {
		r := c.req
		s.Request = &r
	}
	return s
}

// Load builds the calendar for req. If req matches the loaded calendar it
// returns that calendar without doing any work.
func (c *Controller) Load(ctx context.Context, req Request) (*ramadan.Calendar, error) {
	return c.trigger(ctx, func(r *Request) { *r = req }, false)
}

// Refresh rebuilds the calendar for the current request even if unchanged.
func (c *Controller) Refresh(ctx context.Context) (*ramadan.Calendar, error) {
	return c.trigger(ctx, func(*Request) {}, true)
}

// SetLocation triggers a load when the location differs from the loaded one.
func (c *Controller) SetLocation(ctx context.Context, loc geo.Location) (*ramadan.Calendar, error) {
	return c.trigger(ctx, func(r *Request) { r.Location = loc }, false)
}

// SetMethod triggers a load when the calculation method changes.
func (c *Controller) SetMethod(ctx context.Context, method int) (*ramadan.Calendar, error) {
	return c.trigger(ctx, func(r *Request) { r.Method = method }, false)
}

// ToggleOffsets flips whether national day offsets are applied.
func (c *Controller) ToggleOffsets(ctx context.Context) (*ramadan.Calendar, error) {
	return c.trigger(ctx, func(r *Request) { r.UseOffsets = !r.UseOffsets }, false)
}

// Clear cancels any load, forgets the calendar and removes it from the cache.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Idle
	c.cal = nil
	c.loaded = nil
	c.progress = 0
	c.stage = ""
	c.errMsg = ""
	c.loadID = ""
	c.notifyLocked()
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.DeletePrefix(cache.Prefix + string(cache.KindCalendar) + ":")
		c.cache.Delete(cache.MetaKey)
	}
	c.logger.Info().Msg("calendar cleared")
}

// pending is a load claimed by begin. A pending without cancel needs no
// build: cal is already loaded for its request.
type pending struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	id     string
	req    Request
	force  bool
	cal    *ramadan.Calendar
}

// trigger applies update to the desired tuple and loads it.
func (c *Controller) trigger(ctx context.Context, update func(*Request), force bool) (*ramadan.Calendar, error) {
	p, err := c.begin(ctx, update, force)
	if err != nil {
		return nil, err
	}
	return c.run(p)
}

// begin applies update to the desired tuple under a single lock. Unless the
// loaded calendar already matches, it cancels the running load and claims a
// new generation, so triggers supersede each other in call order.
func (c *Controller) begin(ctx context.Context, update func(*Request), force bool) (*pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.req
	update(&req)
	c.req = req
	if !req.valid() {
		return nil, ErrNoLocation
	}
	if !force && c.state == Loaded && c.loaded != nil && c.loaded.Same(req) {
		return &pending{req: req, cal: c.cal}, nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	p := &pending{
		ctx:    loadCtx,
		cancel: cancel,
		gen:    c.gen,
		id:     uuid.NewString(),
		req:    req,
		force:  force,
	}

	c.state = Loading
	c.loadID = p.id
	c.progress = 0
	c.stage = "Resolving calendar offset"
	c.errMsg = ""
	c.notifyLocked()
	return p, nil
}

// run builds the calendar claimed by p and commits it unless a newer load
// has claimed the controller since.
func (c *Controller) run(p *pending) (*ramadan.Calendar, error) {
	if p.cancel == nil {
		return p.cal, nil
	}
	defer p.cancel()

	req, gen := p.req, p.gen
	log := c.logger.With().Str("load_id", p.id).Str("location", req.Location.String()).Int("method", req.Method).Bool("use_offsets", req.UseOffsets).Logger()
	log.Debug().Bool("force", p.force).Msg("calendar load started")

	calKey := cache.CalendarKey(req.Location, req.Method, req.UseOffsets).String()
	if c.cache != nil {
		c.cache.Delete(calKey)
	}

	start := c.now()
	cal, err := c.build(p.ctx, gen, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		log.Debug().Msg("calendar load superseded")
		c.metrics.RecordLoad(c.now().Sub(start), metrics.OutcomeAborted)
		return nil, ErrLoadAborted
	}
	c.cancel = nil

	if errors.Is(err, context.Canceled) {
		// The caller gave up; fall back to whatever was showing before.
		if c.cal != nil {
			c.state = Loaded
		} else {
			c.state = Idle
		}
		c.stage = ""
		c.notifyLocked()
		c.metrics.RecordLoad(c.now().Sub(start), metrics.OutcomeAborted)
		return nil, ErrLoadAborted
	}

	if err != nil {
		c.state = Error
		c.errMsg = err.Error()
		c.stage = ""
		c.notifyLocked()
		c.metrics.RecordLoad(c.now().Sub(start), metrics.OutcomeFailed)
		log.Warn().Err(err).Msg("calendar load failed")
		return nil, err
	}

	c.state = Loaded
	c.cal = cal
	r := req
	c.loaded = &r
	c.progress = 100
	c.stage = cal.Summary()
	c.notifyLocked()
	c.metrics.RecordLoad(c.now().Sub(start), metrics.OutcomeLoaded)
	log.Info().Int("loaded", cal.Loaded).Int("current_day", cal.CurrentDay).Msg("calendar loaded")

	if c.cache != nil {
		c.cache.SetJSON(calKey, cal)
		c.cache.SetJSON(cache.MetaKey, meta{
			Location:   req.Location,
			Method:     req.Method,
			UseOffsets: req.UseOffsets,
			Timestamp:  cal.GeneratedAt,
		})
	}
	return cal, nil
}

// build runs resolver, date engine and orchestrator for req.
func (c *Controller) build(ctx context.Context, gen uint64, req Request) (*ramadan.Calendar, error) {
	engine := c.engine.WithOffsets(req.UseOffsets)
	off := engine.Offset(req.Location)

	c.setStage(gen, "Resolving Hijri date")
	current := engine.Current(ctx, req.Location)
	currentDay := hijri.CurrentDay(current)
	stubs := engine.Window(req.Location)

	c.setStage(gen, "Fetching prayer times")
	res, err := c.orch.Run(ctx, stubs, req.Location, req.Method, req.UseOffsets, currentDay, func(p int) {
		c.setProgress(gen, p)
	})
	if err != nil {
		return nil, err
	}
	if res.Succeeded == 0 {
		return nil, fmt.Errorf("could not load prayer times for %s: %s", req.Location, res.Summary())
	}

	cal := &ramadan.Calendar{
		HijriYear:   engine.Reference.Year,
		StartDate:   res.Days[0].Date,
		EndDate:     res.Days[len(res.Days)-1].Date,
		CurrentDay:  currentDay,
		Days:        res.Days,
		OffsetUsed:  int(off),
		Loaded:      res.Succeeded,
		Location:    req.Location,
		Method:      req.Method,
		UseOffsets:  req.UseOffsets,
		GeneratedAt: c.now().UTC(),
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

func (c *Controller) setStage(gen uint64, stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.stage = stage
	c.notifyLocked()
}

func (c *Controller) setProgress(gen uint64, p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.progress = p
	c.notifyLocked()
}

// Status is a Snapshot without the day list, for status endpoints and
// message payloads.
type Status struct {
	State        State        `json:"state"`
	Loading      bool         `json:"loading"`
	Progress     int          `json:"progress"`
	StageMessage string       `json:"stage_message,omitempty"`
	Error        string       `json:"error,omitempty"`
	Request      *Request     `json:"request,omitempty"`
	LoadID       string       `json:"load_id,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	HijriYear    int          `json:"hijri_year,omitempty"`
	StartDate    string       `json:"start_date,omitempty"`
	EndDate      string       `json:"end_date,omitempty"`
	CurrentDay   int          `json:"current_day"`
	Today        *ramadan.Day `json:"today,omitempty"`
	GeneratedAt  *time.Time   `json:"generated_at,omitempty"`
}

// Status drops the day list from s.
func (s Snapshot) Status() Status {
	st := Status{
		State:        s.State,
		Loading:      s.Loading,
		Progress:     s.Progress,
		StageMessage: s.StageMessage,
		Error:        s.Error,
		Request:      s.Request,
		LoadID:       s.LoadID,
	}
	if cal := s.Calendar; cal != nil {
		st.Summary = cal.Summary()
		st.HijriYear = cal.HijriYear
		st.StartDate = cal.StartDate
		st.EndDate = cal.EndDate
		st.CurrentDay = cal.CurrentDay
		generated := cal.GeneratedAt
		st.GeneratedAt = &generated
		if d, ok := cal.Today(); ok {
			st.Today = &d
		}
	}
	return st
}
