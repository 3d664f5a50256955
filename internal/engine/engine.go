// Package engine runs the proximity tracking loop: it normalizes incoming
// position reports, keeps the flight state table current, classifies each
// update against the observer and dispatches an alert when a flight closes in.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/pkg/logger"
)

// DefaultSweepInterval is how often Run sweeps the table without new messages
const DefaultSweepInterval = 30 * time.Second

// Dispatcher receives rendered alerts
type Dispatcher interface {
	Dispatch(alert *render.Alert, announce bool)
}

// Config wires an engine
type Config struct {
	Observer      classify.Observer
	StaleAfter    time.Duration
	SweepInterval time.Duration
	Callsigns     *render.Callsigns

	// OnEvict, when set, is called with the ids removed by each sweep
	OnEvict func(ids []string)
}

// Stats are cumulative engine counters
type Stats struct {
	Received  uint64    `json:"received"`
	Malformed uint64    `json:"malformed"`
	Ignored   uint64    `json:"ignored"`
	Tracked   uint64    `json:"tracked"`
	Alerts    uint64    `json:"alerts"`
	Evicted   uint64    `json:"evicted"`
	Flights   int       `json:"flights"`
	Clock     time.Time `json:"clock"`
}

// Engine owns the flight state table for one observer
type Engine struct {
	store      *flight.Store
	classifier *classify.Classifier
	renderer   *render.Renderer
	dispatcher Dispatcher
	logger     *logger.Logger

	sweepInterval time.Duration
	onEvict       func([]string)
	wallClock     func() time.Time

	clockMu    sync.RWMutex
	clock      time.Time
	clockSetAt time.Time // wall time when clock was last advanced

	received  atomic.Uint64
	malformed atomic.Uint64
	ignored   atomic.Uint64
	tracked   atomic.Uint64
	alerts    atomic.Uint64
	evicted   atomic.Uint64
}

// New creates an engine. dispatcher may be nil, in which case alerts are only
// rendered and logged.
func New(cfg Config, dispatcher Dispatcher, log *logger.Logger) *Engine {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Engine{
		store:         flight.NewStore(cfg.StaleAfter),
		classifier:    classify.New(cfg.Observer),
		renderer:      render.NewRenderer(cfg.Observer.Location, cfg.Callsigns),
		dispatcher:    dispatcher,
		logger:        log.Named("engine"),
		sweepInterval: cfg.SweepInterval,
		onEvict:       cfg.OnEvict,
		wallClock:     time.Now,
	}
}

// Store exposes the flight table for read-only use by the API
func (e *Engine) Store() *flight.Store { return e.store }

// Observer returns the observer the engine classifies against
func (e *Engine) Observer() classify.Observer { return e.classifier.Observer() }

// Clock returns the timestamp of the most recently handled position
func (e *Engine) Clock() time.Time {
	e.clockMu.RLock()
	defer e.clockMu.RUnlock()
	return e.clock
}

func (e *Engine) advance(ts time.Time) {
	e.clockMu.Lock()
	e.clock = ts
	e.clockSetAt = e.wallClock()
	e.clockMu.Unlock()
}

// Handle processes one raw message. Malformed messages are logged and dropped
// without touching the table; their error is returned.
func (e *Engine) Handle(raw flight.RawPositionMessage) (*classify.Decision, error) {
	e.received.Add(1)

	res := flight.Normalize(raw)
	if !res.OK() {
		e.malformed.Add(1)
		e.logger.Warn("Dropping malformed position", logger.Error(res.Err))
		return nil, res.Err
	}
	curr := res.Position
	e.advance(curr.Timestamp)

	prev, _ := e.store.Upsert(curr)
	decision := e.classifier.Classify(prev, curr)

	switch decision.State {
	case classify.Ignored:
		e.ignored.Add(1)
	case classify.Alerting:
		e.alerts.Add(1)
		e.alert(curr, decision)
	default:
		e.tracked.Add(1)
		e.logger.Debug("Tracking flight",
			logger.String("flight_id", curr.FlightID),
			logger.String("ident", curr.Ident),
			logger.String("state", decision.State.String()),
			logger.Float64("distance_nm", decision.DistanceNM))
	}
	return &decision, nil
}

func (e *Engine) alert(curr *flight.Position, decision classify.Decision) {
	alert := e.renderer.Render(curr)

	fields := []logger.Field{
		logger.String("flight_id", curr.FlightID),
		logger.String("ident", curr.Ident),
		logger.Float64("distance_nm", decision.DistanceNM),
	}
	if decision.PrevDistance != nil {
		fields = append(fields, logger.Float64("prev_distance_nm", *decision.PrevDistance))
	}
	e.logger.Debug("Flight closing on observer", fields...)

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(alert, e.classifier.Observer().Announce)
	}
}

// Tick evicts stale flights relative to now
func (e *Engine) Tick(now time.Time) []string {
	evicted := e.store.Sweep(now)
	if len(evicted) == 0 {
		return nil
	}
	e.evicted.Add(uint64(len(evicted)))
	e.logger.Debug("Evicted stale flights",
		logger.Int("count", len(evicted)),
		logger.Int("remaining", e.store.Len()))
	if e.onEvict != nil {
		e.onEvict(evicted)
	}
	return evicted
}

// sweepTime is the stream clock plus the wall time elapsed since it last
// moved, so a quiet stream still ages out. Before any message it is wall time.
func (e *Engine) sweepTime() time.Time {
	e.clockMu.RLock()
	clock, setAt := e.clock, e.clockSetAt
	e.clockMu.RUnlock()
	if clock.IsZero() {
		return e.wallClock()
	}
	return clock.Add(e.wallClock().Sub(setAt))
}

// Run handles messages until ctx is cancelled or messages is closed. The table
// is swept after every message and on a timer so a quiet stream still ages out.
func (e *Engine) Run(ctx context.Context, messages <-chan flight.RawPositionMessage) error {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	e.logger.Info("Engine started",
		logger.Float64("interesting_radius_nm", e.Observer().InterestingRadiusNM),
		logger.Float64("interesting_ceiling_ft", e.Observer().InterestingCeilingFt),
		logger.Float64("alert_radius_nm", e.Observer().AlertRadiusNM),
		logger.Bool("announce", e.Observer().Announce))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopped", logger.Int("flights", e.store.Len()))
			return nil
		case msg, ok := <-messages:
			if !ok {
				e.logger.Info("Position stream closed")
				return nil
			}
			e.Handle(msg)
			e.Tick(e.sweepTime())
		case <-ticker.C:
			e.Tick(e.sweepTime())
		}
	}
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		Received:  e.received.Load(),
		Malformed: e.malformed.Load(),
		Ignored:   e.ignored.Load(),
		Tracked:   e.tracked.Load(),
		Alerts:    e.alerts.Load(),
		Evicted:   e.evicted.Load(),
		Flights:   e.store.Len(),
		Clock:     e.Clock(),
	}
}
