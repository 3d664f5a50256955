package adsb

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/pkg/logger"
)

// DefaultPollInterval matches the refresh rate of tar1090's aircraft.json
const DefaultPollInterval = time.Second

// Fetcher returns one snapshot of the sky
type Fetcher interface {
	FetchData(ctx context.Context) (*Snapshot, error)
}

// PollerStatus reports how the poller is doing
type PollerStatus struct {
	Healthy   bool      `json:"healthy"`
	LastFetch time.Time `json:"last_fetch"`
	Polls     uint64    `json:"polls"`
	Failures  uint64    `json:"failures"`
	Emitted   uint64    `json:"emitted"`
	Skipped   uint64    `json:"skipped"`
}

// Poller periodically fetches snapshots and emits a position message for every
// target whose position changed since the previous poll
type Poller struct {
	fetcher   Fetcher
	converter Converter
	interval  time.Duration
	logger    *logger.Logger

	mu        sync.Mutex
	lastClock map[string]int64

	healthy   atomic.Bool
	lastFetch atomic.Int64
	polls     atomic.Uint64
	failures  atomic.Uint64
	emitted   atomic.Uint64
	skipped   atomic.Uint64
}

// NewPoller creates a poller. A non-positive interval selects DefaultPollInterval.
func NewPoller(fetcher Fetcher, converter Converter, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:   fetcher,
		converter: converter,
		interval:  interval,
		logger:    log.Named("adsb"),
		lastClock: make(map[string]int64),
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and retried on
// the next tick.
func (p *Poller) Run(ctx context.Context, out chan<- flight.RawPositionMessage) error {
	p.logger.Info("Starting ADS-B poller", logger.Duration("fetch_interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Failed to fetch ADS-B data", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("ADS-B poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches one snapshot and emits its fresh positions, returning how many
// were emitted
func (p *Poller) Poll(ctx context.Context, out chan<- flight.RawPositionMessage) (int, error) {
	p.polls.Add(1)
	snap, err := p.fetcher.FetchData(ctx)
	if err != nil {
		p.failures.Add(1)
		p.healthy.Store(false)
		return 0, err
	}
	p.healthy.Store(true)
	p.lastFetch.Store(time.Now().UnixNano())

	targets := snap.Targets()
	seen := make(map[string]struct{}, len(targets))
	emitted := 0
	for i := range targets {
		msg, reason := p.converter.Convert(&targets[i], snap.Now)
		if reason != SkipNone {
			p.skipped.Add(1)
			continue
		}
		seen[msg.ID] = struct{}{}
		if !p.fresh(msg) {
			continue
		}

		select {
		case out <- msg:
			emitted++
		case <-ctx.Done():
			return emitted, ctx.Err()
		}
	}
	p.emitted.Add(uint64(emitted))
	p.forget(seen)

	p.logger.Debug("Processed ADS-B snapshot",
		logger.Int("targets", len(targets)),
		logger.Int("emitted", emitted))
	return emitted, nil
}

// fresh reports whether msg carries a newer position than the last one emitted
// for the same aircraft
func (p *Poller) fresh(msg flight.RawPositionMessage) bool {
	clock, err := strconv.ParseInt(msg.Clock, 10, 64)
	if err != nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastClock[msg.ID]; ok && clock <= last {
		return false
	}
	p.lastClock[msg.ID] = clock
	return true
}

// forget drops aircraft that have left the feed
func (p *Poller) forget(seen map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.lastClock {
		if _, ok := seen[id]; !ok {
			delete(p.lastClock, id)
		}
	}
}

// Status returns the poller counters
func (p *Poller) Status() PollerStatus {
	s := PollerStatus{
		Healthy:  p.healthy.Load(),
		Polls:    p.polls.Load(),
		Failures: p.failures.Load(),
		Emitted:  p.emitted.Load(),
		Skipped:  p.skipped.Load(),
	}
	if ns := p.lastFetch.Load(); ns > 0 {
		s.LastFetch = time.Unix(0, ns).UTC()
	}
	return s
}
