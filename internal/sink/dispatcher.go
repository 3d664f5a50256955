// Package sink delivers rendered alerts to their outputs. Each output owns a
// bounded queue and a worker so a slow or failing output never holds up
// ingestion or the other outputs.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/overhead/internal/render"
	"github.com/yegors/overhead/pkg/logger"
)

// Sink is one alert output
type Sink interface {
	Name() string
	Send(ctx context.Context, alert *render.Alert) error
}

// Audible is implemented by sinks that speak. They only receive alerts when
// announcing is enabled.
type Audible interface {
	Audible() bool
}

// Defaults for the dispatcher
const (
	DefaultQueueSize   = 32
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
)

// Options tune the dispatcher
type Options struct {
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	return o
}

// RegisterOption adjusts how a single sink is driven
type RegisterOption func(*worker)

// WithAttempts overrides the number of delivery attempts for one sink
func WithAttempts(n int) RegisterOption {
	return func(w *worker) {
		if n > 0 {
			w.attempts = n
		}
	}
}

// Stats are the delivery counters of one sink
type Stats struct {
	Name    string `json:"name"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Queued  int    `json:"queued"`
}

type worker struct {
	sink     Sink
	queue    chan *render.Alert
	attempts int
	backoff  time.Duration
	audible  bool

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// Dispatcher fans alerts out to registered sinks
type Dispatcher struct {
	opts   Options
	logger *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	workers []*worker
	closed  bool
}

// ErrClosed is returned by Register after Close
var ErrClosed = errors.New("dispatcher closed")

// NewDispatcher creates a dispatcher with no sinks
func NewDispatcher(opts Options, log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		opts:   opts.withDefaults(),
		logger: log.Named("dispatch"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a sink and starts its worker
func (d *Dispatcher) Register(s Sink, opts ...RegisterOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	w := &worker{
		sink:     s,
		queue:    make(chan *render.Alert, d.opts.QueueSize),
		attempts: d.opts.MaxAttempts,
		backoff:  d.opts.Backoff,
	}
	if a, ok := s.(Audible); ok {
		w.audible = a.Audible()
	}
	for _, opt := range opts {
		opt(w)
	}
	d.workers = append(d.workers, w)

	d.wg.Add(1)
	go d.run(w)

	d.logger.Info("Registered sink",
		logger.String("sink", s.Name()),
		logger.Int("attempts", w.attempts),
		logger.Bool("audible", w.audible))
	return nil
}

// Dispatch queues alert on every sink without blocking. Audible sinks are
// skipped unless announce is set. A sink whose queue is full drops the alert.
func (d *Dispatcher) Dispatch(alert *render.Alert, announce bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, w := range d.workers {
		if w.audible && !announce {
			continue
		}
		select {
		case w.queue <- alert:
		default:
			w.dropped.Add(1)
			d.logger.Warn("Sink queue full, dropping alert",
				logger.String("sink", w.sink.Name()),
				logger.String("ident", alert.Position.Ident))
		}
	}
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for alert := range w.queue {
		if err := d.deliver(w, alert); err != nil {
			w.failed.Add(1)
			d.logger.Error("Sink delivery failed",
				logger.String("sink", w.sink.Name()),
				logger.String("ident", alert.Position.Ident),
				logger.Error(err))
			continue
		}
		w.sent.Add(1)
	}
}

func (d *Dispatcher) deliver(w *worker, alert *render.Alert) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err = w.sink.Send(d.ctx, alert); err == nil {
			return nil
		}
		if attempt == w.attempts {
			break
		}
		d.logger.Debug("Retrying sink delivery",
			logger.String("sink", w.sink.Name()),
			logger.Int("attempt", attempt),
			logger.Error(err))

		select {
		case <-time.After(w.backoff * time.Duration(attempt)):
		case <-d.ctx.Done():
			return fmt.Errorf("%s: %w", w.sink.Name(), d.ctx.Err())
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", w.sink.Name(), w.attempts, err)
}

// Stats returns the counters of every sink in registration order
func (d *Dispatcher) Stats() []Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Stats, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, Stats{
			Name:    w.sink.Name(),
			Sent:    w.sent.Load(),
			Failed:  w.failed.Load(),
			Dropped: w.dropped.Load(),
			Queued:  len(w.queue),
		})
	}
	return out
}

// Close stops accepting alerts and drains the queues. If ctx expires first
// in-flight deliveries are cancelled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
