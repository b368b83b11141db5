package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to sinks through a bounded queue. Publish never
// blocks; events that do not fit are counted and dropped.
type Router struct {
	cfg         Config
	queue       chan Event
	sinks       []*sinkWorker
	clock       Clock
	fallback    logrus.FieldLogger
	metrics     *Metrics
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
	minSeverity Severity
	fields      map[string]any
	wg          sync.WaitGroup

	routed      atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

// RouterStats reports routed and dropped events, in total and per sink.
type RouterStats struct {
	EventsTotal  uint64      `json:"eventsTotal"`
	DroppedTotal uint64      `json:"droppedTotal"`
	Sinks        []SinkStats `json:"sinks,omitempty"`
}

type SinkStats struct {
	Name      string `json:"name"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failures  uint64 `json:"failures"`
}

// RouterOption customizes a Router built by NewRouter.
type RouterOption func(*Router)

// WithMetrics mirrors the router counters into metrics under the
// logging_ prefix.
func WithMetrics(metrics *Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// NewRouter starts the dispatcher and one worker per sink. A nil fallback
// logger defaults to the logrus standard logger.
func NewRouter(clock Clock, cfg Config, fallback logrus.FieldLogger, namedSinks []NamedSink, opts ...RouterOption) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = logrus.StandardLogger()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		clock:       clock,
		fallback:    fallback.WithField("component", "logging"),
		ctx:         ctx,
		cancel:      cancel,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	perSink := min(max(bufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, &sinkWorker{
			name:    named.Name,
			sink:    named.Sink,
			events:  make(chan Event, perSink),
			log:     r.fallback.WithField("sink", named.Name),
			metrics: r.metrics,
			closing: ctx.Done(),
		})
	}

	r.wg.Add(1 + len(r.sinks))
	go r.dispatch()
	for _, worker := range r.sinks {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
	return r, nil
}

// dispatch moves events from the shared queue to the sink workers until
// Close, then flushes what is left and closes the worker queues.
func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, worker := range r.sinks {
			close(worker.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.routed.Add(1)
	r.metrics.TelemetryAdd("logging_events_routed", 1)
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.drop(event)
	}
}

// drop counts an event the queue had no room for. The warning is rate
// limited to one per DropWarnInterval.
func (r *Router) drop(event Event) {
	total := r.dropped.Add(1)
	r.metrics.TelemetryAdd("logging_events_dropped", 1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if next != 0 && now < next {
		return
	}
	if r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.WithFields(logrus.Fields{
			"type":    event.Type,
			"tick":    event.Tick,
			"dropped": total,
		}).Warn("event queue full, dropping events")
	}
}

// Close stops accepting events, delivers what is queued and closes every
// sink. Sinks in back-off get one last attempt without waiting.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var errs []error
	for _, worker := range r.sinks {
		if err := worker.sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", worker.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.routed.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	for _, worker := range r.sinks {
		stats.Sinks = append(stats.Sinks, SinkStats{
			Name:      worker.name,
			Delivered: worker.delivered.Load(),
			Dropped:   worker.dropped.Load(),
			Failures:  worker.failures.Load(),
		})
	}
	return stats
}

func (r *Router) Sink(name string) Sink {
	for _, worker := range r.sinks {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

const (
	minRetryDelay = 250 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// retryDelay doubles from minRetryDelay for every consecutive failure.
func retryDelay(consecutive int) time.Duration {
	if consecutive <= 0 {
		return 0
	}
	delay := minRetryDelay << min(consecutive-1, 16)
	return min(delay, maxRetryDelay)
}

type sinkWorker struct {
	name    string
	sink    Sink
	events  chan Event
	log     logrus.FieldLogger
	metrics *Metrics
	closing <-chan struct{}

	consecutive int
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	failures    atomic.Uint64
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneEvent(event):
	default:
		if w.dropped.Add(1) == 1 {
			w.log.WithField("type", event.Type).Warn("sink backlog full, dropping events")
		}
		w.metrics.TelemetryAdd("logging_sink_"+w.name+"_dropped", 1)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		w.backoff()
		if err := w.sink.Write(event); err != nil {
			w.consecutive++
			w.failures.Add(1)
			w.metrics.TelemetryAdd("logging_sink_"+w.name+"_failures", 1)
			w.log.WithError(err).WithField("retry", retryDelay(w.consecutive)).Error("sink write failed")
			continue
		}
		w.consecutive = 0
		w.delivered.Add(1)
	}
}

// backoff waits out the retry delay of a failing sink. Once the router is
// closing the wait is skipped so Close is not held up by a broken sink.
func (w *sinkWorker) backoff() {
	delay := retryDelay(w.consecutive)
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.closing:
	}
}
