package auditlog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/pii"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/auditlog"

// DefaultQueueSize is used when a non-positive queue size is configured.
const DefaultQueueSize = 256

// record is a queued Entry or Feedback.
type record struct {
	entry    *Entry
	feedback *Feedback
}

func (r record) id() string {
	if r.feedback != nil {
		return r.feedback.ID
	}
	return r.entry.ID
}

// Dispatcher fans records out to sinks from a bounded queue.
type Dispatcher struct {
	sinks        []Sink
	queue        chan record
	writeTimeout time.Duration
	logger       *zap.Logger
	scrubber     pii.Scrubber

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Int64
	written metric.Int64Counter
	drops   metric.Int64Counter
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithScrubber redacts the query, answer and reasoning of every entry, and
// the comment of every feedback, before they reach a sink.
func WithScrubber(s pii.Scrubber) DispatcherOption {
	return func(d *Dispatcher) { d.scrubber = s }
}

// NewDispatcher starts a dispatcher writing to sinks.
func NewDispatcher(sinks []Sink, queueSize int, writeTimeout time.Duration, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sinks:        sinks,
		queue:        make(chan record, queueSize),
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
		scrubber:     pii.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if d.written, err = meter.Int64Counter("lexivoice.auditlog.writes_total",
		metric.WithDescription("Query log writes by sink, record type and status")); err != nil {
		logger.Warn("failed to create auditlog write counter", zap.Error(err))
	}
	if d.drops, err = meter.Int64Counter("lexivoice.auditlog.dropped_total",
		metric.WithDescription("Query log records dropped because the queue was full")); err != nil {
		logger.Warn("failed to create auditlog drop counter", zap.Error(err))
	}

	go d.run()
	return d
}

// Enqueue queues e and reports whether it was accepted. It never blocks.
func (d *Dispatcher) Enqueue(e Entry) bool {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return d.enqueue(record{entry: &e})
}

// EnqueueFeedback queues f like Enqueue. Callers validate f first.
func (d *Dispatcher) EnqueueFeedback(f Feedback) bool {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	return d.enqueue(record{feedback: &f})
}

func (d *Dispatcher) enqueue(r record) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop("closed")
		return false
	}
	select {
	case d.queue <- r:
		return true
	default:
		d.drop("queue_full")
		return false
	}
}

// Dropped returns how many records were dropped.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting records, drains the queue and closes the sinks.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for r := range d.queue {
		d.scrub(r)
		for _, s := range d.sinks {
			d.write(s, r)
		}
	}
}

// scrub redacts r's free text in place.
func (d *Dispatcher) scrub(r record) {
	if !d.scrubber.IsEnabled() {
		return
	}
	var fields []*string
	if r.entry != nil {
		fields = []*string{&r.entry.Query, &r.entry.Answer, &r.entry.Reasoning}
	} else {
		fields = []*string{&r.feedback.Comment}
	}
	findings := 0
	for _, f := range fields {
		res := d.scrubber.Scrub(*f)
		*f = res.Scrubbed
		findings += len(res.Findings)
	}
	if findings > 0 {
		d.logger.Debug("redacted personal data from query log record",
			zap.String("record_id", r.id()),
			zap.Int("findings", findings))
	}
}

func (d *Dispatcher) write(s Sink, r record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	kind := "query"
	var err error
	if r.feedback != nil {
		kind = "feedback"
		err = s.WriteFeedback(ctx, *r.feedback)
	} else {
		err = s.Write(ctx, *r.entry)
	}
	status := "ok"
	if err != nil {
		status = "error"
		d.logger.Warn("query log write failed",
			zap.String("sink", sinkName(s)),
			zap.String("type", kind),
			zap.String("record_id", r.id()),
			zap.Error(err))
	}
	if d.written != nil {
		d.written.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sink", sinkName(s)),
			attribute.String("type", kind),
			attribute.String("status", status)))
	}
}

func (d *Dispatcher) drop(reason string) {
	d.dropped.Add(1)
	if d.drops != nil {
		d.drops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}
