// Package diagnostics ships request outcomes to the message broker in the background.
// Reporting never blocks the caller and never fails: a full queue drops the event and
// publish errors are logged once, not retried.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Publisher sends an event under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Event describes a request that ended in a non-2xx response
type Event struct {
	RequestID  string    `json:"request_id"`
	Route      string    `json:"route"`
	Status     uint32    `json:"status"`
	Message    string    `json:"status_message"`
	Error      string    `json:"error,omitempty"`
	SensorID   *int64    `json:"sensor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReadingAccepted is emitted after a reading was persisted
type ReadingAccepted struct {
	RequestID       string    `json:"request_id"`
	SensorID        int64     `json:"sensor_id"`
	Value           float64   `json:"value"`
	ValueOut        *float64  `json:"value_out,omitempty"`
	ValueCurrent    *float64  `json:"value_current,omitempty"`
	Timestamp       time.Time `json:"reading_timestamp"`
	IsCumulativeSum bool      `json:"is_cumulative_sum"`
	Protocol        string    `json:"protocol"`
}

// Config holds the routing keys and queue size
type Config struct {
	DiagnosticsRoutingKey string
	ReadingsRoutingKey    string
	Buffer                int
}

type envelope struct {
	routingKey string
	payload    any
}

// Dispatcher queues events and publishes them from a single worker goroutine
type Dispatcher struct {
	publisher Publisher
	cfg       Config
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. Start must be called before events are published.
func NewDispatcher(publisher Publisher, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan envelope, cfg.Buffer),
		done:      make(chan struct{}),
	}
}

// Report queues a diagnostic event
func (d *Dispatcher) Report(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	d.enqueue(envelope{routingKey: d.cfg.DiagnosticsRoutingKey, payload: event})
}

// Accepted queues a reading.accepted notification
func (d *Dispatcher) Accepted(event ReadingAccepted) {
	d.enqueue(envelope{routingKey: d.cfg.ReadingsRoutingKey, payload: event})
}

func (d *Dispatcher) enqueue(env envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher stopped, dropping event", zap.String("routing_key", env.routingKey))
		return
	}

	select {
	case d.queue <- env:
	default:
		d.logger.Warn("dispatcher queue full, dropping event",
			zap.String("routing_key", env.routingKey),
			zap.Int("buffer", cap(d.queue)),
		)
	}
}

// Start launches the worker goroutine
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for env := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.publisher.Publish(ctx, env.routingKey, env.payload); err != nil {
			d.logger.Error("failed to publish event",
				zap.String("routing_key", env.routingKey),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Stop refuses new events and waits for the queued ones to be published until ctx ends
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher stopped before draining", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}
