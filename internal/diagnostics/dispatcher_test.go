package diagnostics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu      sync.Mutex
	keys    []string
	events  []any
	err     error
	blockCh chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any) error {
	if p.blockCh != nil {
		<-p.blockCh
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) snapshot() ([]string, []any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...), append([]any(nil), p.events...)
}

var testConfig = Config{
	DiagnosticsRoutingKey: "ingress.diagnostic",
	ReadingsRoutingKey:    "meter.reading.accepted",
	Buffer:                8,
}

func TestDispatcher_PublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, testConfig, zap.NewNop())
	d.Start()

	d.Report(Event{RequestID: "r1", Status: 401, Message: "TOKEN_EXPIRED"})
	d.Accepted(ReadingAccepted{RequestID: "r2", SensorID: 7, Value: 5.2})

	require.NoError(t, d.Stop(context.Background()))

	keys, events := pub.snapshot()
	assert.Equal(t, []string{"ingress.diagnostic", "meter.reading.accepted"}, keys)

	diag, ok := events[0].(Event)
	require.True(t, ok)
	assert.Equal(t, uint32(401), diag.Status)
	assert.False(t, diag.OccurredAt.IsZero())
}

func TestDispatcher_PublishErrorsAreSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(pub, testConfig, zap.NewNop())
	d.Start()

	d.Report(Event{RequestID: "r1", Status: 500})
	d.Report(Event{RequestID: "r2", Status: 500})

	require.NoError(t, d.Stop(context.Background()))
	keys, _ := pub.snapshot()
	assert.Len(t, keys, 2, "every event is attempted once")
}

func TestDispatcher_ReportNeverBlocks(t *testing.T) {
	pub := &recordingPublisher{blockCh: make(chan struct{})}
	cfg := testConfig
	cfg.Buffer = 1
	d := NewDispatcher(pub, cfg, zap.NewNop())
	d.Start()

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Report(Event{Status: 400})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a stalled publisher")
	}

	close(pub.blockCh)
	require.NoError(t, d.Stop(context.Background()))

	keys, _ := pub.snapshot()
	assert.Less(t, len(keys), 100, "overflow is dropped")
}

func TestDispatcher_ReportAfterStopIsDropped(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, testConfig, zap.NewNop())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.NotPanics(t, func() { d.Report(Event{Status: 400}) })

	keys, _ := pub.snapshot()
	assert.Empty(t, keys)
}

func TestDispatcher_StopHonoursContext(t *testing.T) {
	pub := &recordingPublisher{blockCh: make(chan struct{})}
	d := NewDispatcher(pub, testConfig, zap.NewNop())
	d.Start()
	d.Report(Event{Status: 500})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(pub.blockCh)
}
