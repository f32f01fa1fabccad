package logging

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestNewLogger_ShipsToSink(t *testing.T) {
	sink := &lockedBuffer{}

	logger, err := NewLogger("ingress-test", "info", sink)
	require.NoError(t, err)

	WithRequestID(logger, "req-1").Info("token issued")
	_ = logger.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(sink.buf.Bytes(), &entry))
	assert.Equal(t, "token issued", entry["msg"])
	assert.Equal(t, "ingress-test", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestNewLogger_LevelFiltersSink(t *testing.T) {
	sink := &lockedBuffer{}

	logger, err := NewLogger("ingress-test", "warn", sink)
	require.NoError(t, err)

	logger.Info("dropped")
	_ = logger.Sync()

	assert.Zero(t, sink.buf.Len())
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger("ingress-test", "loud", nil)
	assert.Error(t, err)
}
