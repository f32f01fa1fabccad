package logging

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTWriter publishes every written log line to logs/<service>.
// Publishing is QoS 0 and never waits on the delivery token.
type MQTTWriter struct {
	client mqtt.Client
	topic  string
}

// NewMQTTWriter creates a writer for the given service
func NewMQTTWriter(client mqtt.Client, serviceName string) *MQTTWriter {
	return &MQTTWriter{
		client: client,
		topic:  fmt.Sprintf("logs/%s", serviceName),
	}
}

// Topic returns the topic log lines are published to
func (w *MQTTWriter) Topic() string {
	return w.topic
}

func (w *MQTTWriter) Write(p []byte) (int, error) {
	// zap reuses its buffers after Write returns
	payload := make([]byte, len(p))
	copy(payload, p)

	if w.client.IsConnectionOpen() {
		w.client.Publish(w.topic, 0, false, payload)
	}

	return len(p), nil
}
