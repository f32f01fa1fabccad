package main

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/septivank/energy-metering-ingress/internal/config"
	"github.com/septivank/energy-metering-ingress/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// logShipper is the optional MQTT destination for log lines. writer is nil when
// MQTT_BROKER is unset.
type logShipper struct {
	writer *logging.MQTTWriter
}

// newLogShipper builds the MQTT client before the logger exists so startup lines are
// shipped too. The connection is established in the background and never blocks boot.
func newLogShipper(lc fx.Lifecycle, cfg *config.Config) *logShipper {
	if cfg.MQTT.Broker == "" {
		return &logShipper{}
	}

	client := mqtt.NewClient(logShipperOptions(cfg))
	client.Connect()

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.Disconnect(250)
			return nil
		},
	})

	return &logShipper{writer: logging.NewMQTTWriter(client, cfg.ServiceName)}
}

// logShipperWriteTimeout bounds a publish so a stalled broker connection cannot hold up
// the zap call that wrote the line
const logShipperWriteTimeout = time.Second

func logShipperOptions(cfg *config.Config) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWriteTimeout(logShipperWriteTimeout)
}

func newLogger(lc fx.Lifecycle, cfg *config.Config, shipper *logShipper) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	// a nil *MQTTWriter must not reach NewLogger as a non-nil io.Writer
	if shipper.writer != nil {
		logger, err = logging.NewLogger(cfg.ServiceName, cfg.LogLevel, shipper.writer)
	} else {
		logger, err = logging.NewLogger(cfg.ServiceName, cfg.LogLevel, nil)
	}
	if err != nil {
		return nil, err
	}

	if shipper.writer != nil {
		logger.Info("shipping logs over mqtt", zap.String("topic", shipper.writer.Topic()))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}
