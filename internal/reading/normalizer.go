// Package reading turns decoded device submissions into the records handed to storage.
package reading

import (
	"errors"
	"fmt"
	"time"

	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/validator"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"github.com/septivank/energy-metering-ingress/tools/timeparser"
	"go.uber.org/zap"
)

// ErrNothingToStore is returned for readings that validate as a no-op
var ErrNothingToStore = errors.New("reading carries nothing to store")

// Normalizer converts raw readings into EnergyReading records
type Normalizer struct {
	validator   *validator.Validator
	defaultZone string
	logger      *zap.Logger
	now         func() time.Time
}

// NewNormalizer creates a normalizer localizing into defaultZone when the owner has none
func NewNormalizer(v *validator.Validator, defaultZone string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		validator:   v,
		defaultZone: defaultZone,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the source of server time used for readings without a timestamp
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize builds the record for raw submitted by sensor whose owner lives in zone.
// An empty or unknown zone falls back to the default zone.
func (n *Normalizer) Normalize(raw wire.Reading, sensor db.Sensor, zone string) (db.EnergyReading, error) {
	verdict, err := n.validator.Validate(raw)
	if err != nil {
		return db.EnergyReading{}, err
	}
	if verdict == validator.VerdictSkip {
		return db.EnergyReading{}, ErrNothingToStore
	}

	ts := n.now().UTC()
	if raw.Timestamp != nil {
		ts, err = timeparser.FromMillis(*raw.Timestamp)
		if err != nil {
			return db.EnergyReading{}, fmt.Errorf("%w: %v", validator.ErrTimestampOutOfRange, err)
		}
	}

	loc, fallback, err := timeparser.LoadZone(zone, n.defaultZone)
	if err != nil {
		return db.EnergyReading{}, err
	}
	if fallback && zone != "" {
		n.logger.Warn("unknown owner timezone, using default",
			zap.String("zone", zone),
			zap.String("default_zone", n.defaultZone),
			zap.Int64("sensor_id", sensor.ID),
		)
	}

	return db.EnergyReading{
		SensorID:        sensor.ID,
		Value:           raw.Value,
		ValueOut:        raw.ValueOut,
		ValueCurrent:    raw.ValueCurrent,
		Timestamp:       timeparser.Localize(ts, loc),
		IsCumulativeSum: token.IsRotationCounter(sensor.Script),
	}, nil
}
