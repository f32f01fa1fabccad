package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/diagnostics"
	"github.com/septivank/energy-metering-ingress/internal/logging"
	"github.com/septivank/energy-metering-ingress/internal/reading"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/validator"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"go.uber.org/zap"
)

// TokenResolver resolves access tokens to sensors
type TokenResolver interface {
	Resolve(ctx context.Context, raw token.RawToken) (token.Identity, error)
}

// ReadingStore is the storage used while ingesting readings
type ReadingStore interface {
	LookupUserTimezone(ctx context.Context, userID int64) (string, bool, error)
	InsertReading(ctx context.Context, reading db.EnergyReading) error
}

// Reporter receives outcomes in the background
type Reporter interface {
	Report(event diagnostics.Event)
	Accepted(event diagnostics.ReadingAccepted)
}

// Route binds a body decoder to a credential extraction strategy
type Route struct {
	Name        string
	Decode      func(body []byte) (wire.Reading, error)
	Credentials CredentialExtractor
}

// LegacyRoute is the protobuf transport with the token inside the message
func LegacyRoute() Route {
	return Route{
		Name:        "sensor-data",
		Decode:      wire.NewSensorDataChain().Decode,
		Credentials: BodyCredentials{},
	}
}

// BearerRoute is the JSON transport with the token in the Authorization header
func BearerRoute() Route {
	return Route{
		Name:        "v2/sensor-data",
		Decode:      wire.DecodeSensorDataJSON,
		Credentials: BearerCredentials{},
	}
}

// Result is the outcome of one ingestion
type Result struct {
	Response *wire.SensorDataResponse
	// Err is nil on success
	Err *Error
	// Reading is the stored record, nil when nothing was stored
	Reading *db.EnergyReading
}

// Status returns the HTTP status matching the response
func (r Result) Status() int {
	return int(r.Response.Status)
}

// IngestionService runs decode, validation, authentication, normalization and
// persistence for one reading submission.
type IngestionService struct {
	resolver   TokenResolver
	store      ReadingStore
	validator  *validator.Validator
	normalizer *reading.Normalizer
	reporter   Reporter
	logger     *zap.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	resolver TokenResolver,
	store ReadingStore,
	validator *validator.Validator,
	normalizer *reading.Normalizer,
	reporter Reporter,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		resolver:   resolver,
		store:      store,
		validator:  validator,
		normalizer: normalizer,
		reporter:   reporter,
		logger:     logger,
	}
}

// Ingest handles one submission on route. It never returns an error: every failure is
// encoded into the response.
func (s *IngestionService) Ingest(ctx context.Context, route Route, req Request) Result {
	reqLogger := logging.WithRequestID(s.logger, req.ID).With(zap.String("route", route.Name))

	rec, sensor, err := s.ingest(ctx, route, req, reqLogger)
	if err != nil {
		classified := classify(err)
		s.fail(req, route, sensor, classified, reqLogger)
		return Result{Response: sensorDataResponse(classified.Kind), Err: classified}
	}

	return Result{Response: sensorDataResponse(KindNone), Reading: rec}
}

func (s *IngestionService) ingest(ctx context.Context, route Route, req Request, logger *zap.Logger) (*db.EnergyReading, *db.Sensor, error) {
	if len(req.Body) == 0 {
		return nil, nil, &Error{Kind: KindMalformedBody, Err: errors.New("empty body")}
	}

	raw, err := route.Decode(req.Body)
	if err != nil {
		return nil, nil, err
	}

	verdict, err := s.validator.Validate(raw)
	if err != nil {
		return nil, nil, err
	}
	if verdict == validator.VerdictSkip {
		logger.Debug("analog reading without pulses, nothing to store",
			zap.Float64("value", raw.Value),
			zap.String("protocol", raw.Protocol()),
		)
		return nil, nil, nil
	}

	identity, err := s.resolver.Resolve(ctx, route.Credentials.Extract(req, raw))
	if err != nil {
		return nil, nil, err
	}
	sensor := identity.Sensor
	if !sensor.HasOwner() {
		return nil, &sensor, fmt.Errorf("%w: sensor %d has no owner", token.ErrSensorNotFound, sensor.ID)
	}

	zone, _, err := s.store.LookupUserTimezone(ctx, *sensor.UserID)
	if err != nil {
		return nil, &sensor, fmt.Errorf("failed to look up owner timezone: %w", err)
	}

	rec, err := s.normalizer.Normalize(raw, sensor, zone)
	if errors.Is(err, reading.ErrNothingToStore) {
		return nil, &sensor, nil
	}
	if err != nil {
		return nil, &sensor, err
	}

	if err := s.store.InsertReading(ctx, rec); err != nil {
		return nil, &sensor, err
	}

	logger.Info("reading stored",
		zap.Int64("sensor_id", sensor.ID),
		zap.String("protocol", raw.Protocol()),
		zap.Bool("cumulative", rec.IsCumulativeSum),
	)

	s.reporter.Accepted(diagnostics.ReadingAccepted{
		RequestID:       req.ID,
		SensorID:        rec.SensorID,
		Value:           rec.Value,
		ValueOut:        rec.ValueOut,
		ValueCurrent:    rec.ValueCurrent,
		Timestamp:       rec.Timestamp,
		IsCumulativeSum: rec.IsCumulativeSum,
		Protocol:        raw.Protocol(),
	})

	return &rec, &sensor, nil
}

func (s *IngestionService) fail(req Request, route Route, sensor *db.Sensor, e *Error, logger *zap.Logger) {
	fields := []zap.Field{
		zap.Stringer("kind", e.Kind),
		zap.Uint32("status", e.Kind.Status()),
		zap.Error(e.Err),
	}
	event := diagnostics.Event{
		RequestID: req.ID,
		Route:     route.Name,
		Status:    e.Kind.Status(),
		Message:   e.Kind.Message(),
		Error:     e.Error(),
	}
	if sensor != nil {
		fields = append(fields, zap.Int64("sensor_id", sensor.ID))
		event.SensorID = &sensor.ID
	}

	if e.Kind == KindStorageFault {
		logger.Error("reading rejected", fields...)
	} else {
		logger.Warn("reading rejected", fields...)
	}

	s.reporter.Report(event)
}

func sensorDataResponse(kind Kind) *wire.SensorDataResponse {
	msg := kind.Message()
	return &wire.SensorDataResponse{Status: kind.Status(), StatusMessage: &msg}
}
