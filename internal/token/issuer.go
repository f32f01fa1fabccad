package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/energy-metering-ingress/internal/db"
	"go.uber.org/zap"
)

// Grant is the result of a successful issuance
type Grant struct {
	AccessToken string
	ExpiresIn   time.Duration
	// Calibration is CalibrationNone unless the sensor needs a script and has one
	Calibration Calibration
	Sensor      db.Sensor
}

// Issuer creates tokens for known sensors
type Issuer struct {
	store   SensorStore
	cache   Cache
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	newCode func() string
}

// NewIssuer creates a new token issuer
func NewIssuer(store SensorStore, cache Cache, ttl time.Duration, logger *zap.Logger) *Issuer {
	if cache == nil {
		cache = NopCache{}
	}
	return &Issuer{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		newCode: func() string { return uuid.New().String() },
	}
}

// Issue creates a token for clientID. deviceNeedsScript is the device asking for its
// calibration regardless of the sensor's own flag.
func (i *Issuer) Issue(ctx context.Context, clientID string, deviceNeedsScript bool) (Grant, error) {
	sensor, err := i.store.FindSensorByClientID(ctx, clientID)
	if errors.Is(err, db.ErrNotFound) {
		return Grant{}, fmt.Errorf("client %q: %w", clientID, ErrSensorNotFound)
	}
	if err != nil {
		return Grant{}, fmt.Errorf("failed to look up sensor: %w", err)
	}

	token := db.SensorToken{
		Code:     i.newCode(),
		SensorID: sensor.ID,
		IssuedAt: i.now().UTC(),
		TTL:      i.ttl,
	}
	if err := i.store.CreateToken(ctx, token); err != nil {
		return Grant{}, fmt.Errorf("failed to persist token: %w", err)
	}

	if err := i.cache.Put(ctx, token, i.ttl); err != nil {
		i.logger.Warn("failed to cache issued token",
			zap.Error(err),
			zap.Int64("sensor_id", sensor.ID),
		)
	}

	grant := Grant{
		AccessToken: token.Code,
		ExpiresIn:   i.ttl,
		Sensor:      sensor,
	}
	if (sensor.NeedsScript || deviceNeedsScript) && sensor.Script != nil {
		grant.Calibration = Classify(*sensor.Script)
	}

	i.logger.Debug("token issued",
		zap.Int64("sensor_id", sensor.ID),
		zap.String("client_id", clientID),
		zap.Int("calibration_kind", int(grant.Calibration.Kind())),
	)

	return grant, nil
}
