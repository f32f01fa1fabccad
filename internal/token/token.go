// Package token issues sensor access tokens and resolves them back to sensors.
//
// Tokens are opaque UUID strings valid for a fixed TTL after issuance. Validity is
// decided purely by issuedAt + ttl < now; issuing a new token never revokes an older
// one, so concurrent issuance for the same sensor is harmless.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/septivank/energy-metering-ingress/internal/db"
)

var (
	ErrSensorNotFound = errors.New("sensor/not-found")
	ErrTokenExpired   = errors.New("token/expired")
	ErrTokenInvalid   = errors.New("token/invalid")
	ErrTokenNotFound  = errors.New("token/not-found")
	ErrUnauthorized   = errors.New("token/unauthorized")
)

// Identity is a successfully resolved token
type Identity struct {
	Sensor db.Sensor
	Token  db.SensorToken
}

// SensorStore is the storage needed to issue tokens
type SensorStore interface {
	FindSensorByClientID(ctx context.Context, clientID string) (db.Sensor, error)
	CreateToken(ctx context.Context, token db.SensorToken) error
}

// TokenStore is the storage needed to resolve tokens
type TokenStore interface {
	FindToken(ctx context.Context, code string) (db.SensorToken, db.Sensor, error)
	FindSensorByID(ctx context.Context, id int64) (db.Sensor, error)
}

// Cache holds token rows in front of TokenStore. Sensors are never cached: owner and
// script are read live on every resolve.
type Cache interface {
	Get(ctx context.Context, code string) (db.SensorToken, bool, error)
	Put(ctx context.Context, token db.SensorToken, ttl time.Duration) error
}

// NopCache is used when no cache is configured
type NopCache struct{}

func (NopCache) Get(context.Context, string) (db.SensorToken, bool, error) {
	return db.SensorToken{}, false, nil
}

func (NopCache) Put(context.Context, db.SensorToken, time.Duration) error {
	return nil
}
