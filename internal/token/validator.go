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

// RawToken is a token as extracted from a request
type RawToken struct {
	Value string
	// FromHeader is set when the token came from an Authorization header
	FromHeader bool
}

// Validator resolves tokens to sensor identities
type Validator struct {
	store  TokenStore
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewValidator creates a new token validator
func NewValidator(store TokenStore, cache Cache, logger *zap.Logger) *Validator {
	if cache == nil {
		cache = NopCache{}
	}
	return &Validator{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve maps raw to the sensor it was issued for. Errors are ErrUnauthorized,
// ErrTokenInvalid, ErrTokenNotFound, ErrTokenExpired, ErrSensorNotFound or a wrapped
// storage error.
func (v *Validator) Resolve(ctx context.Context, raw RawToken) (Identity, error) {
	if raw.Value == "" {
		if raw.FromHeader {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, ErrTokenInvalid
	}

	parsed, err := uuid.Parse(raw.Value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	code := parsed.String()

	identity, err := v.lookup(ctx, code)
	if err != nil {
		return Identity{}, err
	}

	now := v.now()
	if identity.Token.Expired(now) {
		return Identity{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, identity.Token.ExpiresAt().Format(time.RFC3339))
	}
	if !identity.Sensor.HasOwner() {
		return Identity{}, fmt.Errorf("%w: sensor %d has no owner", ErrSensorNotFound, identity.Sensor.ID)
	}

	return identity, nil
}

func (v *Validator) lookup(ctx context.Context, code string) (Identity, error) {
	tok, ok, err := v.cache.Get(ctx, code)
	if err != nil {
		v.logger.Warn("token cache read failed, falling back to storage", zap.Error(err))
	} else if ok {
		sensor, err := v.store.FindSensorByID(ctx, tok.SensorID)
		if errors.Is(err, db.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: sensor %d", ErrSensorNotFound, tok.SensorID)
		}
		if err != nil {
			return Identity{}, fmt.Errorf("failed to look up sensor: %w", err)
		}
		return Identity{Sensor: sensor, Token: tok}, nil
	}

	tok, sensor, err := v.store.FindToken(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return Identity{}, ErrTokenNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to look up token: %w", err)
	}

	if remaining := tok.ExpiresAt().Sub(v.now()); remaining > 0 {
		if err := v.cache.Put(ctx, tok, remaining); err != nil {
			v.logger.Warn("failed to cache resolved token", zap.Error(err))
		}
	}

	return Identity{Sensor: sensor, Token: tok}, nil
}
