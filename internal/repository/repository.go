package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/energy-metering-ingress/internal/db"
)

const (
	// raised by the energy_readings trigger
	valueTooHighMessage = "value/too-high"
	checkViolation      = "23514"
	valueCheckName      = "energy_readings_value_check"
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// FindSensorByClientID looks up a sensor by its external client id
func (r *Repository) FindSensorByClientID(ctx context.Context, clientID string) (db.Sensor, error) {
	query := `
		SELECT id, client_id, sensor_type, version, needs_script, script, user_id
		FROM sensors
		WHERE client_id = $1
	`

	var sensor db.Sensor
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&sensor.ID,
		&sensor.ClientID,
		&sensor.Type,
		&sensor.Version,
		&sensor.NeedsScript,
		&sensor.Script,
		&sensor.UserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Sensor{}, db.ErrNotFound
	}
	if err != nil {
		return db.Sensor{}, fmt.Errorf("failed to query sensor: %w", err)
	}

	return sensor, nil
}

// FindSensorByID looks up a sensor by primary key
func (r *Repository) FindSensorByID(ctx context.Context, id int64) (db.Sensor, error) {
	query := `
		SELECT id, client_id, sensor_type, version, needs_script, script, user_id
		FROM sensors
		WHERE id = $1
	`

	var sensor db.Sensor
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sensor.ID,
		&sensor.ClientID,
		&sensor.Type,
		&sensor.Version,
		&sensor.NeedsScript,
		&sensor.Script,
		&sensor.UserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Sensor{}, db.ErrNotFound
	}
	if err != nil {
		return db.Sensor{}, fmt.Errorf("failed to query sensor: %w", err)
	}

	return sensor, nil
}

// CreateToken inserts a newly issued token
func (r *Repository) CreateToken(ctx context.Context, token db.SensorToken) error {
	query := `
		INSERT INTO sensor_tokens (code, sensor_id, issued_at, ttl_seconds)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		token.Code,
		token.SensorID,
		token.IssuedAt,
		int64(token.TTL/time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	return nil
}

// FindToken returns a token together with the sensor it was issued for
func (r *Repository) FindToken(ctx context.Context, code string) (db.SensorToken, db.Sensor, error) {
	query := `
		SELECT t.code::text, t.issued_at, t.ttl_seconds,
			s.id, s.client_id, s.sensor_type, s.version, s.needs_script, s.script, s.user_id
		FROM sensor_tokens t
		JOIN sensors s ON s.id = t.sensor_id
		WHERE t.code = $1
	`

	var (
		token      db.SensorToken
		sensor     db.Sensor
		ttlSeconds int64
	)
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&token.Code,
		&token.IssuedAt,
		&ttlSeconds,
		&sensor.ID,
		&sensor.ClientID,
		&sensor.Type,
		&sensor.Version,
		&sensor.NeedsScript,
		&sensor.Script,
		&sensor.UserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.SensorToken{}, db.Sensor{}, db.ErrNotFound
	}
	if err != nil {
		return db.SensorToken{}, db.Sensor{}, fmt.Errorf("failed to query token: %w", err)
	}

	token.SensorID = sensor.ID
	token.TTL = time.Duration(ttlSeconds) * time.Second

	return token, sensor, nil
}

// LookupUserTimezone returns the configured zone of a user. ok is false when the
// user has none set.
func (r *Repository) LookupUserTimezone(ctx context.Context, userID int64) (string, bool, error) {
	query := `SELECT timezone FROM users WHERE id = $1`

	var zone *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query user timezone: %w", err)
	}
	if zone == nil || *zone == "" {
		return "", false, nil
	}

	return *zone, true, nil
}

// InsertReading stores a normalized reading. A reading rejected by the value
// rules yields db.ErrValueTooHigh.
func (r *Repository) InsertReading(ctx context.Context, reading db.EnergyReading) error {
	query := `
		INSERT INTO energy_readings (
			sensor_id, value, value_out, value_current, reading_timestamp, is_cumulative_sum
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		reading.SensorID,
		reading.Value,
		reading.ValueOut,
		reading.ValueCurrent,
		reading.Timestamp,
		reading.IsCumulativeSum,
	)

	return mapInsertError(err)
}

func mapInsertError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Message == valueTooHighMessage ||
			(pgErr.Code == checkViolation && pgErr.ConstraintName == valueCheckName) {
			return fmt.Errorf("%w: %s", db.ErrValueTooHigh, pgErr.Detail)
		}
	}

	return fmt.Errorf("failed to insert reading: %w", err)
}
