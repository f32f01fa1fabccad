package db

import (
	"time"
)

// SensorType is the metering hardware class of a sensor
type SensorType string

const (
	SensorTypeDigitalElectricity SensorType = "digital-electricity"
	SensorTypeAnalogElectricity  SensorType = "analog-electricity"
	SensorTypeWater              SensorType = "water"
	SensorTypeGas                SensorType = "gas"
)

// Sensor represents a registered metering device. Sensors are created out of band
// and only read by the ingress.
type Sensor struct {
	ID          int64
	ClientID    string
	Type        SensorType
	Version     int
	NeedsScript bool
	Script      *string
	UserID      *int64
}

// HasOwner reports whether the sensor is assigned to a user
func (s Sensor) HasOwner() bool {
	return s.UserID != nil
}

// SensorToken represents an issued access token
type SensorToken struct {
	Code     string
	SensorID int64
	IssuedAt time.Time
	TTL      time.Duration
}

// ExpiresAt returns the instant after which the token is no longer valid
func (t SensorToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.TTL)
}

// Expired reports whether issuedAt + ttl < now
func (t SensorToken) Expired(now time.Time) bool {
	return t.ExpiresAt().Before(now)
}

// EnergyReading is a normalized reading handed to storage
type EnergyReading struct {
	SensorID        int64
	Value           float64
	ValueOut        *float64
	ValueCurrent    *float64
	Timestamp       time.Time
	IsCumulativeSum bool
}
