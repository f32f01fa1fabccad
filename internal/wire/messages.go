// Package wire implements the binary message schemas spoken by metering devices.
//
// All messages use the protobuf wire format. Field numbers are shared between the
// sensor data schema versions and newer fields are only ever added, so a payload is
// attributed to a version by decoding it against each schema, newest first.
// Optional fields are pointers: nil means the device did not report the field.
package wire

// ContentType is the media type of every request and response body on the binary routes
const ContentType = "application/x-protobuf"

// SensorType is the sensor class reported by the device on the wire
type SensorType int32

const (
	SensorTypeDigital SensorType = 0
	SensorTypeAnalog  SensorType = 1
)

// Version identifies the schema or transport a reading was decoded from
type Version int

const (
	VersionV1   Version = 1
	VersionV2   Version = 2
	VersionJSON Version = 3
)

func (v Version) String() string {
	switch v {
	case VersionV1:
		return "v1"
	case VersionV2:
		return "v2"
	case VersionJSON:
		return "json"
	default:
		return "unknown"
	}
}

// TokenRequest asks for an access token for a client id
type TokenRequest struct {
	ClientID string
	// NeedsScript is set by devices that lost their calibration and want it resent
	NeedsScript bool
}

// TokenResponse carries an issued token or the failure status.
// At most one of Script and AnalogRotationPerKwh is set.
type TokenResponse struct {
	Status               uint32
	StatusMessage        string
	AccessToken          *string
	ExpiresIn            *uint32
	Script               *string
	AnalogRotationPerKwh *uint32
}

// SensorDataV1 is the original reading schema
type SensorDataV1 struct {
	AccessToken string
	Value       float64
	Type        SensorType
}

// SensorDataV2 extends the reading schema with optional channels and a device timestamp
type SensorDataV2 struct {
	AccessToken  string
	Value        float64
	ValueOut     *float64
	ValueCurrent *float64
	// Timestamp is milliseconds since the Unix epoch
	Timestamp *int64
}

// SensorDataResponse is the reply to every reading submission
type SensorDataResponse struct {
	Status        uint32
	StatusMessage *string
}

// Reading is a decoded submission independent of the schema it arrived in
type Reading struct {
	AccessToken  string
	Value        float64
	ValueOut     *float64
	ValueCurrent *float64
	Timestamp    *int64
	Type         SensorType
	Version      Version
}

// Protocol labels the schema generation for logs and events. A v2 reading without any
// v2-only field is byte-compatible with a digital v1 payload, so it is labelled
// "v1-or-v2".
func (r Reading) Protocol() string {
	if r.Version == VersionV2 && r.ValueOut == nil && r.ValueCurrent == nil && r.Timestamp == nil {
		return "v1-or-v2"
	}
	return r.Version.String()
}

// Analog reports whether the device declared itself an analog pulse counter
func (r Reading) Analog() bool {
	return r.Type == SensorTypeAnalog
}

// ToReading lifts a v1 message into the common reading form
func (m SensorDataV1) ToReading() Reading {
	return Reading{
		AccessToken: m.AccessToken,
		Value:       m.Value,
		Type:        m.Type,
		Version:     VersionV1,
	}
}

// ToReading lifts a v2 message into the common reading form
func (m SensorDataV2) ToReading() Reading {
	return Reading{
		AccessToken:  m.AccessToken,
		Value:        m.Value,
		ValueOut:     m.ValueOut,
		ValueCurrent: m.ValueCurrent,
		Timestamp:    m.Timestamp,
		Type:         SensorTypeDigital,
		Version:      VersionV2,
	}
}
