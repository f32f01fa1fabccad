package wire

import (
	"errors"
	"sort"
)

// ErrUnsupportedVersion is returned when a payload matches none of the known schemas
var ErrUnsupportedVersion = errors.New("payload matches no supported sensor data schema")

// Decoder turns a payload into a Reading if it is structurally valid for one schema
type Decoder interface {
	Version() Version
	Decode(b []byte) (Reading, error)
}

// V1Decoder decodes the original SensorDataRequest schema
type V1Decoder struct{}

func (V1Decoder) Version() Version { return VersionV1 }

func (V1Decoder) Decode(b []byte) (Reading, error) {
	m, err := DecodeSensorDataV1(b)
	if err != nil {
		return Reading{}, err
	}
	return m.ToReading(), nil
}

// V2Decoder decodes the SensorDataRequestV2 schema
type V2Decoder struct{}

func (V2Decoder) Version() Version { return VersionV2 }

func (V2Decoder) Decode(b []byte) (Reading, error) {
	m, err := DecodeSensorDataV2(b)
	if err != nil {
		return Reading{}, err
	}
	return m.ToReading(), nil
}

// DecoderChain tries its decoders newest version first and stops at the first success
type DecoderChain struct {
	decoders []Decoder
}

// NewDecoderChain orders the given decoders by descending version
func NewDecoderChain(decoders ...Decoder) *DecoderChain {
	ordered := make([]Decoder, len(decoders))
	copy(ordered, decoders)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Version() > ordered[j].Version()
	})
	return &DecoderChain{decoders: ordered}
}

// NewSensorDataChain returns the chain for every binary sensor data schema
func NewSensorDataChain() *DecoderChain {
	return NewDecoderChain(V1Decoder{}, V2Decoder{})
}

// Versions lists the versions in the order they are attempted
func (c *DecoderChain) Versions() []Version {
	versions := make([]Version, 0, len(c.decoders))
	for _, d := range c.decoders {
		versions = append(versions, d.Version())
	}
	return versions
}

// Decode returns the reading from the newest schema that accepts b. When every
// schema rejects it the error wraps ErrUnsupportedVersion and each attempt's error.
func (c *DecoderChain) Decode(b []byte) (Reading, error) {
	errs := []error{ErrUnsupportedVersion}
	for _, d := range c.decoders {
		r, err := d.Decode(b)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	return Reading{}, errors.Join(errs...)
}
