package validator

import (
	"errors"
	"fmt"
	"math"

	"github.com/septivank/energy-metering-ingress/internal/wire"
	"github.com/septivank/energy-metering-ingress/tools/timeparser"
)

var (
	// ErrValueNonPositive rejects readings with value <= 0, NaN or ±Inf
	ErrValueNonPositive = errors.New("reading value must be positive")
	// ErrTimestampOutOfRange rejects device timestamps outside [0, 2^53-1] ms
	ErrTimestampOutOfRange = errors.New("reading timestamp out of range")
)

// Verdict is the outcome of a successful validation
type Verdict int

const (
	// VerdictAccept means the reading should be authenticated, normalized and stored
	VerdictAccept Verdict = iota
	// VerdictSkip means there is nothing to store and the request succeeds as is
	VerdictSkip
)

func (v Verdict) String() string {
	if v == VerdictSkip {
		return "skip"
	}
	return "accept"
}

// Validator runs the checks that need nothing but the decoded payload, so that
// malformed readings never reach the token store.
type Validator struct {
	// analogZeroVersions lists the transports on which an analog value <= 0 means
	// "no pulses since last report" instead of an error
	analogZeroVersions map[wire.Version]bool
}

// NewValidator creates a validator with the analog zero short-circuit enabled only on
// the JSON transport.
func NewValidator() *Validator {
	return &Validator{
		analogZeroVersions: map[wire.Version]bool{wire.VersionJSON: true},
	}
}

// Validate checks the value range and the device timestamp bounds
func (v *Validator) Validate(reading wire.Reading) (Verdict, error) {
	// a binary double can carry NaN or Inf, neither compares <= 0
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return VerdictAccept, fmt.Errorf("%w: got non-finite %v", ErrValueNonPositive, reading.Value)
	}

	if reading.Value <= 0 {
		if reading.Analog() && v.analogZeroVersions[reading.Version] {
			return VerdictSkip, nil
		}
		return VerdictAccept, fmt.Errorf("%w: got %v", ErrValueNonPositive, reading.Value)
	}

	if reading.Timestamp != nil && !timeparser.IsWithinBounds(*reading.Timestamp) {
		return VerdictAccept, fmt.Errorf("%w: %d ms", ErrTimestampOutOfRange, *reading.Timestamp)
	}

	return VerdictAccept, nil
}
