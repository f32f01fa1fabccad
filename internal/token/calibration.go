package token

import (
	"regexp"
	"strconv"
	"strings"
)

// CalibrationKind tells which payload a Calibration carries
type CalibrationKind int

const (
	CalibrationNone CalibrationKind = iota
	// CalibrationRotations is an analog meter constant in rotations per kWh
	CalibrationRotations
	// CalibrationScript is an opaque program interpreted by the device
	CalibrationScript
)

// Calibration is what a sensor's script slot holds. The wire format has a single
// optional string for it, so a bare integer and a program share the slot and are told
// apart by shape only.
type Calibration struct {
	kind      CalibrationKind
	rotations uint32
	script    string
}

// RotationsPerKwh builds a numeric calibration
func RotationsPerKwh(n uint32) Calibration {
	return Calibration{kind: CalibrationRotations, rotations: n}
}

// Script builds an opaque script calibration
func Script(s string) Calibration {
	return Calibration{kind: CalibrationScript, script: s}
}

func (c Calibration) Kind() CalibrationKind { return c.kind }

// Rotations returns the rotations per kWh if c is numeric
func (c Calibration) Rotations() (uint32, bool) {
	return c.rotations, c.kind == CalibrationRotations
}

// Script returns the raw program if c is a script
func (c Calibration) Script() (string, bool) {
	return c.script, c.kind == CalibrationScript
}

var rotationsPattern = regexp.MustCompile(`^\d+$`)

// Classify decides whether a stored script is a rotations-per-kWh constant or a
// program. A single line of decimal digits that fits in uint32 is a constant; a
// trailing line break does not count as a second line.
func Classify(script string) Calibration {
	line := strings.TrimRight(script, "\r\n")
	if strings.ContainsAny(line, "\r\n") || !rotationsPattern.MatchString(line) {
		return Script(script)
	}
	n, err := strconv.ParseUint(line, 10, 32)
	if err != nil {
		return Script(script)
	}
	return RotationsPerKwh(uint32(n))
}

// IsRotationCounter reports whether a sensor script marks the sensor as an analog
// rotation counter whose values are pulse counts.
func IsRotationCounter(script *string) bool {
	if script == nil {
		return false
	}
	return Classify(*script).Kind() == CalibrationRotations
}
