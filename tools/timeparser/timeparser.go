package timeparser

import (
	"fmt"
	"time"
	_ "time/tzdata" // containers often ship without /usr/share/zoneinfo
)

// MaxSafeMillis is the largest millisecond timestamp a device may report (2^53 - 1,
// the largest integer a double represents exactly).
const MaxSafeMillis int64 = 1<<53 - 1

// IsWithinBounds checks a device timestamp against [0, MaxSafeMillis]
func IsWithinBounds(millis int64) bool {
	return millis >= 0 && millis <= MaxSafeMillis
}

// FromMillis converts a bounded device timestamp to time.Time
func FromMillis(millis int64) (time.Time, error) {
	if !IsWithinBounds(millis) {
		return time.Time{}, fmt.Errorf("timestamp %d outside [0, %d]", millis, MaxSafeMillis)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// LoadZone resolves a zone identifier, falling back to the default zone when the
// identifier is empty or unknown. The returned bool reports whether the fallback was used.
func LoadZone(zone, defaultZone string) (*time.Location, bool, error) {
	if zone != "" {
		if loc, err := time.LoadLocation(zone); err == nil {
			return loc, false, nil
		}
	}
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, true, fmt.Errorf("failed to load default zone '%s': %w", defaultZone, err)
	}
	return loc, true, nil
}

// Localize returns t expressed in loc
func Localize(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}
