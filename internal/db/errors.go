package db

import "errors"

var (
	// ErrNotFound is returned by storage lookups that match no row
	ErrNotFound = errors.New("not found")
	// ErrValueTooHigh is the storage-side data quality rejection of a reading
	ErrValueTooHigh = errors.New("value/too-high")
)
