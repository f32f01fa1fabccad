package service

import (
	"errors"
	"fmt"

	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/validator"
	"github.com/septivank/energy-metering-ingress/internal/wire"
)

// ErrMalformedBody matches every failure caused by an undecodable request body
var ErrMalformedBody = errors.New("malformed body")

// Kind classifies why a request failed
type Kind int

const (
	KindNone Kind = iota
	KindMalformedBody
	KindUnsupportedVersion
	KindValueNonPositive
	KindTimestampOutOfRange
	KindValueTooHigh
	KindUnauthorized
	KindTokenExpired
	KindTokenInvalid
	KindTokenNotFound
	KindSensorNotFound
	KindStorageFault
)

const (
	statusOK            uint32 = 200
	statusBadRequest    uint32 = 400
	statusUnauthorized  uint32 = 401
	statusNotFound      uint32 = 404
	statusInternalError uint32 = 500

	messageOK = "OK"
)

var kinds = map[Kind]struct {
	name    string
	status  uint32
	message string
}{
	KindNone:                {"None", statusOK, messageOK},
	KindMalformedBody:       {"MalformedBody", statusBadRequest, "INVALID_INPUT"},
	KindUnsupportedVersion:  {"UnsupportedVersion", statusBadRequest, "INVALID_INPUT"},
	KindValueNonPositive:    {"ValueNonPositive", statusBadRequest, "INPUT_IS_ZERO"},
	KindTimestampOutOfRange: {"TimestampOutOfRange", statusBadRequest, "TIMESTAMP_OUT_OF_RANGE"},
	KindValueTooHigh:        {"ValueTooHigh", statusBadRequest, "VALUE_TOO_HIGH"},
	KindUnauthorized:        {"Unauthorized", statusUnauthorized, "UNAUTHORIZED"},
	KindTokenExpired:        {"TokenExpired", statusUnauthorized, "TOKEN_EXPIRED"},
	KindTokenInvalid:        {"TokenInvalid", statusUnauthorized, "TOKEN_INVALID"},
	KindTokenNotFound:       {"TokenNotFound", statusUnauthorized, "TOKEN_NOT_FOUND"},
	KindSensorNotFound:      {"SensorNotFound", statusNotFound, "SENSOR_NOT_FOUND"},
	KindStorageFault:        {"StorageFault", statusInternalError, "DATABASE_ERROR"},
}

func (k Kind) String() string {
	if d, ok := kinds[k]; ok {
		return d.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status is the HTTP and wire status for k
func (k Kind) Status() uint32 {
	if d, ok := kinds[k]; ok {
		return d.status
	}
	return statusInternalError
}

// Message is the wire status_message for k
func (k Kind) Message() string {
	if d, ok := kinds[k]; ok {
		return d.message
	}
	return kinds[KindStorageFault].message
}

// Error is a classified request failure
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes both body failure kinds match ErrMalformedBody
func (e *Error) Is(target error) bool {
	return target == ErrMalformedBody &&
		(e.Kind == KindMalformedBody || e.Kind == KindUnsupportedVersion)
}

// classify maps an error from any stage onto the taxonomy. Anything unrecognised is a
// storage fault since storage is the only collaborator that can fail otherwise.
func classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var decodeErr *wire.DecodeError
	kind := KindStorageFault
	switch {
	case errors.Is(err, wire.ErrUnsupportedVersion):
		kind = KindUnsupportedVersion
	case errors.Is(err, wire.ErrInvalidJSON), errors.As(err, &decodeErr):
		kind = KindMalformedBody
	case errors.Is(err, validator.ErrValueNonPositive):
		kind = KindValueNonPositive
	case errors.Is(err, validator.ErrTimestampOutOfRange):
		kind = KindTimestampOutOfRange
	case errors.Is(err, token.ErrUnauthorized):
		kind = KindUnauthorized
	case errors.Is(err, token.ErrTokenExpired):
		kind = KindTokenExpired
	case errors.Is(err, token.ErrTokenInvalid):
		kind = KindTokenInvalid
	case errors.Is(err, token.ErrTokenNotFound):
		kind = KindTokenNotFound
	case errors.Is(err, token.ErrSensorNotFound):
		kind = KindSensorNotFound
	case errors.Is(err, db.ErrValueTooHigh):
		kind = KindValueTooHigh
	}

	return &Error{Kind: kind, Err: err}
}
