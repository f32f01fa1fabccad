package wire

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
)

// ErrInvalidJSON is returned when a JSON reading body fails to bind or validate
var ErrInvalidJSON = errors.New("invalid sensor data body")

// SensorDataJSON is the body of the bearer-authenticated reading route
type SensorDataJSON struct {
	Value        *float64 `json:"value" binding:"required"`
	ValueOut     *float64 `json:"value_out"`
	ValueCurrent *float64 `json:"value_current"`
	// Date is milliseconds since the Unix epoch
	Date       *int64 `json:"date"`
	SensorType *int32 `json:"sensor_type" binding:"required,oneof=0 1"`
}

// DecodeSensorDataJSON binds and validates a JSON reading body
func DecodeSensorDataJSON(body []byte) (Reading, error) {
	var req SensorDataJSON
	if err := binding.JSON.BindBody(body, &req); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	return Reading{
		Value:        *req.Value,
		ValueOut:     req.ValueOut,
		ValueCurrent: req.ValueCurrent,
		Timestamp:    req.Date,
		Type:         SensorType(*req.SensorType),
		Version:      VersionJSON,
	}, nil
}
