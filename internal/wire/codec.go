package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeError reports a structurally malformed payload
type DecodeError struct {
	Message string
	Field   protowire.Number
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field != 0 {
		return fmt.Sprintf("decode %s: field %d: %v", e.Message, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// schema maps the field numbers a message knows to their expected wire type
type schema map[protowire.Number]protowire.Type

// walk iterates the fields of b. Unknown fields are skipped; a known field carrying a
// different wire type than its schema declares is a structural error.
func walk(message string, s schema, b []byte, visit func(num protowire.Number, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{Message: message, Err: protowire.ParseError(n)}
		}
		b = b[n:]

		want, known := s[num]
		if known && typ != want {
			return &DecodeError{Message: message, Field: num, Err: fmt.Errorf("wire type %d, want %d", typ, want)}
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return &DecodeError{Message: message, Field: num, Err: protowire.ParseError(m)}
		}
		if known {
			if err := visit(num, b[:m]); err != nil {
				return &DecodeError{Message: message, Field: num, Err: err}
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeString(b []byte) (string, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", protowire.ParseError(n)
	}
	return v, nil
}

func consumeVarint(b []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func consumeDouble(b []byte) (float64, error) {
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

var tokenRequestSchema = schema{
	1: protowire.BytesType,
	2: protowire.VarintType,
}

// DecodeTokenRequest decodes a TokenRequest
func DecodeTokenRequest(b []byte) (TokenRequest, error) {
	var m TokenRequest
	err := walk("TokenRequest", tokenRequestSchema, b, func(num protowire.Number, v []byte) error {
		var err error
		switch num {
		case 1:
			m.ClientID, err = consumeString(v)
		case 2:
			var x uint64
			x, err = consumeVarint(v)
			m.NeedsScript = protowire.DecodeBool(x)
		}
		return err
	})
	if err != nil {
		return TokenRequest{}, err
	}
	return m, nil
}

// EncodeTokenRequest encodes a TokenRequest
func EncodeTokenRequest(m TokenRequest) []byte {
	var b []byte
	if m.ClientID != "" {
		b = appendString(b, 1, m.ClientID)
	}
	if m.NeedsScript {
		b = appendVarint(b, 2, protowire.EncodeBool(true))
	}
	return b
}

var tokenResponseSchema = schema{
	1: protowire.VarintType,
	2: protowire.BytesType,
	3: protowire.BytesType,
	4: protowire.VarintType,
	5: protowire.BytesType,
	6: protowire.VarintType,
}

// DecodeTokenResponse decodes a TokenResponse
func DecodeTokenResponse(b []byte) (TokenResponse, error) {
	var m TokenResponse
	err := walk("TokenResponse", tokenResponseSchema, b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1, 4, 6:
			x, err := consumeVarint(v)
			if err != nil {
				return err
			}
			u := uint32(x)
			switch num {
			case 1:
				m.Status = u
			case 4:
				m.ExpiresIn = &u
			case 6:
				m.AnalogRotationPerKwh = &u
			}
		case 2, 3, 5:
			s, err := consumeString(v)
			if err != nil {
				return err
			}
			switch num {
			case 2:
				m.StatusMessage = s
			case 3:
				m.AccessToken = &s
			case 5:
				m.Script = &s
			}
		}
		return nil
	})
	if err != nil {
		return TokenResponse{}, err
	}
	return m, nil
}

// EncodeTokenResponse encodes a TokenResponse
func EncodeTokenResponse(m TokenResponse) []byte {
	var b []byte
	if m.Status != 0 {
		b = appendVarint(b, 1, uint64(m.Status))
	}
	if m.StatusMessage != "" {
		b = appendString(b, 2, m.StatusMessage)
	}
	if m.AccessToken != nil {
		b = appendString(b, 3, *m.AccessToken)
	}
	if m.ExpiresIn != nil {
		b = appendVarint(b, 4, uint64(*m.ExpiresIn))
	}
	if m.Script != nil {
		b = appendString(b, 5, *m.Script)
	}
	if m.AnalogRotationPerKwh != nil {
		b = appendVarint(b, 6, uint64(*m.AnalogRotationPerKwh))
	}
	return b
}

var sensorDataV1Schema = schema{
	1: protowire.BytesType,
	2: protowire.Fixed64Type,
	3: protowire.VarintType,
}

// DecodeSensorDataV1 decodes a SensorDataRequest
func DecodeSensorDataV1(b []byte) (SensorDataV1, error) {
	var m SensorDataV1
	err := walk("SensorDataRequest", sensorDataV1Schema, b, func(num protowire.Number, v []byte) error {
		var err error
		switch num {
		case 1:
			m.AccessToken, err = consumeString(v)
		case 2:
			m.Value, err = consumeDouble(v)
		case 3:
			var x uint64
			x, err = consumeVarint(v)
			m.Type = SensorType(int32(x))
		}
		return err
	})
	if err != nil {
		return SensorDataV1{}, err
	}
	return m, nil
}

// EncodeSensorDataV1 encodes a SensorDataRequest
func EncodeSensorDataV1(m SensorDataV1) []byte {
	var b []byte
	if m.AccessToken != "" {
		b = appendString(b, 1, m.AccessToken)
	}
	if m.Value != 0 {
		b = appendDouble(b, 2, m.Value)
	}
	if m.Type != 0 {
		b = appendVarint(b, 3, uint64(int64(m.Type)))
	}
	return b
}

var sensorDataV2Schema = schema{
	1: protowire.BytesType,
	2: protowire.Fixed64Type,
	3: protowire.Fixed64Type,
	4: protowire.Fixed64Type,
	5: protowire.VarintType,
}

// DecodeSensorDataV2 decodes a SensorDataRequestV2
func DecodeSensorDataV2(b []byte) (SensorDataV2, error) {
	var m SensorDataV2
	err := walk("SensorDataRequestV2", sensorDataV2Schema, b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			s, err := consumeString(v)
			if err != nil {
				return err
			}
			m.AccessToken = s
		case 2, 3, 4:
			f, err := consumeDouble(v)
			if err != nil {
				return err
			}
			switch num {
			case 2:
				m.Value = f
			case 3:
				m.ValueOut = &f
			case 4:
				m.ValueCurrent = &f
			}
		case 5:
			x, err := consumeVarint(v)
			if err != nil {
				return err
			}
			ts := int64(x)
			m.Timestamp = &ts
		}
		return nil
	})
	if err != nil {
		return SensorDataV2{}, err
	}
	return m, nil
}

// EncodeSensorDataV2 encodes a SensorDataRequestV2
func EncodeSensorDataV2(m SensorDataV2) []byte {
	var b []byte
	if m.AccessToken != "" {
		b = appendString(b, 1, m.AccessToken)
	}
	if m.Value != 0 {
		b = appendDouble(b, 2, m.Value)
	}
	if m.ValueOut != nil {
		b = appendDouble(b, 3, *m.ValueOut)
	}
	if m.ValueCurrent != nil {
		b = appendDouble(b, 4, *m.ValueCurrent)
	}
	if m.Timestamp != nil {
		b = appendVarint(b, 5, uint64(*m.Timestamp))
	}
	return b
}

var sensorDataResponseSchema = schema{
	1: protowire.VarintType,
	2: protowire.BytesType,
}

// DecodeSensorDataResponse decodes a SensorDataResponse
func DecodeSensorDataResponse(b []byte) (SensorDataResponse, error) {
	var m SensorDataResponse
	err := walk("SensorDataResponse", sensorDataResponseSchema, b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			x, err := consumeVarint(v)
			if err != nil {
				return err
			}
			m.Status = uint32(x)
		case 2:
			s, err := consumeString(v)
			if err != nil {
				return err
			}
			m.StatusMessage = &s
		}
		return nil
	})
	if err != nil {
		return SensorDataResponse{}, err
	}
	return m, nil
}

// EncodeSensorDataResponse encodes a SensorDataResponse
func EncodeSensorDataResponse(m SensorDataResponse) []byte {
	var b []byte
	if m.Status != 0 {
		b = appendVarint(b, 1, uint64(m.Status))
	}
	if m.StatusMessage != nil {
		b = appendString(b, 2, *m.StatusMessage)
	}
	return b
}
