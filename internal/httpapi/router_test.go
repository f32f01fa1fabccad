package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/diagnostics"
	"github.com/septivank/energy-metering-ingress/internal/reading"
	"github.com/septivank/energy-metering-ingress/internal/service"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/validator"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryStore backs both the issuer and the validator so a token issued over HTTP can
// be used for a reading over HTTP.
type memoryStore struct {
	mu       sync.Mutex
	sensors  map[string]db.Sensor
	tokens   map[string]db.SensorToken
	inserted []db.EnergyReading
	pingErr  error
}

func (m *memoryStore) FindSensorByClientID(_ context.Context, clientID string) (db.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sensors[clientID]
	if !ok {
		return db.Sensor{}, db.ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) CreateToken(_ context.Context, t db.SensorToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Code] = t
	return nil
}

func (m *memoryStore) FindToken(_ context.Context, code string) (db.SensorToken, db.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[code]
	if !ok {
		return db.SensorToken{}, db.Sensor{}, db.ErrNotFound
	}
	for _, s := range m.sensors {
		if s.ID == t.SensorID {
			return t, s, nil
		}
	}
	return db.SensorToken{}, db.Sensor{}, db.ErrNotFound
}

func (m *memoryStore) FindSensorByID(_ context.Context, id int64) (db.Sensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sensors {
		if s.ID == id {
			return s, nil
		}
	}
	return db.Sensor{}, db.ErrNotFound
}

func (m *memoryStore) LookupUserTimezone(context.Context, int64) (string, bool, error) {
	return "", false, nil
}

func (m *memoryStore) InsertReading(_ context.Context, r db.EnergyReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Value > 1e6 {
		return db.ErrValueTooHigh
	}
	m.inserted = append(m.inserted, r)
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return m.pingErr }

type nopReporter struct{}

func (nopReporter) Report(diagnostics.Event)             {}
func (nopReporter) Accepted(diagnostics.ReadingAccepted) {}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	script := "750"
	owner := int64(1)
	store := &memoryStore{
		sensors: map[string]db.Sensor{
			"a4:cf:12:9b:0e:11": {ID: 1, ClientID: "a4:cf:12:9b:0e:11", Type: db.SensorTypeDigitalElectricity, UserID: &owner},
			"a4:cf:12:9b:0e:22": {ID: 2, ClientID: "a4:cf:12:9b:0e:22", Type: db.SensorTypeAnalogElectricity, NeedsScript: true, Script: &script, UserID: &owner},
		},
		tokens: map[string]db.SensorToken{},
	}

	logger := zap.NewNop()
	v := validator.NewValidator()
	ingestion := service.NewIngestionService(
		token.NewValidator(store, nil, logger),
		store,
		v,
		reading.NewNormalizer(v, "Europe/Berlin", logger),
		nopReporter{},
		logger,
	)
	tokens := service.NewTokenHandler(token.NewIssuer(store, nil, time.Hour, logger), nopReporter{}, logger)

	return NewRouter(NewHandlers(ingestion, tokens, store, logger), logger), store
}

func post(router *gin.Engine, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", wire.ContentType)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func issueToken(t *testing.T, router *gin.Engine, clientID string) wire.TokenResponse {
	t.Helper()
	w := post(router, "/token", wire.EncodeTokenRequest(wire.TokenRequest{ClientID: clientID}), nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp, err := wire.DecodeTokenResponse(w.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, resp.AccessToken)
	return resp
}

func decodeSensorDataResponse(t *testing.T, w *httptest.ResponseRecorder) wire.SensorDataResponse {
	t.Helper()
	assert.Equal(t, wire.ContentType, w.Header().Get("Content-Type"))
	resp, err := wire.DecodeSensorDataResponse(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(w.Code), resp.Status, "HTTP status mirrors the embedded status")
	require.NotNil(t, resp.StatusMessage)
	return resp
}

func TestTokenRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := issueToken(t, router, "a4:cf:12:9b:0e:11")
	assert.Equal(t, uint32(200), resp.Status)
	require.NotNil(t, resp.ExpiresIn)
	assert.Equal(t, uint32(3600), *resp.ExpiresIn)

	analog := issueToken(t, router, "a4:cf:12:9b:0e:22")
	require.NotNil(t, analog.AnalogRotationPerKwh)
	assert.Equal(t, uint32(750), *analog.AnalogRotationPerKwh)
	assert.Nil(t, analog.Script)
}

func TestTokenRoute_UnknownSensor(t *testing.T) {
	router, _ := newTestRouter(t)

	w := post(router, "/token", wire.EncodeTokenRequest(wire.TokenRequest{ClientID: "ff:ff:ff:ff:ff:ff"}), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp, err := wire.DecodeTokenResponse(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(404), resp.Status)
	assert.Equal(t, "SENSOR_NOT_FOUND", resp.StatusMessage)
}

func TestLegacySensorData(t *testing.T) {
	router, store := newTestRouter(t)
	tok := issueToken(t, router, "a4:cf:12:9b:0e:11")

	body := wire.EncodeSensorDataV2(wire.SensorDataV2{AccessToken: *tok.AccessToken, Value: 5.2})
	w := post(router, "/sensor-data", body, map[string]string{"X-Request-ID": "req-42"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	resp := decodeSensorDataResponse(t, w)
	assert.Equal(t, "OK", *resp.StatusMessage)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, 5.2, store.inserted[0].Value)
}

func TestLegacySensorData_Failures(t *testing.T) {
	router, _ := newTestRouter(t)
	tok := issueToken(t, router, "a4:cf:12:9b:0e:11")

	cases := []struct {
		name    string
		body    []byte
		status  int
		message string
	}{
		{"garbage", []byte{0x0a, 0x7f, 0x01}, 400, "INVALID_INPUT"},
		{"empty", nil, 400, "INVALID_INPUT"},
		{"zero", wire.EncodeSensorDataV2(wire.SensorDataV2{AccessToken: *tok.AccessToken}), 400, "INPUT_IS_ZERO"},
		{"too high", wire.EncodeSensorDataV2(wire.SensorDataV2{AccessToken: *tok.AccessToken, Value: 2e6}), 400, "VALUE_TOO_HIGH"},
		{"bad token", wire.EncodeSensorDataV2(wire.SensorDataV2{AccessToken: "nope", Value: 1}), 401, "TOKEN_INVALID"},
		{"unknown token", wire.EncodeSensorDataV2(wire.SensorDataV2{AccessToken: "6a1c2f6e-0000-4000-8000-000000000000", Value: 1}), 401, "TOKEN_NOT_FOUND"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(router, "/sensor-data", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			resp := decodeSensorDataResponse(t, w)
			assert.Equal(t, tc.message, *resp.StatusMessage)
		})
	}
}

func TestBearerSensorData(t *testing.T) {
	router, store := newTestRouter(t)
	tok := issueToken(t, router, "a4:cf:12:9b:0e:22")

	w := post(router, "/v2/sensor-data", []byte(`{"value": 3, "sensor_type": 1}`), map[string]string{
		"Authorization": "Bearer " + *tok.AccessToken,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	decodeSensorDataResponse(t, w)
	require.Len(t, store.inserted, 1)
	assert.True(t, store.inserted[0].IsCumulativeSum)
}

func TestBearerSensorData_Unauthorized(t *testing.T) {
	router, _ := newTestRouter(t)

	w := post(router, "/v2/sensor-data", []byte(`{"value": 3, "sensor_type": 0}`), nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeSensorDataResponse(t, w)
	assert.Equal(t, "UNAUTHORIZED", *resp.StatusMessage)
}

func TestOversizedBodyIsMalformed(t *testing.T) {
	router, _ := newTestRouter(t)

	w := post(router, "/sensor-data", bytes.Repeat([]byte{0x00}, maxBodyBytes+1), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	router, store := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "healthy"))

	store.pingErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecoveryAnswersWithProtobuf(t *testing.T) {
	router, _ := newTestRouter(t)
	router.POST("/panics", func(c *gin.Context) { panic("boom") })

	w := post(router, "/panics", []byte{0x0a}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, wire.ContentType, w.Header().Get("Content-Type"))
	resp, err := wire.DecodeSensorDataResponse(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(500), resp.Status)
	require.NotNil(t, resp.StatusMessage)
	assert.Equal(t, "DATABASE_ERROR", *resp.StatusMessage)
}

func TestInternalErrorBody_TokenRoute(t *testing.T) {
	resp, err := wire.DecodeTokenResponse(internalErrorBody(tokenPath))

	require.NoError(t, err)
	assert.Equal(t, uint32(500), resp.Status)
	assert.Equal(t, "DATABASE_ERROR", resp.StatusMessage)
	assert.Nil(t, resp.AccessToken)
}
