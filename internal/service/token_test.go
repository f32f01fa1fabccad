package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/energy-metering-ingress/internal/db"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIssuer struct {
	grants      map[string]token.Grant
	err         error
	needsScript bool
}

func (f *fakeIssuer) Issue(_ context.Context, clientID string, deviceNeedsScript bool) (token.Grant, error) {
	f.needsScript = deviceNeedsScript
	if f.err != nil {
		return token.Grant{}, f.err
	}
	grant, ok := f.grants[clientID]
	if !ok {
		return token.Grant{}, token.ErrSensorNotFound
	}
	return grant, nil
}

func newTokenHandler(issuer *fakeIssuer) (*TokenHandler, *fakeReporter) {
	reporter := &fakeReporter{}
	return NewTokenHandler(issuer, reporter, zap.NewNop()), reporter
}

func tokenBody(clientID string, needsScript bool) []byte {
	return wire.EncodeTokenRequest(wire.TokenRequest{ClientID: clientID, NeedsScript: needsScript})
}

func TestTokenHandler_Issued(t *testing.T) {
	issuer := &fakeIssuer{grants: map[string]token.Grant{
		"a4:cf:12:9b:0e:11": {AccessToken: digitalToken, ExpiresIn: time.Hour, Sensor: db.Sensor{ID: 1}},
	}}
	h, reporter := newTokenHandler(issuer)

	resp := h.Handle(context.Background(), Request{ID: "req-1", Body: tokenBody("a4:cf:12:9b:0e:11", false)})

	assert.Equal(t, uint32(200), resp.Status)
	assert.Equal(t, "OK", resp.StatusMessage)
	require.NotNil(t, resp.AccessToken)
	assert.Equal(t, digitalToken, *resp.AccessToken)
	require.NotNil(t, resp.ExpiresIn)
	assert.Equal(t, uint32(3600), *resp.ExpiresIn)
	assert.Nil(t, resp.Script)
	assert.Nil(t, resp.AnalogRotationPerKwh)
	assert.Empty(t, reporter.events)
}

func TestTokenHandler_Calibration(t *testing.T) {
	issuer := &fakeIssuer{grants: map[string]token.Grant{
		"analog": {AccessToken: analogToken, ExpiresIn: time.Hour, Calibration: token.RotationsPerKwh(750)},
		"script": {AccessToken: digitalToken, ExpiresIn: time.Hour, Calibration: token.Script("pulse gpio4\nfactor 750")},
	}}
	h, _ := newTokenHandler(issuer)

	resp := h.Handle(context.Background(), Request{Body: tokenBody("analog", true)})
	require.NotNil(t, resp.AnalogRotationPerKwh)
	assert.Equal(t, uint32(750), *resp.AnalogRotationPerKwh)
	assert.Nil(t, resp.Script)
	assert.True(t, issuer.needsScript, "device signal is passed to the issuer")

	resp = h.Handle(context.Background(), Request{Body: tokenBody("script", false)})
	require.NotNil(t, resp.Script)
	assert.Equal(t, "pulse gpio4\nfactor 750", *resp.Script)
	assert.Nil(t, resp.AnalogRotationPerKwh)
}

func TestTokenHandler_UnknownSensor(t *testing.T) {
	h, reporter := newTokenHandler(&fakeIssuer{})

	resp := h.Handle(context.Background(), Request{ID: "req-2", Body: tokenBody("nobody", false)})

	assert.Equal(t, uint32(404), resp.Status)
	assert.Equal(t, "SENSOR_NOT_FOUND", resp.StatusMessage)
	assert.Nil(t, resp.AccessToken)
	require.Len(t, reporter.events, 1)
	assert.Equal(t, "token", reporter.events[0].Route)
}

func TestTokenHandler_BadRequests(t *testing.T) {
	h, reporter := newTokenHandler(&fakeIssuer{})

	for _, body := range [][]byte{nil, {0x0a, 0x7f}, tokenBody("", false)} {
		resp := h.Handle(context.Background(), Request{Body: body})
		assert.Equal(t, uint32(400), resp.Status, "%x", body)
		assert.Equal(t, "INVALID_INPUT", resp.StatusMessage)
	}
	assert.Len(t, reporter.events, 3)
}

func TestTokenHandler_StorageFault(t *testing.T) {
	h, _ := newTokenHandler(&fakeIssuer{err: errors.New("failed to persist token: connection refused")})

	resp := h.Handle(context.Background(), Request{Body: tokenBody("meter-1", false)})

	assert.Equal(t, uint32(500), resp.Status)
	assert.Equal(t, "DATABASE_ERROR", resp.StatusMessage)
}
