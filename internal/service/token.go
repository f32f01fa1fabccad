package service

import (
	"context"
	"errors"
	"time"

	"github.com/septivank/energy-metering-ingress/internal/diagnostics"
	"github.com/septivank/energy-metering-ingress/internal/logging"
	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"go.uber.org/zap"
)

const tokenRoute = "token"

// TokenIssuer issues access tokens for client ids
type TokenIssuer interface {
	Issue(ctx context.Context, clientID string, deviceNeedsScript bool) (token.Grant, error)
}

// TokenHandler answers TokenRequests
type TokenHandler struct {
	issuer   TokenIssuer
	reporter Reporter
	logger   *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(issuer TokenIssuer, reporter Reporter, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		issuer:   issuer,
		reporter: reporter,
		logger:   logger,
	}
}

// Handle decodes a TokenRequest and returns the response to encode
func (h *TokenHandler) Handle(ctx context.Context, req Request) *wire.TokenResponse {
	reqLogger := logging.WithRequestID(h.logger, req.ID)

	grant, err := h.issue(ctx, req)
	if err != nil {
		classified := classify(err)
		if classified.Kind == KindStorageFault {
			reqLogger.Error("token request failed", zap.Stringer("kind", classified.Kind), zap.Error(err))
		} else {
			reqLogger.Warn("token request rejected", zap.Stringer("kind", classified.Kind), zap.Error(err))
		}
		h.reporter.Report(diagnostics.Event{
			RequestID: req.ID,
			Route:     tokenRoute,
			Status:    classified.Kind.Status(),
			Message:   classified.Kind.Message(),
			Error:     classified.Error(),
		})
		return &wire.TokenResponse{Status: classified.Kind.Status(), StatusMessage: classified.Kind.Message()}
	}

	reqLogger.Info("token issued", zap.Int64("sensor_id", grant.Sensor.ID))

	expiresIn := uint32(grant.ExpiresIn / time.Second)
	resp := &wire.TokenResponse{
		Status:        KindNone.Status(),
		StatusMessage: KindNone.Message(),
		AccessToken:   &grant.AccessToken,
		ExpiresIn:     &expiresIn,
	}
	if n, ok := grant.Calibration.Rotations(); ok {
		resp.AnalogRotationPerKwh = &n
	} else if script, ok := grant.Calibration.Script(); ok {
		resp.Script = &script
	}

	return resp
}

func (h *TokenHandler) issue(ctx context.Context, req Request) (token.Grant, error) {
	if len(req.Body) == 0 {
		return token.Grant{}, &Error{Kind: KindMalformedBody, Err: errors.New("empty body")}
	}

	msg, err := wire.DecodeTokenRequest(req.Body)
	if err != nil {
		return token.Grant{}, &Error{Kind: KindMalformedBody, Err: err}
	}
	if msg.ClientID == "" {
		return token.Grant{}, &Error{Kind: KindMalformedBody, Err: errors.New("empty client id")}
	}

	return h.issuer.Issue(ctx, msg.ClientID, msg.NeedsScript)
}
