package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/energy-metering-ingress/internal/service"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; device payloads are a few dozen bytes
const maxBodyBytes = 64 << 10

// Ingester runs a reading submission
type Ingester interface {
	Ingest(ctx context.Context, route service.Route, req service.Request) service.Result
}

// TokenService answers token requests
type TokenService interface {
	Handle(ctx context.Context, req service.Request) *wire.TokenResponse
}

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the device facing routes
type Handlers struct {
	ingester    Ingester
	tokens      TokenService
	db          Pinger
	legacyRoute service.Route
	bearerRoute service.Route
	logger      *zap.Logger
}

// NewHandlers creates the route handlers
func NewHandlers(ingester Ingester, tokens TokenService, db Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		ingester:    ingester,
		tokens:      tokens,
		db:          db,
		legacyRoute: service.LegacyRoute(),
		bearerRoute: service.BearerRoute(),
		logger:      logger,
	}
}

func (h *Handlers) token(c *gin.Context) {
	resp := h.tokens.Handle(c.Request.Context(), h.request(c))
	c.Data(int(resp.Status), wire.ContentType, wire.EncodeTokenResponse(*resp))
}

func (h *Handlers) legacySensorData(c *gin.Context) {
	h.ingest(c, h.legacyRoute)
}

func (h *Handlers) bearerSensorData(c *gin.Context) {
	h.ingest(c, h.bearerRoute)
}

func (h *Handlers) ingest(c *gin.Context, route service.Route) {
	res := h.ingester.Ingest(c.Request.Context(), route, h.request(c))
	c.Data(res.Status(), wire.ContentType, wire.EncodeSensorDataResponse(*res.Response))
}

func (h *Handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// request reads the bounded body. An unreadable or oversized body is passed on empty
// and rejected as malformed by the service.
func (h *Handlers) request(c *gin.Context) service.Request {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	body, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("failed to read request body",
			zap.String(requestIDKey, c.GetString(requestIDKey)),
			zap.Error(err),
		)
		body = nil
	}

	return service.Request{
		ID:            c.GetString(requestIDKey),
		Body:          body,
		Authorization: c.GetHeader("Authorization"),
	}
}
