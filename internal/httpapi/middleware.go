package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/septivank/energy-metering-ingress/internal/service"
	"github.com/septivank/energy-metering-ingress/internal/wire"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String(requestIDKey, c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic while handling request",
			zap.String(requestIDKey, c.GetString(requestIDKey)),
			zap.Any("panic", recovered),
		)
		c.Abort()
		c.Data(http.StatusInternalServerError, wire.ContentType, internalErrorBody(c.FullPath()))
	})
}

// internalErrorBody is the protobuf reply for a request that panicked, shaped for the
// route it was sent to
func internalErrorBody(path string) []byte {
	status := service.KindStorageFault.Status()
	message := service.KindStorageFault.Message()
	if path == tokenPath {
		return wire.EncodeTokenResponse(wire.TokenResponse{Status: status, StatusMessage: message})
	}
	return wire.EncodeSensorDataResponse(wire.SensorDataResponse{Status: status, StatusMessage: &message})
}
