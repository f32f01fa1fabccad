// Package httpapi exposes the token and reading routes over HTTP. Every device route
// answers with a protobuf body whose embedded status equals the HTTP status.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenPath = "/token"

// NewRouter builds the gin engine with all routes and middleware
func NewRouter(h *Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestIDMiddleware(), accessLogMiddleware(logger), recoveryMiddleware(logger))

	router.GET("/health", h.health)
	router.POST(tokenPath, h.token)
	router.POST("/sensor-data", h.legacySensorData)
	router.POST("/v2/sensor-data", h.bearerSensorData)

	return router
}
