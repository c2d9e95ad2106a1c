package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpot/internal/api/middleware"
	"stockpot/internal/metrics"
)

// NewRouter builds the gin engine with the shared middleware chain, the health
// check and the Prometheus endpoint.
func NewRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	return router
}
