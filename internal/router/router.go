// Package router assembles the HTTP surface: middleware, the versioned API,
// the health probe, and the Prometheus scrape endpoint.
package router

import (
	"github.com/gin-gonic/gin"

	"dev.frostline.agent/internal/handlers"
	"dev.frostline.agent/internal/metrics"
	"dev.frostline.agent/internal/services"
)

// SetupRouter creates and configures the main HTTP router.
func SetupRouter(svc *services.PredictionService, version string) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// Operational endpoints
	r.GET("/health", handlers.NewHealthHandler(svc, version).Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Versioned API
	api := r.Group("/api/v1")
	handlers.RegisterPredictionRoutes(api, handlers.NewPredictionHandler(svc))
	handlers.RegisterLedgerRoutes(api, handlers.NewLedgerHandler(svc.Store()))

	return r
}

// corsMiddleware lets browser dashboards on other origins call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
