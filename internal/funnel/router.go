package funnel

import (
	"github.com/gin-gonic/gin"
)

// SetupFunnelRoutes registers the public funnel analytics endpoints.
// Ingestion stays unauthenticated: landing pages fire events before a
// visitor has an account. Auth middleware is optional so logged-in
// visitors still get their identity attached.
func SetupFunnelRoutes(router *gin.RouterGroup, controller Controller, optionalAuth ...gin.HandlerFunc) {
	analytics := router.Group("/analytics")
	analytics.Use(optionalAuth...)
	{
		analytics.POST("/funnel", controller.IngestEvent) // POST /api/v1/analytics/funnel
		analytics.GET("/funnel", controller.GetReport)    // GET  /api/v1/analytics/funnel
	}
}
