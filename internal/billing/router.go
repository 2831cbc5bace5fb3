package billing

import (
	"github.com/gin-gonic/gin"
)

// SetupBillingRoutes registers the billing endpoints. Plan listing and the
// upgrade-click tracker serve the public pricing page; subscription reads and
// checkout require a session.
func SetupBillingRoutes(router *gin.RouterGroup, controller Controller, authMiddleware ...gin.HandlerFunc) {
	billing := router.Group("/billing")
	{
		billing.GET("/plans", controller.ListPlans)                  // GET  /api/v1/billing/plans
		billing.POST("/upgrade-click", controller.TrackUpgradeClick) // POST /api/v1/billing/upgrade-click

		protected := billing.Group("")
		protected.Use(authMiddleware...)
		{
			protected.POST("/subscriptions", controller.Subscribe)
			protected.GET("/subscriptions/:userId", controller.GetSubscription)
			protected.DELETE("/subscriptions/:userId", controller.CancelSubscription)
		}
	}
}
