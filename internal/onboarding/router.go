package onboarding

import (
	"github.com/gin-gonic/gin"
)

// SetupOnboardingRoutes registers the onboarding endpoints. Catalog writes are
// admin-only; everything else is reachable during the signup flow before a
// session exists.
func SetupOnboardingRoutes(router *gin.RouterGroup, controller Controller, adminMiddleware ...gin.HandlerFunc) {
	onboarding := router.Group("/onboarding")
	{
		onboarding.GET("/steps", controller.ListSteps)        // GET  /api/v1/onboarding/steps
		onboarding.GET("/checklist", controller.GetChecklist) // GET  /api/v1/onboarding/checklist
		onboarding.POST("/checklist", controller.ChecklistAction)
		onboarding.GET("/progress", controller.GetProgress)
		onboarding.POST("/progress", controller.ProgressAction)
		onboarding.GET("/analytics", controller.QueryEvents)
		onboarding.POST("/analytics", controller.TrackEvent)

		admin := onboarding.Group("")
		admin.Use(adminMiddleware...)
		{
			admin.POST("/steps", controller.CreateStep)    // POST /api/v1/onboarding/steps
			admin.PUT("/steps/:id", controller.UpdateStep) // PUT  /api/v1/onboarding/steps/:id
		}
	}
}
