// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"trinity/internal/auth"
	"trinity/internal/billing"
	"trinity/internal/funnel"
	"trinity/internal/onboarding"
	"trinity/internal/shared/config"
	"trinity/internal/shared/database"
	"trinity/internal/shared/kvstore"
	"trinity/internal/shared/middleware"
	"trinity/internal/stream"
	"trinity/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	publisher stream.Publisher

	// Shared services for cross-domain injection
	cacheService  cache.Service
	funnelService funnel.Service
	authRepo      auth.Repository
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, publisher stream.Publisher) *Router {
	return &Router{
		config:    cfg,
		db:        db,
		publisher: publisher,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	r.cacheService = cache.NewService(r.db.GetRedisClient())

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Funnel first: auth and billing feed events into it
		r.setupFunnelRoutes(api)

		// Auth before onboarding: onboarding template targeting reads users
		r.setupAuthRoutes(api)

		r.setupOnboardingRoutes(api)
		r.setupBillingRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "trinity-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "trinity-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// setupFunnelRoutes configures the funnel analytics routes
func (r *Router) setupFunnelRoutes(rg *gin.RouterGroup) {
	store := kvstore.NewStore(r.db.GetPostgreSQL())
	funnelRepo := funnel.NewRepository(r.db.GetPostgreSQL(), store)
	funnelService := funnel.NewService(funnelRepo, funnel.ServiceConfig{
		DemoBreakdown: r.config.Analytics.DemoBreakdown,
		ReportTTL:     r.config.Analytics.ReportTTL,
	})
	funnelService.SetCacheService(r.cacheService)
	funnelService.SetPublisher(r.publisher, r.config.Stream.FunnelTopic)

	// Keep the service for auth and billing injection
	r.funnelService = funnelService

	funnelController := funnel.NewController(funnelService)
	funnel.SetupFunnelRoutes(rg, funnelController, middleware.OptionalAuthWithConfig(r.config))
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL())
	authService := auth.NewService(authRepo, r.config)
	authService.SetFunnelIngester(r.funnelService)
	authService.SetPublisher(r.publisher, r.config.Stream.NotificationsTopic)

	// Keep the repository for onboarding targeting and billing account updates
	r.authRepo = authRepo

	authController := auth.NewController(authService)
	authRouter := auth.NewRouter(authController, r.config)
	authRouter.SetupRoutes(rg)
}

// setupOnboardingRoutes configures onboarding routes
func (r *Router) setupOnboardingRoutes(rg *gin.RouterGroup) {
	onboardingRepo := onboarding.NewRepository(r.db.GetPostgreSQL())
	onboardingService := onboarding.NewService(onboardingRepo)
	onboardingService.SetCacheService(r.cacheService)
	onboardingService.SetPublisher(r.publisher, r.config.Stream.OnboardingTopic)
	onboardingService.SetUserTargeting(auth.NewTargetingAdapter(r.authRepo))

	onboardingController := onboarding.NewController(onboardingService)
	onboarding.SetupOnboardingRoutes(rg, onboardingController,
		middleware.JWTAuthWithConfig(r.config),
		middleware.RequireAdmin(),
	)
}

// setupBillingRoutes configures billing routes
func (r *Router) setupBillingRoutes(rg *gin.RouterGroup) {
	billingRepo := billing.NewRepository(r.db.GetPostgreSQL())
	billingService := billing.NewService(billingRepo)
	billingService.SetFunnelIngester(r.funnelService)
	billingService.SetAccountUpdater(r.authRepo)

	billingController := billing.NewController(billingService)
	billing.SetupBillingRoutes(rg, billingController,
		middleware.JWTAuthWithConfig(r.config),
	)
}
