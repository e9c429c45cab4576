package handlers

import (
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
	"github.com/SscSPs/brokerage_sync_app/internal/middleware"
	"github.com/SscSPs/brokerage_sync_app/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	// Add health check route
	r.GET("/healthz", func(c *gin.Context) {
		c.String(200, "OK")
	})

	syncHandler := NewSyncHandler(services.Orchestrator)

	// The trigger endpoint consumes a single-use credential per run, so it
	// carries its own rate limit regardless of any upstream scheduler's behaviour.
	rate, err := limiter.NewRateFromFormatted(cfg.SyncRate)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted("5-M")
	}
	store := memory.NewStore()
	ipLimiter := limiter.New(store, rate)

	r.POST("/sync", middleware.RateLimit(ipLimiter), syncHandler.TriggerSync)
}
