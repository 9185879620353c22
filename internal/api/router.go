package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"presence-backend/config"
	"presence-backend/internal/mw"
	"presence-backend/internal/notify"
	"presence-backend/internal/store"
	"presence-backend/internal/validate"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, v *validate.Validator, alerts *notify.WorkerPool, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, v, alerts, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// The read model is cached briefly; dashboards poll it, and a slot's
	// worth of staleness is acceptable there. The ingest path is never
	// cached.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v2")
	api.Use(rateLimiter)
	{
		// POST /api/v2/presence — receiver report ingest
		api.POST("/presence", handler.PostPresence)

		// Dashboard read model
		api.GET("/events", caching, handler.GetEvents)
		api.GET("/events/:id", handler.GetEvent)

		// Operator alert subscriptions
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
