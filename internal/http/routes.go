package http

import (
	"time"

	"mines_client/internal/http/handlers"
	"mines_client/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig carries what the control surface needs besides handlers.
type RouteConfig struct {
	UserID     int64
	Limiter    middleware.Limiter
	RateLimit  int
	RateWindow time.Duration
}

// RegisterRoutes wires the local control surface.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg RouteConfig) {
	if cfg.Limiter == nil {
		cfg.Limiter = middleware.NewMemoryLimiter()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	api.Use(middleware.WithUser(cfg.UserID))

	// Intents are throttled per user
	intentRL := middleware.IntentRateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)
	session := api.Group("/session")
	{
		session.GET("", h.State)
		session.GET("/verify", h.Verify)
		session.GET("/presets", h.PresetList)
		session.POST("/start", intentRL, h.Start)
		session.POST("/reveal", intentRL, h.Reveal)
		session.POST("/cashout", intentRL, h.CashOut)
		session.POST("/ack", h.Acknowledge)
	}

	api.GET("/balance", h.Balance)
	api.GET("/notices", h.Notices)
	api.DELETE("/notices/:id", h.DismissNotice)
	api.GET("/rounds", h.RoundHistory)
}
