package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"docutext-backend/internal/analytics"
	"docutext-backend/internal/extractions"
	"docutext-backend/internal/shared/config"
	"docutext-backend/internal/shared/metrics"
	"docutext-backend/internal/shared/server/middleware"
	"docutext-backend/internal/shared/server/respond"
)

const extractGroup = "EXTRACT"

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config             config.Config
	ExtractionsHandler *extractions.Handler
	AnalyticsHandler   *analytics.Handler
	// Healthy reports dependency status for the health endpoint.
	Healthy func() map[string]bool
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		cors.New(corsConfig(deps.Config)),
		middleware.Auth(deps.Config.Env),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		payload := map[string]bool{"ok": true}
		if deps.Healthy != nil {
			payload = deps.Healthy()
		}
		respond.JSON(c, http.StatusOK, payload)
	})
	registerMeRoutes(api)
	api.GET("/metrics", metrics.Handler())

	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			// Uploads fan out to the OCR engine or a paid API; keep them
			// to a gentle sustained rate per user.
			extractGroup: {Rate: 0.5, Burst: 5},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/extractions" {
				return extractGroup
			}
			return ""
		},
	}))

	deps.ExtractionsHandler.RegisterRoutes(api)
	deps.AnalyticsHandler.RegisterRoutes(api)

	return r
}

func corsConfig(cfg config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowOrigins = cfg.CORSAllowOrigin
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Content-Type", "Authorization", "X-Guest-Id", "X-Request-Id"}
	c.ExposeHeaders = []string{"X-Request-Id"}
	c.AllowCredentials = true
	for _, origin := range cfg.CORSAllowOrigin {
		// A wildcard origin cannot be combined with credentials.
		if origin == "*" {
			c.AllowOrigins = nil
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			break
		}
	}
	return c
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
