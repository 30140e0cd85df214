package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/smokecheck/api/handler"
	"github.com/use-agent/smokecheck/api/middleware"
	"github.com/use-agent/smokecheck/cache"
	"github.com/use-agent/smokecheck/checker"
	"github.com/use-agent/smokecheck/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(runner handler.Runner, cfg *config.Config, cc *cache.Cache, slots *handler.Slots, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(slots, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/check", handler.Check(runner, checker.TargetFromConfig(cfg.Check), cc, slots))

	return r
}
