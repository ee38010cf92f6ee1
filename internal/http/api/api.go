// Package api registers the gateway HTTP surface on a gin engine.
package api

import (
	"net/http"

	"github.com/bicrea/gateway/internal/auth"
	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/documents"
	"github.com/bicrea/gateway/internal/http/api/handlers"
	"github.com/bicrea/gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the route tree needs.
type Deps struct {
	DB        *gorm.DB
	JWT       config.JWTConfig
	Gateway   config.GatewayConfig
	Limiter   *ratelimit.Manager
	Auth      *auth.Service
	Documents *documents.Service
}

// Register wires middleware and routes onto the engine.
//
// Middleware ordering on /api is deliberate: the rate limiter runs
// first so throttling is decided before any origin or token work, the
// origin policy runs second, and token verification only happens for
// requests that survived both.
func Register(r *gin.Engine, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth)
	docHandler := handlers.NewDocumentHandler(deps.Documents)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.GET("/healthz", healthHandler.Check)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	apiGroup := r.Group("/api",
		rateLimitMiddleware(deps.Limiter),
		originMiddleware(deps.Gateway.Origins),
	)
	apiGroup.POST("/auth/login", authHandler.Login)
	// CORS preflight; originMiddleware answers with 204 before this
	// handler runs.
	apiGroup.OPTIONS("/*path", func(c *gin.Context) {})

	protected := apiGroup.Group("", bearerAuthMiddleware(deps.DB, deps.JWT))
	protected.POST("/documents", docHandler.Upload)
	protected.GET("/documents", docHandler.List)
	protected.GET("/documents/:id", docHandler.Get)
}
