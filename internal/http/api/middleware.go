package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/http/api/handlers"
	"github.com/bicrea/gateway/internal/models"
	"github.com/bicrea/gateway/internal/ratelimit"
	"github.com/bicrea/gateway/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// rateLimitMiddleware enforces the per-IP request ceiling. It runs
// before every other check so abusive traffic is cut off at minimal
// cost, and it fails closed: a limiter backend error denies the request.
func rateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.KeyForIP(c.ClientIP())
		result, errAllow := limiter.Allow(c.Request.Context(), key)
		if errAllow != nil {
			log.WithError(errAllow).Error("rate limit backend unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// originMiddleware rejects requests from unlisted origins and attaches
// the security response headers to everything that passes, error
// responses from later stages included. The local development origin
// gets the same allow decision but a narrower header set: HSTS and CSP
// are omitted so localhost tooling is not pinned to HTTPS.
func originMiddleware(origins config.OriginsConfig) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins.Allowed))
	for _, origin := range origins.Allowed {
		allowed[origin] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := strings.TrimRight(strings.TrimSpace(c.GetHeader("Origin")), "/")
		_, isProd := allowed[origin]
		isDev := origins.Dev != "" && origin == origins.Dev
		if !isProd && !isDev {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}

		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", origin)
		header.Add("Vary", "Origin")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		if !isDev {
			header.Set("Content-Security-Policy", "default-src 'none'")
			header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bearerAuthMiddleware validates access tokens and loads the caller.
func bearerAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAccessToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			log.WithError(errFind).Error("auth middleware: load user failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set(handlers.IdentityKey, user.ID)
		c.Next()
	}
}
