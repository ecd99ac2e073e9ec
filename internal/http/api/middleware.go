package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/http/api/handlers"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/igifu/campus-meals/internal/ratelimit"
	"github.com/igifu/campus-meals/internal/security"
	log "github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags each request with an id, reusing a sane inbound one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogMiddleware writes one structured line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"request_id": c.GetString("requestID"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if userID, ok := c.Get(handlers.ContextUserID); ok {
			entry = entry.WithField("user_id", userID)
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

// authMiddleware validates bearer JWTs and loads the calling account.
func authMiddleware(store *accounts.Store, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, errFind := store.GetUser(c.Request.Context(), claims.UserID)
		if errFind != nil {
			if errors.Is(errFind, accounts.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			log.WithError(errFind).Error("auth: load user failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set(handlers.ContextUserID, user.ID)
		c.Set(handlers.ContextUserRole, user.Role)
		c.Next()
	}
}

// requireRole rejects callers whose role is not listed.
func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Get(handlers.ContextUserRole)
		role, _ := raw.(models.Role)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// cardUnlockedMiddleware blocks money and plate movements while the card is locked.
func cardUnlockedMiddleware(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Get(handlers.ContextUserID)
		userID, _ := raw.(uint64)
		profile, errProfile := store.GetProfile(c.Request.Context(), userID)
		if errProfile != nil {
			if errors.Is(errProfile, accounts.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "student profile not found"})
				return
			}
			log.WithError(errProfile).Error("card lock: load profile failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load profile failed"})
			return
		}
		if profile.CardLocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "card is locked"})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware applies the per-user fixed window to a route group.
// Limiter failures are logged and the request is let through.
func rateLimitMiddleware(limiter *ratelimit.Manager, route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		rawID, _ := c.Get(handlers.ContextUserID)
		userID, _ := rawID.(uint64)
		rawRole, _ := c.Get(handlers.ContextUserRole)
		role, _ := rawRole.(models.Role)

		decision := ratelimit.Resolve(role, route, limiter.Settings())
		key := ratelimit.KeyForDecision(userID, decision)
		if key == "" {
			c.Next()
			return
		}
		result, errAllow := limiter.Allow(c.Request.Context(), key, decision.Limit)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit: check failed")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			resetSeconds := int(math.Ceil(time.Until(result.Reset).Seconds()))
			if resetSeconds < 0 {
				resetSeconds = 0
			}
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
