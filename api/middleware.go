package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Authenticate requires a valid bearer token and stores the identity on the
// request context.
func Authenticate(tokens *auth.TokenService, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := tokens.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			logger.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}).Debug("authentication failed")
			writeError(c, logger, err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.FromContext(c.Request.Context())
		if !ok || !identity.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "admin role required", Code: "PermissionDenied"})
			return
		}
		c.Next()
	}
}

// Timeout puts a deadline on the request context. Zero disables it.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if identity, ok := auth.FromContext(c.Request.Context()); ok {
			fields["user_id"] = identity.UserID
		}
		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

func identityFrom(c *gin.Context) auth.Identity {
	identity, _ := auth.FromContext(c.Request.Context())
	return identity
}
