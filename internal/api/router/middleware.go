package router

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/handler"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderAPIKey         = "X-API-Key"
	HeaderInternalSecret = "X-Internal-Secret"

	requestIDKey = "request_id"
)

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)

		attrs := []any{
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", attrs...)
		default:
			logger.Info("HTTP Request", attrs...)
		}

		for _, e := range c.Errors {
			logger.Error("Request error",
				slog.String("request_id", c.GetString(requestIDKey)),
				slog.String("error", e.Error()),
			)
		}
	}
}

// CORSMiddleware allows the configured origins, or any origin when none
// are configured.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{
		"Origin", "Content-Length", "Content-Type", "Authorization",
		HeaderRequestID, HeaderAPIKey, HeaderInternalSecret,
	}
	cfg.ExposeHeaders = []string{HeaderRequestID, "Content-Disposition"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message})
}

// authenticate verifies the bearer token and stores the caller.
func authenticate(c *gin.Context, verifier *auth.Verifier, logger *slog.Logger) bool {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		abort(c, http.StatusUnauthorized, "Authentication required")
		return false
	}

	principal, err := verifier.Verify(token)
	if err != nil {
		logger.Debug("Bearer token rejected",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("error", err.Error()),
		)
		abort(c, http.StatusUnauthorized, "Invalid or expired token")
		return false
	}

	handler.SetPrincipal(c, principal)
	return true
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(verifier *auth.Verifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, verifier, logger) {
			return
		}
		c.Next()
	}
}

// APIKeyMiddleware requires X-API-Key to equal key.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !secretMatches(c.GetHeader(HeaderAPIKey), key) {
			abort(c, http.StatusUnauthorized, "Invalid API key")
			return
		}
		c.Next()
	}
}

// UserOrInternalMiddleware accepts a matching X-Internal-Secret or, failing
// that, a valid bearer token.
func UserOrInternalMiddleware(verifier *auth.Verifier, secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if provided := c.GetHeader(HeaderInternalSecret); provided != "" {
			if !secretMatches(provided, secret) {
				abort(c, http.StatusUnauthorized, "Invalid internal secret")
				return
			}
			handler.SetInternalCaller(c)
			c.Next()
			return
		}

		if !authenticate(c, verifier, logger) {
			return
		}
		c.Next()
	}
}

// secretMatches compares in constant time; an unset expected value never
// matches.
func secretMatches(provided, expected string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
