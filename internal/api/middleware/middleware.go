package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/security"
)

// Context keys set by this package
const (
	ctxRequestID    = "request_id"
	ctxLogger       = "logger"
	ctxUserID       = "user_id"
	ctxUserIDString = "user_id_str"
	ctxUserEmail    = "user_email"
	ctxUserRole     = "user_role"
	ctxAccessToken  = "access_token"
)

const (
	MaxRequestSize = 1 << 20 // 1MB
)

// SessionValidator resolves a bearer token to a live session
type SessionValidator interface {
	GetSession(ctx context.Context, accessToken string) (*entities.Session, error)
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		c.Set(ctxRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestSizeLimit limits the size of incoming requests
func RequestSizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestSize)
		c.Next()
	}
}

// RequireJSON rejects bodies that are not JSON on write methods
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength != 0 && contentType != "" && !strings.Contains(contentType, "application/json") {
				abortWith(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type")
				return
			}
		}
		c.Next()
	}
}

// Logger logs HTTP requests with structured logging
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + security.MaskQuery(raw)
		}

		requestLogger := log.ForRequest(c.GetString(ctxRequestID), c.Request.Method, path)
		c.Set(ctxLogger, requestLogger)

		c.Next()

		fields := []interface{}{
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"response_size", c.Writer.Size(),
		}
		if id := c.GetString(ctxUserIDString); id != "" {
			fields = append(fields, "user_id", id)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			requestLogger.Errorw("HTTP Request", fields...)
			return
		}
		requestLogger.Infow("HTTP Request", fields...)
	}
}

// Recovery handles panics and returns 500 errors
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				fallback := log.ForRequest(c.GetString(ctxRequestID), c.Request.Method, c.Request.URL.Path)
				RequestLogger(c, fallback).Errorw("Panic recovered", "error", err, "stack", string(debug.Stack()))
				abortWith(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}
		}()
		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				break
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID, Idempotency-Key")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, Idempotency-Replayed")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// Authentication validates the bearer token through sessions and stores the
// caller on the context
func Authentication(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), token)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session invalid or expired")
			return
		}

		c.Set(ctxUserID, session.UserID)
		c.Set(ctxUserIDString, session.UserID.String())
		c.Set(ctxUserEmail, session.Email)
		c.Set(ctxUserRole, session.Role)
		c.Set(ctxAccessToken, token)
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header. Browsers cannot
// set headers on websocket upgrades, so GET requests may pass access_token
// as a query parameter instead.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if c.Request.Method == http.MethodGet {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// UserID returns the authenticated user's id
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// AccessToken returns the bearer token of the authenticated request
func AccessToken(c *gin.Context) string {
	return c.GetString(ctxAccessToken)
}

// RequireRole rejects authenticated callers whose role is not in roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxUserRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		abortWith(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
	}
}

// RequestLogger returns the request-scoped logger, or fallback when none was set
func RequestLogger(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if v, ok := c.Get(ctxLogger); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return fallback
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: map[string]interface{}{"request_id": c.GetString(ctxRequestID)},
	})
}
