package idempotency

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marks a response served from the idempotency store
	HeaderReplayed = "Idempotent-Replayed"

	// MaxBodySize is the maximum request body size for idempotency (1MB)
	MaxBodySize = 1 << 20
)

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Middleware replays the stored response for a repeated Idempotency-Key and
// rejects concurrent use of a key that is still being processed. Keys are
// scoped per authenticated user. Requests without the header pass through.
func Middleware(store Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(HeaderIdempotencyKey)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		if err := ValidateKey(idempotencyKey); err != nil {
			abort(c, http.StatusBadRequest, "Invalid idempotency key", err.Error())
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			abort(c, http.StatusBadRequest, "Failed to read request body", err.Error())
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		scopedKey := scope(c, idempotencyKey)
		requestHash := HashRequest(c.Request.Method, c.Request.URL.Path, bodyBytes)

		existing, reserved, err := store.Reserve(c.Request.Context(), scopedKey, requestHash)
		if err != nil {
			logger.Error("Failed to check idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
			// fail open
			c.Next()
			return
		}

		if !reserved {
			switch {
			case existing.RequestHash != requestHash:
				logger.Warn("Idempotency key reused with different payload",
					zap.String("idempotency_key", idempotencyKey))
				abort(c, http.StatusUnprocessableEntity, "Idempotency key conflict",
					"key was already used with a different request")
			case existing.InFlight:
				abort(c, http.StatusConflict, "Request in progress",
					"a request with this idempotency key is still being processed")
			default:
				logger.Info("Returning cached response",
					zap.String("idempotency_key", idempotencyKey),
					zap.Int("status", existing.ResponseStatus))
				c.Header(HeaderReplayed, "true")
				c.Data(existing.ResponseStatus, "application/json; charset=utf-8", existing.ResponseBody)
				c.Abort()
			}
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		// store writes must survive a client that hung up mid-request
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()

		if writer.status >= http.StatusInternalServerError {
			if err := store.Release(ctx, scopedKey); err != nil {
				logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
			}
			return
		}

		record := &Record{
			RequestHash:    requestHash,
			ResponseStatus: writer.status,
			ResponseBody:   writer.body.Bytes(),
		}
		if err := store.Complete(ctx, scopedKey, record); err != nil {
			logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		}
	}
}

func scope(c *gin.Context, key string) string {
	if v, ok := c.Get("user_id"); ok {
		if uid, ok := v.(uuid.UUID); ok {
			return uid.String() + ":" + key
		}
	}
	return "anon:" + key
}

func abort(c *gin.Context, status int, title, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      title,
		"message":    message,
		"request_id": c.GetString("request_id"),
	})
}
