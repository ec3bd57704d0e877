package middleware

import (
	"net/http"
	"time"

	"droneaid/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const RequestIDHeader = "X-Request-ID"

// CORS allows every origin, method and header.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Expose-Headers", "X-Detection-Count, X-Processing-Time-Ms, "+RequestIDHeader)
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID tags each request with an X-Request-ID, reusing the caller's.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			if generated, err := uuid.NewV4(); err == nil {
				id = generated.String()
			}
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// MaxBodySize rejects request bodies larger than limit bytes.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithField("request_id", c.GetString("request_id"))
		status := c.Writer.Status()
		msg := "%s %s -> %d (%s)"
		switch {
		case status >= 500:
			entry.Error(msg, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		case status >= 400:
			entry.Warning(msg, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		default:
			entry.Info(msg, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		}
	}
}
