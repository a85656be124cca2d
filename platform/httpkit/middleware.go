// Package httpkit holds the gin plumbing shared by every module: auth,
// caller identity, rate limiting, request logging and error responses.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"time"

	"github.com/gin-gonic/gin"

	"solar_portal_backend/platform/logger"
)

// RequestLogger logs every request once it completes, plus any errors the
// handler attached with c.Error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		ip := c.ClientIP()
		for _, ginErr := range c.Errors {
			log.HTTPError(c.Request.Method, path, status, ginErr.Err, ip)
		}
		log.HTTPRequest(c.Request.Method, path, status, float64(time.Since(start).Microseconds())/1000, ip)
	}
}

// SecurityHeaders sets the response headers every API reply carries.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		c.Next()
	}
}
