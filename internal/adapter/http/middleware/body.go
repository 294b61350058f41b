package middleware

import (
	"mime"
	"net/http"

	"stream-ledger/pkg/apperror"
	"stream-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize limits the request body. Reads past the limit fail, and the
// handler's bind turns that into a validation error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequireJSON rejects requests that carry a body in anything but JSON.
// Bodiless POSTs (withdraw, pause, resume, stop) pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != gin.MIMEJSON {
			response.Error(c, apperror.Validation("Content-Type must be application/json"))
			c.Abort()
			return
		}
		c.Next()
	}
}
