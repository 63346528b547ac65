package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids any intermediary or client caching. Applied to the
// whole API surface; responses carry clinical data.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
