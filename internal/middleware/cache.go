package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	NoStore bool
	Vary    []string
}

// DefaultCacheConfig keeps tenant data out of shared and browser caches
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NoStore: true,
		Vary:    []string{"Authorization"},
	}
}

// Cache adds cache control headers to responses
func Cache(config CacheConfig) gin.HandlerFunc {
	vary := strings.Join(config.Vary, ", ")
	return func(c *gin.Context) {
		if config.NoStore || c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
		} else {
			c.Header("Cache-Control", "private, no-cache")
		}
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()
	}
}
