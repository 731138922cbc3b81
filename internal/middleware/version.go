package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
)

const (
	HeaderAPIVersion = "X-API-Version"
	ContextVersion   = "api_version"
)

// VersionConfig represents version middleware configuration
type VersionConfig struct {
	HeaderName     string
	DefaultVersion string
	Supported      []string
}

func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		HeaderName:     "Accept-Version",
		DefaultVersion: "1.0",
		Supported:      []string{"1.0"},
	}
}

var versionRegex = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Version negotiates the API version from the request header and echoes the
// served version back in X-API-Version.
func Version(config VersionConfig) gin.HandlerFunc {
	supported := make(map[string]struct{}, len(config.Supported))
	for _, v := range config.Supported {
		supported[v] = struct{}{}
	}

	return func(c *gin.Context) {
		requested := c.GetHeader(config.HeaderName)
		if requested == "" {
			requested = config.DefaultVersion
		}

		if !versionRegex.MatchString(requested) {
			resp := handler.NewErrorResponse("invalid version format, use major.minor")
			resp.Code = "invalid_input"
			c.AbortWithStatusJSON(http.StatusBadRequest, resp)
			return
		}
		if _, ok := supported[requested]; !ok {
			resp := handler.NewErrorResponse(fmt.Sprintf("API version %s not supported", requested))
			resp.Code = "invalid_input"
			c.AbortWithStatusJSON(http.StatusNotAcceptable, resp)
			return
		}

		c.Set(ContextVersion, requested)
		c.Header(HeaderAPIVersion, requested)
		c.Next()
	}
}
