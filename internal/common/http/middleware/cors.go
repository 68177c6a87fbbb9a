package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", traceIDHeader, requestIDHeader}
	// Browsers hide response headers unless they are exposed.
	exposedCORSHeaders = traceIDHeader + "," + requestIDHeader
)

// CORSConfig lets a browser front end call the judge API.
type CORSConfig struct {
	Enabled bool `yaml:"enabled"`
	// AllowedOrigins are matched case-insensitively; "*" allows any origin.
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	AllowedMethods   []string      `yaml:"allowedMethods"`
	AllowedHeaders   []string      `yaml:"allowedHeaders"`
	AllowCredentials bool          `yaml:"allowCredentials"`
	MaxAge           time.Duration `yaml:"maxAge"`
}

// CORSMiddleware sets CORS headers for allowed origins and answers
// preflights. Preflights from other origins are rejected with 403; simple
// requests from them pass through without CORS headers.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	static := map[string]string{
		"Access-Control-Allow-Methods":  strings.Join(methods, ","),
		"Access-Control-Allow-Headers":  strings.Join(headers, ","),
		"Access-Control-Expose-Headers": exposedCORSHeaders,
	}
	if cfg.AllowCredentials {
		static["Access-Control-Allow-Credentials"] = "true"
	}
	if cfg.MaxAge > 0 {
		static["Access-Control-Max-Age"] = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	anyOrigin := !cfg.AllowCredentials && len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*"

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions
		switch {
		case origin == "":
			c.Next()
			return
		case !OriginAllowed(origin, cfg.AllowedOrigins):
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h := c.Writer.Header()
		if anyOrigin {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		for k, v := range static {
			h.Set(k, v)
		}
		if preflight {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// OriginAllowed reports whether origin matches an entry of allowed.
func OriginAllowed(origin string, allowed []string) bool {
	for _, item := range allowed {
		switch item = strings.TrimSpace(item); {
		case item == "*", item != "" && strings.EqualFold(item, origin):
			return true
		}
	}
	return false
}
