package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin access for browser clients.
type CORSConfig struct {
	Enabled          bool          `yaml:"enabled"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	AllowedMethods   []string      `yaml:"allowedMethods"`
	AllowedHeaders   []string      `yaml:"allowedHeaders"`
	ExposedHeaders   []string      `yaml:"exposedHeaders"`
	AllowCredentials bool          `yaml:"allowCredentials"`
	MaxAge           time.Duration `yaml:"maxAge"`
}

// CORSMiddleware applies CORS headers. Disabled configs pass through.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	if !cfg.Enabled || len(cfg.AllowedOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	conf := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		conf.AllowMethods = cfg.AllowedMethods
	}
	conf.AddAllowHeaders(traceIDHeader, requestIDHeader)
	conf.AddAllowHeaders(cfg.AllowedHeaders...)
	conf.AddExposeHeaders(traceIDHeader, requestIDHeader)
	conf.AddExposeHeaders(cfg.ExposedHeaders...)
	conf.AllowCredentials = cfg.AllowCredentials && !conf.AllowAllOrigins
	if cfg.MaxAge > 0 {
		conf.MaxAge = cfg.MaxAge
	}
	conf.OptionsResponseStatusCode = http.StatusNoContent
	return cors.New(conf)
}
