package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
	"github.com/unrolled/secure"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger    // request logging, skipped when nil
	Metrics  *metrics.Metrics // request counters, skipped when nil
	CORS     *CORSConfig
	Security *secure.Options // nil uses the secure package defaults
	Timeout  time.Duration

	EnableCORS     bool
	EnableSecurity bool
	EnableRealIP   bool
	EnableTimeout  bool
}

// DefaultConfig returns the middleware configuration used by the assistant API.
// Timeout must stay above the completion timeout so fallback replies can finish.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS: &corsConfig,
		Security: &secure.Options{
			ContentTypeNosniff: true,
			FrameDeny:          true,
			BrowserXssFilter:   true,
		},
		Timeout:        30 * time.Second,
		EnableCORS:     true,
		EnableSecurity: true,
		EnableRealIP:   true,
		EnableTimeout:  true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router.
// Middleware is applied in execution order (first applied = outermost layer).
//
// Execution order:
//  1. CorrelationID
//  2. Security headers
//  3. RealIP
//  4. Logging
//  5. Metrics
//  6. Recovery
//  7. CORS
//  8. Timeout
func ApplyToRouter(router chi.Router, config Config) {
	router.Use(CorrelationID())

	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.Logger != nil {
		router.Use(config.Logger.HTTPMiddleware)
	}
	if config.Metrics != nil {
		router.Use(config.Metrics.HTTPMiddleware())
	}

	router.Use(Recovery(config.Logger))

	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.EnableTimeout && config.Timeout > 0 {
		router.Use(middleware.Timeout(config.Timeout))
	}
}
