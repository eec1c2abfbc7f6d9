package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig returns timeout middleware configuration
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: timeout,
	})
}

// SelectiveTimeoutConfig applies a longer timeout to AI-bound endpoints
// (search goes through query expansion, the sweep trigger may expand many
// preferences) and the standard timeout everywhere else.
func SelectiveTimeoutConfig(standard, extended time.Duration) echo.MiddlewareFunc {
	extendedPaths := []string{
		"/api/v1/search",
		"/api/v1/scheduler/run",
		"/api/v1/digest/flush",
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			timeout := standard
			path := c.Request().URL.Path
			for _, p := range extendedPaths {
				if strings.HasPrefix(path, p) {
					timeout = extended
					break
				}
			}

			handler := middleware.TimeoutWithConfig(middleware.TimeoutConfig{
				Timeout: timeout,
			})(next)
			return handler(c)
		}
	}
}
