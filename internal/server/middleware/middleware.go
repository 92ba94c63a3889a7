package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"ar-io-observer/logging"
)

// LoggingMiddleware logs each observer API call after it is served, with the
// matched route so report lookups group by endpoint rather than raw path.
func LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		}
		req := c.Request()
		logging.Info("Observer API request", logging.Server,
			"method", req.Method,
			"route", c.Path(),
			"path", req.URL.Path,
			"status", status,
			"remote", c.RealIP(),
			"duration", time.Since(start).String(),
		)
		return err
	}
}
