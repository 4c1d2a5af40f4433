package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/arkind/identity-api/internal/api/metrics"
	"github.com/arkind/identity-api/internal/infrastructure/rate"
)

// Throttle applies the limiter keyed by client IP. A limiter outage fails
// open: the request proceeds and the outage is logged.
func Throttle(limiter rate.Limiter, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), c.RealIP(), time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(c.Path()).Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

// retrySeconds rounds up to whole seconds, never below one.
func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
