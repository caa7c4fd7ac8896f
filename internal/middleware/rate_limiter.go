package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimiter bounds how often a single client IP may hit a channel's upgrade
// endpoint. Reconnecting clients retry on a fixed interval, so a restart can
// produce a burst of upgrade requests from every client at once; anything
// above perSecond from one address is answered with 429 before the upgrade is
// attempted. The store is in-memory, suitable for a single relay instance.
func RateLimiter(perSecond float64) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.String(http.StatusTooManyRequests, "Connection rate exceeded. Retry later.")
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
