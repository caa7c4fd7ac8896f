package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/config"
)

func TestRateLimiter(t *testing.T) {
	cfg := &config.Config{UpgradeRate: 3}

	e := echo.New()
	// Stand-in for a channel's upgrade handler; the limiter runs before it.
	e.GET("/game", func(c echo.Context) error {
		return c.String(http.StatusOK, "upgraded")
	}, RateLimiter(cfg.UpgradeRate))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/game", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("clients within the configured rate connect", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, hit("192.0.2.1:1234"))
	})

	t.Run("a reconnect storm from one address is throttled", func(t *testing.T) {
		clientIP := "192.0.2.2:1234"
		for i := 0; i < int(cfg.UpgradeRate); i++ {
			require.Equal(t, http.StatusOK, hit(clientIP), "upgrade %d should be allowed", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/game", nil)
		req.RemoteAddr = clientIP
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "Connection rate exceeded")
	})

	t.Run("throttling one address leaves others untouched", func(t *testing.T) {
		stormIP := "192.0.2.3:1234"
		for hit(stormIP) == http.StatusOK {
		}

		assert.Equal(t, http.StatusOK, hit("192.0.2.4:1234"))
	})
}
