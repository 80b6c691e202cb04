package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareApp(t *testing.T, allowedOrigins string) *fiber.App {
	t.Helper()
	s := newTestServer(t, nil)
	s.config.AllowedOrigins = allowedOrigins

	app := fiber.New()
	s.SetupMiddleware(app)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestSetupMiddleware_SecurityHeaders(t *testing.T) {
	app := newMiddlewareApp(t, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestSetupMiddleware_CORS(t *testing.T) {
	app := newMiddlewareApp(t, "https://app.example.com")

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered without hitting the limiter", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/ping", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "GET")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no CORS grant", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	app := newTestApp(s)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/live", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp.Body)
	checks := out["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	// Redis is optional and absent in tests
	assert.Equal(t, "unavailable", checks["redis"])
}
