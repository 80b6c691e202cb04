package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"dispatch/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, mutate func(jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "7",
		"typ": string(models.UserTypeCustomer),
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": "test-jti",
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"userID":    c.Locals("userID"),
			"userType":  c.Locals("userType"),
			"partnerID": c.Locals("partnerID"),
		})
	})

	t.Run("valid token populates identity", func(t *testing.T) {
		token := signToken(t, s.config.JWTSecret, func(claims jwt.MapClaims) {
			claims["typ"] = string(models.UserTypePartner)
			claims["pid"] = "42"
		})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		out := decodeBody(t, resp.Body)
		assert.Equal(t, float64(7), out["userID"])
		assert.Equal(t, string(models.UserTypePartner), out["userType"])
		assert.Equal(t, float64(42), out["partnerID"])
	})

	t.Run("missing header", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Basic abc123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "some-other-secret", nil)
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, s.config.JWTSecret, func(claims jwt.MapClaims) {
			claims["iss"] = "someone-else"
		})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := signToken(t, s.config.JWTSecret, func(claims jwt.MapClaims) {
			claims["aud"] = "other-client"
		})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, s.config.JWTSecret, func(claims jwt.MapClaims) {
			claims["exp"] = time.Now().Add(-time.Hour).Unix()
		})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthRequired_RevokedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := newTestServer(t, rdb)
	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token := signToken(t, s.config.JWTSecret, func(claims jwt.MapClaims) {
		claims["jti"] = "revoked-jti"
	})
	require.NoError(t, rdb.Set(context.Background(), "blacklist:revoked-jti", "1", time.Hour).Err())

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRequired(t *testing.T) {
	s := newTestServer(t, nil)

	app := fiber.New()
	withType := func(userType string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if userType != "" {
				c.Locals("userType", userType)
			}
			return c.Next()
		}
	}
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/admin", withType(string(models.UserTypeAdmin)), s.AdminRequired(), ok)
	app.Get("/customer", withType(string(models.UserTypeCustomer)), s.AdminRequired(), ok)
	app.Get("/anonymous", withType(""), s.AdminRequired(), ok)

	tests := []struct {
		url            string
		expectedStatus int
	}{
		{"/admin", fiber.StatusOK},
		{"/customer", fiber.StatusForbidden},
		{"/anonymous", fiber.StatusForbidden},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.url, nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.expectedStatus, resp.StatusCode, tt.url)
	}
}
