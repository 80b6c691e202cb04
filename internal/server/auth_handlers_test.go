package server

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignup(t *testing.T) {
	s := newTestServer(t, nil)
	app := newTestApp(s)

	body := func(name, email, password string) *bytes.Reader {
		raw, _ := json.Marshal(map[string]string{
			"name":     name,
			"email":    email,
			"phone":    "+15550100200",
			"password": password,
		})
		return bytes.NewReader(raw)
	}

	t.Run("creates a customer account and returns a token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/signup", body("Jordan Reyes", "jordan@example.com", "Password123!"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		out := decodeBody(t, resp.Body)
		assert.NotEmpty(t, out["token"])
		user := out["user"].(map[string]any)
		assert.Equal(t, string(models.UserTypeCustomer), user["user_type"])

		// Token parses against the configured secret with the expected claims
		token, err := jwt.Parse(out["token"].(string), func(*jwt.Token) (any, error) {
			return []byte(s.config.JWTSecret), nil
		})
		require.NoError(t, err)
		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, tokenIssuer, claims["iss"])
		assert.Equal(t, tokenAudience, claims["aud"])
		assert.Equal(t, string(models.UserTypeCustomer), claims["typ"])
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/signup", body("Jordan Reyes", "jordan@example.com", "Password123!"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("rejects a weak password", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/signup", body("Sam Vale", "sam@example.com", "short"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		raw, _ := json.Marshal(map[string]string{"email": "nobody@example.com"})
		req := httptest.NewRequest("POST", "/api/auth/signup", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	app := newTestApp(s)

	hashed, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)
	active := &models.User{
		Name: "Jordan Reyes", Email: "jordan@example.com",
		Password: string(hashed), UserType: models.UserTypeCustomer, Active: true,
	}
	require.NoError(t, s.db.Create(active).Error)
	disabled := &models.User{
		Name: "Gone User", Email: "gone@example.com",
		Password: string(hashed), UserType: models.UserTypeCustomer, Active: false,
	}
	require.NoError(t, s.db.Create(disabled).Error)

	do := func(email, password string) int {
		raw, _ := json.Marshal(map[string]string{"email": email, "password": password})
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("jordan@example.com", "Password123!"))
	assert.Equal(t, fiber.StatusUnauthorized, do("jordan@example.com", "WrongPassword1!"))
	assert.Equal(t, fiber.StatusUnauthorized, do("unknown@example.com", "Password123!"))
	assert.Equal(t, fiber.StatusUnauthorized, do("gone@example.com", "Password123!"))
}
