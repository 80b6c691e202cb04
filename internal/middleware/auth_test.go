package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestAuthRequired(t *testing.T) {
	// Setup app and config
	app := fiber.New()
	secret := "test-secret-key-12345678901234567890123456789012"
	InitMiddleware(&config.Config{JWTSecret: secret})

	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID":    c.Locals("userID"),
			"userType":  c.Locals("userType"),
			"partnerID": c.Locals("partnerID"),
		})
	})

	generateToken := func(userID uint, userType string, partnerID string, exp time.Duration) string {
		claims := jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(userID), 10),
			"typ": userType,
			"exp": time.Now().Add(exp).Unix(),
		}
		if partnerID != "" {
			claims["pid"] = partnerID
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, _ := token.SignedString([]byte(secret))
		return s
	}

	tests := []struct {
		name            string
		authHeader      string
		expectedStatus  int
		expectedUserID  uint
		expectedType    string
		expectedPartner float64
	}{
		{
			name:           "Happy Path Customer",
			authHeader:     "Bearer " + generateToken(123, "customer", "", time.Hour),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
			expectedType:   "customer",
		},
		{
			name:            "Partner User Carries Partner ID",
			authHeader:      "Bearer " + generateToken(7, "partner", "42", time.Hour),
			expectedStatus:  http.StatusOK,
			expectedUserID:  7,
			expectedType:    "partner",
			expectedPartner: 42,
		},
		{
			name:           "Missing Header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + generateToken(123, "customer", "", -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]interface{}
				if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
					assert.Equal(t, float64(tt.expectedUserID), body["userID"])
					assert.Equal(t, tt.expectedType, body["userType"])
					if tt.expectedPartner != 0 {
						assert.Equal(t, tt.expectedPartner, body["partnerID"])
					}
				}
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	app := fiber.New()

	withType := func(userType string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("userType", userType)
			return c.Next()
		}
	}

	app.Get("/admin", withType(string(models.UserTypeAdmin)), AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/customer", withType(string(models.UserTypeCustomer)), AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/anonymous", AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/admin", http.StatusOK},
		{"/customer", http.StatusForbidden},
		{"/anonymous", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			resp, err := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
