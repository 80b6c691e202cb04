package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Env:              "development",
		Port:             "8480",
		JWTSecret:        "secure-secret-at-least-32-chars-long",
		DBPassword:       "secure-password",
		DBSSLMode:        "disable",
		RedisURL:         "redis://localhost:6379",
		SLASweepInterval: time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid development config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing port", func(t *testing.T) {
		c := validConfig()
		c.Port = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		c := validConfig()
		c.JWTSecret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("negative sweep interval", func(t *testing.T) {
		c := validConfig()
		c.SLASweepInterval = -time.Second
		assert.Error(t, c.Validate())
	})
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"strong settings pass", func(c *Config) {}, false},
		{"default jwt secret rejected", func(c *Config) {
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"short jwt secret rejected", func(c *Config) {
			c.JWTSecret = "short"
		}, true},
		{"default db password rejected", func(c *Config) {
			c.DBPassword = "password"
		}, true},
		{"empty db password rejected", func(c *Config) {
			c.DBPassword = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = "production"
			c.DBSSLMode = "require"
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
