package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_RADIUS_KM", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	assert.Equal(t, "8099", cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Location.DefaultRadiusKm)
	assert.Equal(t, 0.1, cfg.Location.DispatchBoxDegrees)
	assert.Equal(t, "https://dev.khalti.com/api/v2", cfg.Khalti.BaseURL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "emergency_topic", cfg.RabbitMQ.Exchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_RADIUS_KM", "25.5")
	t.Setenv("DISPATCH_BOX_DEGREES", "0.2")
	t.Setenv("JWT_ACCESS_EXPIRY", "90m")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 25.5, cfg.Location.DefaultRadiusKm)
	assert.Equal(t, 0.2, cfg.Location.DispatchBoxDegrees)
	assert.Equal(t, 90*time.Minute, cfg.JWT.AccessExpiry)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("DEFAULT_RADIUS_KM", "far")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 10.0, cfg.Location.DefaultRadiusKm)
	assert.Equal(t, 100, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}
