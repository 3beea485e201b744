package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "clinicpos-api", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "Asia/Kuwait", cfg.Database.Timezone)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 60, cfg.RateLimit.Duration)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.local",
		Port:     "5433",
		Name:     "clinic",
		User:     "vet",
		Password: "secret",
		SSLMode:  "require",
		Timezone: "Asia/Kuwait",
	}

	dsn := db.DSN()
	assert.Contains(t, dsn, "host=db.local")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "dbname=clinic")
	assert.Contains(t, dsn, "sslmode=require")
}
