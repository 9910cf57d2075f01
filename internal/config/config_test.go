package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.PixExpiry)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "25", cfg.ShippingRate.String())
	assert.Equal(t, "500", cfg.FreeShippingFrom.String())
	assert.Equal(t, 4, cfg.SettlementWorkers)
	assert.Equal(t, ":9091", cfg.WorkerHTTPAddr)
	assert.NotEqual(t, cfg.HTTPAddr, cfg.WorkerHTTPAddr)
}

func TestLoad_WorkerAddrIndependentOfAPI(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8000")
	t.Setenv("WORKER_HTTP_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, ":9100", cfg.WorkerHTTPAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("PIX_EXPIRY", "15m")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SHIPPING_RATE", "19.90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.PixExpiry)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "19.9", cfg.ShippingRate.String())
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("PIX_EXPIRY", "soon")
	t.Setenv("REDIS_DB", "two")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIX_EXPIRY")
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	err := Config{KafkaBrokers: []string{"k:9092"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "PIX_KEY")

	assert.NoError(t, Config{JWTSecret: "s", PixKey: "k", KafkaBrokers: []string{"k:9092"}}.Validate())
}
