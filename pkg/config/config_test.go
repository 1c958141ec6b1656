package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24, cfg.KRS.CreditCeiling)
	assert.Equal(t, 500, cfg.KRS.BatchChunkSize)
	assert.Equal(t, 5*time.Minute, cfg.KRS.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.KRS.ReadRetryDelay)
	assert.False(t, cfg.KRS.CacheEnabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("KRS_CREDIT_CEILING", 0)
	v.Set("KRS_BATCH_CHUNK_SIZE", 50)
	v.Set("KRS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://siakad.example.ac.id, ,https://admin.example.ac.id")
	cfg := fromViper(v)

	assert.Equal(t, 24, cfg.KRS.CreditCeiling)
	assert.Equal(t, 50, cfg.KRS.BatchChunkSize)
	assert.Equal(t, 5*time.Minute, cfg.KRS.CacheTTL)
	assert.Equal(t, []string{"https://siakad.example.ac.id", "https://admin.example.ac.id"}, cfg.CORS.AllowedOrigins)
}

func TestBatchChunkSizeIsClamped(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("KRS_BATCH_CHUNK_SIZE", 100000)
	cfg := fromViper(v)

	assert.Equal(t, 8191, cfg.KRS.BatchChunkSize)
}
