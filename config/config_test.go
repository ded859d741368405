package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2, cfg.PreloadAhead)
	assert.Equal(t, 200*time.Millisecond, cfg.TapMaxDuration)
	assert.Equal(t, 3*time.Second, cfg.RestartThreshold)
	assert.False(t, cfg.RedisEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "80")
	t.Setenv("PRELOAD_AHEAD", "3")
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("STREAM_URL_TTL", "10m")

	cfg := FromEnv()

	assert.Equal(t, 80*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.PreloadAhead)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 10*time.Minute, cfg.StreamURLTTL)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "soon")
	t.Setenv("DRAG_THRESHOLD_PX", "wide")

	cfg := FromEnv()

	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3.0, cfg.DragThresholdPx)
}
