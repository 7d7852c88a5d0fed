package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("DOCSYNC_HTTP_ADDR", ":9999")
	t.Setenv("DOCSYNC_S3_BUCKET", "env-bucket")
	t.Setenv("DOCSYNC_TOKEN_VALIDITY", "2h")
	t.Setenv("DOCSYNC_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DOCSYNC_SECRET_KEY", "   ")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "env-bucket", cfg.S3Bucket)
	assert.Equal(t, 2*time.Hour, cfg.TokenValidity)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "secretKey", cfg.SecretKey, "blank values are ignored")
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	t.Setenv("DOCSYNC_SHARE_LINK_TTL", "soon")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })
}
