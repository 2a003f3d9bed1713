package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "choir.db", c.DBPath)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, time.Second, c.RetryBase)
	assert.Equal(t, 10*time.Minute, c.RetryMax)
	assert.Empty(t, c.S3.Bucket)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"server_url": "http://from-json:1",
		"db_path":    "json.db",
		"retry_max":  "5m",
		"s3":         map[string]any{"bucket": "json-bucket"},
	})
	t.Setenv("CHOIR_SERVER_URL", "http://from-env:2")
	t.Setenv("CHOIR_S3_REGION", "eu-west-1")
	t.Setenv("CHOIR_RETRY_BASE", "250ms")
	os.Args = []string{"testbin", "-c", path, "-a", "http://from-flag:3"}

	cfg := LoadConfig()

	assert.Equal(t, "http://from-flag:3", cfg.ServerURL)
	assert.Equal(t, "json.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.RetryMax)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, "json-bucket", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}
