package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("MEDSCAN_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("SUMMARY_ENDPOINT", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, "DEECOGS", cfg.Gallery.Album)
	assert.Equal(t, 1200, cfg.Enhance.TargetWidth)
	assert.Empty(t, cfg.Summary.Endpoint)
}

func TestLoadFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("MEDSCAN_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("SUMMARY_ENDPOINT", "https://api.example.com/summarize")
	t.Setenv("SUMMARY_TIMEOUT", "45s")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PERMISSION_MODE", "deny")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://api.example.com/summarize", cfg.Summary.Endpoint)
	assert.Equal(t, 45*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
	assert.Equal(t, PermissionDeny, cfg.Permission.Mode)
	// unparsable durations keep the default
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestLoadFromEnv_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medscan.yaml")
	yml := `
port: "7070"
summary:
  endpoint: http://summarizer.local/upload
storage:
  driver: redis
  redis_addr: cache:6379
enhance:
  target_width: 800
share:
  title: Scan Result
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("MEDSCAN_CONFIG", path)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("SUMMARY_ENDPOINT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SHARE_TITLE", "Env Title")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "http://summarizer.local/upload", cfg.Summary.Endpoint)
	assert.Equal(t, StorageRedis, cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 800, cfg.Enhance.TargetWidth)
	// fields absent from the file keep their defaults
	assert.Equal(t, 1.2, cfg.Enhance.Contrast)
	// the environment wins over the file
	assert.Equal(t, "Env Title", cfg.Share.Title)
}

func TestLoadFromEnv_BadFile(t *testing.T) {
	t.Setenv("MEDSCAN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadFromEnv()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))
	t.Setenv("MEDSCAN_CONFIG", path)
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non numeric port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"zero body size", func(c *Config) { c.MaxRequestBodySize = 0 }},
		{"zero summary timeout", func(c *Config) { c.Summary.Timeout = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown permission mode", func(c *Config) { c.Permission.Mode = "ask" }},
		{"zero width", func(c *Config) { c.Enhance.TargetWidth = 0 }},
		{"quality above one", func(c *Config) { c.Enhance.Quality = 1.5 }},
		{"zero contrast", func(c *Config) { c.Enhance.Contrast = 0 }},
		{"negative sharpen", func(c *Config) { c.Enhance.Sharpen = -1 }},
		{"summary endpoint scheme", func(c *Config) { c.Summary.Endpoint = "ftp://example.com" }},
		{"camera url without host", func(c *Config) { c.Camera.SnapshotURL = "http://" }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServerAddress(t *testing.T) {
	cfg := &Config{Host: " 127.0.0.1 ", Port: "8080 "}
	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddress())

	cfg = &Config{Host: "::1", Port: "80"}
	assert.Equal(t, "[::1]:80", cfg.ServerAddress())
}

func TestGalleryConfig_UseAzure(t *testing.T) {
	assert.False(t, GalleryConfig{}.UseAzure())
	assert.False(t, GalleryConfig{AzureAccount: "a", AzureKey: "k"}.UseAzure())
	assert.True(t, GalleryConfig{AzureAccount: "a", AzureKey: "k", AzureContainer: "c"}.UseAzure())
}
