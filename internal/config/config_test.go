package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.MetadataTimeout)
	assert.Equal(t, 3*time.Second, cfg.AddReadyWindow)
	assert.Equal(t, "torrents", cfg.Drive.Root)
	assert.Equal(t, "static", cfg.Auth.Provider)
	assert.True(t, cfg.Janitor.Enabled)
	assert.Equal(t, "@hourly", cfg.Janitor.Schedule)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GDT_PORT", "9090")
	t.Setenv("GDT_DRIVE_BUCKET", "custom-bucket")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "custom-bucket", cfg.Drive.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
