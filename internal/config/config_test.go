package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SYNC_UPLOAD_SECONDS", "")
	t.Setenv("SYNC_DOWNLOAD_ON_START", "")
	cfg := Load()

	assert.Equal(t, ":8170", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Sync.UploadEvery)
	assert.True(t, cfg.Sync.DownloadOnStart)
}

func TestLoadDownloadOnStartToggle(t *testing.T) {
	t.Setenv("SYNC_DOWNLOAD_ON_START", "false")
	assert.False(t, Load().Sync.DownloadOnStart)

	t.Setenv("SYNC_DOWNLOAD_ON_START", "true")
	assert.True(t, Load().Sync.DownloadOnStart)

	// Garbage falls back to the default.
	t.Setenv("SYNC_DOWNLOAD_ON_START", "maybe")
	assert.True(t, Load().Sync.DownloadOnStart)
}
