package channel_archiver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	assert := assert_.New(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(DefaultConfig, cfg)
}

func TestLoadConfig_Env(t *testing.T) {
	assert := assert_.New(t)
	t.Setenv("CHANNEL_ARCHIVER_OUTPUT_DIR", "/tmp/videos")
	t.Setenv("CHANNEL_ARCHIVER_STORE_BACKEND", "bolt")
	t.Setenv("CHANNEL_ARCHIVER_TITLE_TIMEOUT", "5s")
	t.Setenv("CHANNEL_ARCHIVER_MAX_SCROLLS", "12")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal("/tmp/videos", cfg.OutputDir)
	assert.Equal(BackendBolt, cfg.StoreBackend)
	assert.Equal(5*time.Second, cfg.TitleTimeout)
	assert.Equal(12, cfg.MaxScrolls)
	assert.Equal(DefaultConfig.StorePath, cfg.StorePath)
}

func TestLoadConfig_File(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_path: archive.db\nplaylist_strategy: api\ndownload_timeout: 1h\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal("archive.db", cfg.StorePath)
	assert.Equal(PlaylistStrategyAPI, cfg.PlaylistStrategy)
	assert.Equal(time.Hour, cfg.DownloadTimeout)
	assert.Equal(DefaultConfig.OutputDir, cfg.OutputDir)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert_.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert := assert_.New(t)

	cfg := DefaultConfig
	assert.NoError(cfg.Validate())

	cfg = DefaultConfig
	cfg.StoreBackend = "postgres"
	assert.ErrorContains(cfg.Validate(), "postgres")

	cfg = DefaultConfig
	cfg.TitleSource = "guess"
	assert.Error(cfg.Validate())

	cfg = DefaultConfig
	cfg.PlaylistStrategy = "browser"
	assert.Error(cfg.Validate())

	cfg = DefaultConfig
	cfg.MaxFilenameLength = 0
	assert.Error(cfg.Validate())

	t.Setenv("CHANNEL_ARCHIVER_STORE_BACKEND", "mysql")
	_, err := LoadConfig("")
	assert.Error(err)
}
