package channel_archiver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CHANNEL_ARCHIVER"

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

const (
	TitleSourceYtdlp   = "ytdlp"
	TitleSourceYoutube = "youtube"
)

const (
	PlaylistStrategyFlat = "flat"
	PlaylistStrategyAPI  = "api"
)

// Config holds every tunable of the archiver. It is built once at startup and passed to constructors.
type Config struct {
	StorePath    string `mapstructure:"store_path"`
	StoreBackend string `mapstructure:"store_backend"`
	OutputDir    string `mapstructure:"output_dir"`

	// External downloader binary and the format/extension of the files it produces.
	DownloaderBinary string `mapstructure:"downloader_binary"`
	Format           string `mapstructure:"format"`
	Extension        string `mapstructure:"extension"`

	// Where titles come from: "ytdlp" (the downloader binary) or "youtube" (the YouTube API client).
	TitleSource string `mapstructure:"title_source"`
	// Discovery strategy used for playlists: "flat" or "api".
	PlaylistStrategy string `mapstructure:"playlist_strategy"`

	BaseURL          string        `mapstructure:"base_url"`
	TitleTimeout     time.Duration `mapstructure:"title_timeout"`
	EnumerateTimeout time.Duration `mapstructure:"enumerate_timeout"`
	NavigateTimeout  time.Duration `mapstructure:"navigate_timeout"`
	// Zero means downloads may run for as long as they need.
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	ScrollPause     time.Duration `mapstructure:"scroll_pause"`
	MaxScrolls      int           `mapstructure:"max_scrolls"`

	MaxFilenameLength int `mapstructure:"max_filename_length"`
	ErrorTailLines    int `mapstructure:"error_tail_lines"`
}

var DefaultConfig = Config{
	StorePath:         "database.sqlite",
	StoreBackend:      BackendSQLite,
	OutputDir:         "downloads",
	DownloaderBinary:  "yt-dlp",
	Format:            "mp4",
	Extension:         "mp4",
	TitleSource:       TitleSourceYtdlp,
	PlaylistStrategy:  PlaylistStrategyFlat,
	BaseURL:           "https://www.youtube.com",
	TitleTimeout:      30 * time.Second,
	EnumerateTimeout:  60 * time.Second,
	NavigateTimeout:   30 * time.Second,
	DownloadTimeout:   0,
	ScrollPause:       2 * time.Second,
	MaxScrolls:        500,
	MaxFilenameLength: 200,
	ErrorTailLines:    10,
}

// LoadConfig builds a Config from DefaultConfig, then the config file at path (if non-empty), then environment
// variables prefixed with EnvPrefix (e.g. CHANNEL_ARCHIVER_OUTPUT_DIR).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %v: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.StoreBackend != BackendSQLite && c.StoreBackend != BackendBolt:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	case c.TitleSource != TitleSourceYtdlp && c.TitleSource != TitleSourceYoutube:
		return fmt.Errorf("unknown title source %q", c.TitleSource)
	case c.PlaylistStrategy != PlaylistStrategyFlat && c.PlaylistStrategy != PlaylistStrategyAPI:
		return fmt.Errorf("unknown playlist strategy %q", c.PlaylistStrategy)
	case c.StorePath == "":
		return errors.New("store path must not be empty")
	case c.OutputDir == "":
		return errors.New("output dir must not be empty")
	case c.MaxFilenameLength <= 0:
		return errors.New("max filename length must be positive")
	case c.ErrorTailLines <= 0:
		return errors.New("error tail lines must be positive")
	case c.DownloadTimeout < 0:
		return errors.New("download timeout must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("store_path", c.StorePath)
	v.SetDefault("store_backend", c.StoreBackend)
	v.SetDefault("output_dir", c.OutputDir)
	v.SetDefault("downloader_binary", c.DownloaderBinary)
	v.SetDefault("format", c.Format)
	v.SetDefault("extension", c.Extension)
	v.SetDefault("title_source", c.TitleSource)
	v.SetDefault("playlist_strategy", c.PlaylistStrategy)
	v.SetDefault("base_url", c.BaseURL)
	v.SetDefault("title_timeout", c.TitleTimeout)
	v.SetDefault("enumerate_timeout", c.EnumerateTimeout)
	v.SetDefault("navigate_timeout", c.NavigateTimeout)
	v.SetDefault("download_timeout", c.DownloadTimeout)
	v.SetDefault("scroll_pause", c.ScrollPause)
	v.SetDefault("max_scrolls", c.MaxScrolls)
	v.SetDefault("max_filename_length", c.MaxFilenameLength)
	v.SetDefault("error_tail_lines", c.ErrorTailLines)
}
