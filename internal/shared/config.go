package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Search   SearchConfig   `toml:"search"`
	Realtime RealtimeConfig `toml:"realtime"`
	Player   PlayerConfig   `toml:"player"`
	Database DatabaseConfig `toml:"database"`
	Download DownloadConfig `toml:"download"`
	Log      LogConfig      `toml:"log"`
}

// BackendConfig contains settings for the conversion backend.
type BackendConfig struct {
	BaseURL           string        `toml:"base_url" env:"TAPEDECK_BACKEND_URL"`
	Token             string        `toml:"token" env:"TAPEDECK_BACKEND_TOKEN"`
	UserAgent         string        `toml:"user_agent"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	ConversionTimeout time.Duration `toml:"conversion_timeout"`
	ConversionRate    float64       `toml:"conversion_rate"`
}

// SearchConfig contains settings for the track-search API.
type SearchConfig struct {
	BaseURL string `toml:"base_url" env:"TAPEDECK_SEARCH_URL"`
	// DeezerURL is the catalogue used for preview clips. Empty disables previews.
	DeezerURL    string `toml:"deezer_url" env:"TAPEDECK_DEEZER_URL"`
	DeezerKey    string `toml:"deezer_key" env:"TAPEDECK_DEEZER_KEY"`
	PreviewLimit int    `toml:"preview_limit"`
}

// RealtimeConfig contains settings for the library update channel.
type RealtimeConfig struct {
	Transport      string        `toml:"transport" env:"TAPEDECK_REALTIME_TRANSPORT"`
	URL            string        `toml:"url" env:"TAPEDECK_REALTIME_URL"`
	Stream         string        `toml:"stream"`
	ResyncInterval time.Duration `toml:"resync_interval"`
}

// PlayerConfig selects the external playback command.
type PlayerConfig struct {
	Command string   `toml:"command" env:"TAPEDECK_PLAYER"`
	Args    []string `toml:"args"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"TAPEDECK_DB_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DownloadConfig contains offline download settings.
type DownloadConfig struct {
	Dir     string  `toml:"dir" env:"TAPEDECK_DOWNLOAD_DIR"`
	Workers int     `toml:"workers"`
	Rate    float64 `toml:"rate"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"TAPEDECK_LOG_LEVEL"`
	File  string `toml:"file"`
}

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays TAPEDECK_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if err := config.New().AddFeeder(feeder.Env{}).AddStruct(c).Feed(); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports the first setting that would prevent the client from starting.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"backend.base_url": c.Backend.BaseURL,
		"search.base_url":  c.Search.BaseURL,
	} {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}

	switch c.Realtime.Transport {
	case TransportSSE, TransportWebSocket:
	default:
		return fmt.Errorf("%w: unknown realtime.transport %q", ErrInvalidConfig, c.Realtime.Transport)
	}

	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("%w: backend.request_timeout must be positive", ErrInvalidConfig)
	}
	if c.Backend.ConversionTimeout <= 0 {
		return fmt.Errorf("%w: backend.conversion_timeout must be positive", ErrInvalidConfig)
	}
	if c.Realtime.ResyncInterval < 0 {
		return fmt.Errorf("%w: realtime.resync_interval cannot be negative", ErrInvalidConfig)
	}
	if c.Search.DeezerURL != "" {
		if u, err := url.Parse(c.Search.DeezerURL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: search.deezer_url must be an absolute URL", ErrInvalidConfig)
		}
	}
	if c.Search.PreviewLimit < 0 {
		return fmt.Errorf("%w: search.preview_limit cannot be negative", ErrInvalidConfig)
	}
	return nil
}
