package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Channels  ChannelsConfig  `json:"channels"`
	Telegraph TelegraphConfig `json:"telegraph"`
	Media     MediaConfig     `json:"media"`
	Gateway   GatewayConfig   `json:"gateway"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"MEDIACLAW_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"MEDIACLAW_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"MEDIACLAW_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

// TelegraphConfig holds the upload-service settings. AccessToken may be left
// empty: the relay provisions an account once at startup and holds the token
// for the process lifetime.
type TelegraphConfig struct {
	AccessToken string `env:"MEDIACLAW_TELEGRAPH_ACCESS_TOKEN" json:"access_token"`
	BaseURL     string `env:"MEDIACLAW_TELEGRAPH_BASE_URL"     json:"base_url"`
	APIBaseURL  string `env:"MEDIACLAW_TELEGRAPH_API_BASE_URL" json:"api_base_url"`
	ShortName   string `env:"MEDIACLAW_TELEGRAPH_SHORT_NAME"   json:"short_name"`
	AuthorName  string `env:"MEDIACLAW_TELEGRAPH_AUTHOR_NAME"  json:"author_name"`
}

type MediaConfig struct {
	MaxFileBytes           int64  `env:"MEDIACLAW_MEDIA_MAX_FILE_BYTES"           json:"max_file_bytes"`
	DownloadTimeoutSeconds int    `env:"MEDIACLAW_MEDIA_DOWNLOAD_TIMEOUT_SECONDS" json:"download_timeout_seconds"`
	ScratchDir             string `env:"MEDIACLAW_MEDIA_SCRATCH_DIR"              json:"scratch_dir"`
}

type GatewayConfig struct {
	Host string `env:"MEDIACLAW_GATEWAY_HOST" json:"host"`
	Port int    `env:"MEDIACLAW_GATEWAY_PORT" json:"port"`
}

// DefaultConfig returns the built-in defaults. The Telegram token has no
// default on purpose: the relay refuses to start without one.
func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Enabled: true},
		},
		Telegraph: TelegraphConfig{
			BaseURL:    "https://telegra.ph",
			APIBaseURL: "https://api.telegra.ph",
			ShortName:  "MediaBot",
			AuthorName: "Telegram Media Bot",
		},
		Media: MediaConfig{
			MaxFileBytes:           5 * 1024 * 1024,
			DownloadTimeoutSeconds: 60,
			ScratchDir:             os.TempDir(),
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional; env vars can carry everything.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Telegraph.BaseURL == "" {
		return errors.New("telegraph.base_url is required")
	}
	if c.Media.MaxFileBytes <= 0 {
		return fmt.Errorf("media.max_file_bytes must be positive, got %d", c.Media.MaxFileBytes)
	}
	if c.Media.DownloadTimeoutSeconds <= 0 {
		return fmt.Errorf("media.download_timeout_seconds must be positive, got %d", c.Media.DownloadTimeoutSeconds)
	}
	return nil
}
