// Package config loads channelscope settings from a .env file and the
// environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

var (
	ErrMissingAPIKey        = errors.New("YOUTUBE_API_KEY is required")
	ErrMissingClientSecrets = errors.New("CLIENT_SECRETS_FILE is required for YouTube Analytics")
	ErrInvalidEncryptionKey = errors.New("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters")
)

type Config struct {
	APIKey             string `env:"YOUTUBE_API_KEY"`
	ClientSecretsFile  string `env:"CLIENT_SECRETS_FILE"`
	ConfigDir          string `env:"CHANNELSCOPE_CONFIG_DIR"`
	APIURL             string `env:"CHANNELSCOPE_API_URL"`
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`
	LogLevel           string `env:"LOG_LEVEL" default:"info"`
	LogFormat          string `env:"LOG_FORMAT" default:"text"`
	ServeAddr          string `env:"SERVE_ADDR" default:":8081"`
	AllowedOrigins     string `env:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	OAuthPort       int     `env:"OAUTH_PORT" default:"8080"`
	MaxPages        int     `env:"MAX_PAGES" default:"1000"`
	DetailBatchSize int     `env:"DETAIL_BATCH_SIZE" default:"50"`
	DetailRPS       float64 `env:"DETAIL_RPS" default:"10"`

	AuthTimeout    time.Duration `env:"AUTH_TIMEOUT" default:"5m"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" default:"60s"`

	// DotEnvMissing is set when no .env file was loaded. Load runs before
	// the logger exists, so the caller reports it.
	DotEnvMissing bool
}

// Load reads .env (when present) and the environment. It does not require
// any credential; commands call Validate or ValidateOAuth for what they need.
func Load() (*Config, error) {
	dotEnvErr := godotenv.Load()

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.DotEnvMissing = dotEnvErr != nil

	if cfg.ConfigDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		cfg.ConfigDir = filepath.Join(dir, "channelscope")
	}

	if cfg.TokenEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil || len(key) != 32 {
			return nil, ErrInvalidEncryptionKey
		}
	}

	return &cfg, nil
}

// Validate checks what every Data API command needs.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ValidateOAuth checks what the Analytics commands need on top of Validate.
func (c *Config) ValidateOAuth() error {
	if c.ClientSecretsFile == "" {
		return ErrMissingClientSecrets
	}
	if _, err := os.Stat(c.ClientSecretsFile); err != nil {
		return fmt.Errorf("%w: %w", ErrMissingClientSecrets, err)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) TokenPath() string {
	return filepath.Join(c.ConfigDir, "youtube_analytics_token.json")
}

func (c *Config) HistoryPath() string {
	return filepath.Join(c.ConfigDir, "history.db")
}
