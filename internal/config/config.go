// Package config centralizes how SnapText reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents runtime configuration for the service. All values are read
// from SNAPTEXT_-prefixed environment variables with sensible defaults.
type Config struct {
	Host      string `envconfig:"HOST" default:"0.0.0.0"`
	Port      int    `envconfig:"PORT" default:"8010"`
	UploadDir string `envconfig:"UPLOAD_DIR" default:"/tmp/snaptext-uploads"`

	// TokenTTL and MaxValidTokens bound the rotating session token cache.
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"300s"`
	MaxValidTokens int           `envconfig:"MAX_VALID_TOKENS" default:"20"`

	// Workers sizes the recognition worker pool shared by all jobs.
	Workers int `envconfig:"WORKERS" default:"2"`

	MaxFileSize    int64    `envconfig:"MAX_FILE_BYTES" default:"26214400"`
	MaxUploadFiles int      `envconfig:"MAX_UPLOAD_FILES" default:"16"`
	AllowedTypes   []string `envconfig:"ALLOWED_TYPES" default:"image/png,image/jpeg,image/tiff,application/pdf"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	OCRLanguages   []string `envconfig:"OCR_LANGUAGES" default:"eng"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment falling back to defaults.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("snaptext", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxValidTokens <= 0 {
		cfg.MaxValidTokens = 1
	}
	return cfg, nil
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
