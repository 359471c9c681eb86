package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	RemoteBaseURL  string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:8000/api/v1"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	UploadTimeout  time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"60s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8090"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	DownloadDir      string        `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	DownloadTimeout  time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"30m"`
	DownloadParallel int           `envconfig:"DOWNLOAD_PARALLEL" default:"2"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.RemoteBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid remote base URL: %q", c.RemoteBaseURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive: %s", c.RequestTimeout)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive: %s", c.UploadTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.DownloadParallel <= 0 {
		return fmt.Errorf("download parallelism must be positive: %d", c.DownloadParallel)
	}

	return nil
}
