package config

import (
	"fmt"
	"time"

	"github.com/rezkam/mono/internal/env"
)

// ServerConfig holds all configuration for the HTTP submission/status binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Submission      SubmissionConfig
	ObjectStorage   ObjectStorageConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"MONO_SHUTDOWN_TIMEOUT"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"MONO_HTTP_HOST"`
	Port              string        `env:"MONO_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"MONO_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"MONO_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"MONO_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"MONO_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"MONO_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"MONO_HTTP_MAX_BODY_BYTES"`

	TLSEnabled  bool   `env:"MONO_TLS_ENABLED"`
	TLSCertFile string `env:"MONO_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"MONO_TLS_KEY_FILE"`
}

// SubmissionConfig holds the submission.maxUnitsPerJob guardrail.
type SubmissionConfig struct {
	MaxUnitsPerJob int `env:"MONO_SUBMISSION_MAX_UNITS_PER_JOB"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if cfg.Submission.MaxUnitsPerJob <= 0 {
		cfg.Submission.MaxUnitsPerJob = 5000
	}

	return cfg, nil
}
