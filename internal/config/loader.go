// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
//  6. Apply cross-field rules that struct tags cannot express (the selected
//     mail backend must carry complete credentials).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"mailblast/internal/types"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration.
//
// It performs the following steps in order:
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present (non-fatal if missing; never overrides
//     variables already set in the OS environment).
//  3. Processes envconfig tags to populate the Config struct.
//  4. Populates Config.Build from linker-injected variables.
//  5. Validates the Config struct.
//  6. Enforces backend-conditional requirements.
func LoadConfig() (*Config, error) {
	// Step 1: Enforce UTC timezone to prevent drift bugs.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent).
	_ = godotenv.Load()

	// Step 3: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig uses the exact tag values
	// (e.g., envconfig:"SMTP_HOST" reads SMTP_HOST directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Populate build metadata from linker-injected variables.
	cfg.Build = NewBuildInfo()

	// Step 5: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	// Step 6: Backend-conditional requirements.
	if err := cfg.validateBackend(); err != nil {
		return nil, err
	}

	cfg.normalize()
	return &cfg, nil
}

// validateBackend enforces the requirements that depend on the selected mail
// backend. A dispatch batch must never start against an incomplete transport,
// so an incomplete backend refuses startup outright.
func (c *Config) validateBackend() error {
	switch c.Mail.Backend {
	case types.BackendSMTP:
		if c.Mail.SMTP.Host == "" {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "SMTP_HOST is required when MAIL_BACKEND=smtp",
			}
		}
		if c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.Port > 65535 {
			return &ConfigError{
				Type:    ErrValidation,
				Message: fmt.Sprintf("SMTP_PORT %d is out of range", c.Mail.SMTP.Port),
			}
		}
	case types.BackendAPI:
		if !c.Mail.API.Key.IsSet() {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "MAIL_API_KEY is required when MAIL_BACKEND=api",
			}
		}
	}
	return nil
}

// normalize canonicalizes values whose raw env form allows harmless variance.
func (c *Config) normalize() {
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	c.Mail.API.BaseURL = strings.TrimRight(c.Mail.API.BaseURL, "/")
	c.Uploads.S3.PublicURL = strings.TrimRight(c.Uploads.S3.PublicURL, "/")
	c.Mail.SenderEmail = types.NormalizeEmail(c.Mail.SenderEmail)
}
