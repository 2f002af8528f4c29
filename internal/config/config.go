// Package config defines the global configuration structure for the mailblast
// tool. Configuration is loaded once at process startup and is immutable
// thereafter; components receive only the specific subsets they require
// through their constructors, never from ambient global state.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format aborts startup (fail fast),
// which is what guarantees a dispatch batch can never begin with incomplete
// transport or sender settings.
package config

import (
	"time"

	"mailblast/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Populated once during startup and never modified.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Mail     MailConfig
	Dispatch DispatchConfig
	Uploads  UploadConfig
	Metrics  MetricsConfig

	// Build Metadata (injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
	// BaseURL is the public origin used to build absolute unsubscribe links
	// and local upload URLs (no trailing slash).
	BaseURL       string       `envconfig:"BASE_URL" default:"http://127.0.0.1:8080" validate:"required,url"`
	SessionSecret SecretString `envconfig:"SESSION_SECRET" validate:"required,min=32"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// MailConfig holds the outbound transport selection, sender identity, and the
// per-backend settings. Which backend sub-struct must be complete depends on
// Backend; Validate enforces that.
type MailConfig struct {
	Backend     types.MailBackend `envconfig:"MAIL_BACKEND" default:"smtp" validate:"required,oneof=smtp api"`
	SenderEmail string            `envconfig:"SENDER_EMAIL" validate:"required,email"`
	SenderName  string            `envconfig:"SENDER_NAME" default:"No-Reply"`
	ReplyTo     string            `envconfig:"REPLY_TO" validate:"omitempty,email"`

	SMTP SMTPConfig
	API  APIConfig
}

// SMTPConfig holds relay endpoint and credentials for the direct-connection
// backend. Authentication is skipped when both User and Pass are empty.
type SMTPConfig struct {
	Host    string        `envconfig:"SMTP_HOST"`
	Port    int           `envconfig:"SMTP_PORT" default:"587"`
	User    string        `envconfig:"SMTP_USER"`
	Pass    SecretString  `envconfig:"SMTP_PASS"`
	Timeout time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`
}

// APIConfig holds the transactional-email provider settings for the HTTP
// backend. BaseURL is overridable so tests can point the client at a stub.
type APIConfig struct {
	Key     SecretString  `envconfig:"MAIL_API_KEY"`
	BaseURL string        `envconfig:"MAIL_API_BASE_URL" default:"https://api.sendgrid.com" validate:"required,url"`
	Timeout time.Duration `envconfig:"MAIL_API_TIMEOUT" default:"15s"`
}

// DispatchConfig holds batch pacing and image fetch bounds.
type DispatchConfig struct {
	BatchDelay   time.Duration `envconfig:"BATCH_DELAY" default:"500ms"`
	ImageTimeout time.Duration `envconfig:"IMAGE_FETCH_TIMEOUT" default:"10s"`
}

// UploadConfig selects where operator-uploaded images are hosted: S3 when the
// credential triple is complete, the local directory under /static otherwise.
type UploadConfig struct {
	Dir string `envconfig:"UPLOAD_DIR" default:"static/uploads"`
	S3  S3Config
}

// S3Config holds S3-compatible object storage settings for upload hosting.
type S3Config struct {
	Bucket    string       `envconfig:"UPLOAD_S3_BUCKET"`
	AccessKey string       `envconfig:"UPLOAD_S3_ACCESS_KEY"`
	SecretKey SecretString `envconfig:"UPLOAD_S3_SECRET_KEY"`
	Region    string       `envconfig:"UPLOAD_S3_REGION" default:"us-east-1"`
	// Endpoint supports S3-compatible services (MinIO, R2). Empty for AWS.
	Endpoint  string `envconfig:"UPLOAD_S3_ENDPOINT"`
	PublicURL string `envconfig:"UPLOAD_S3_PUBLIC_URL" validate:"omitempty,url"`
}

// Enabled reports whether the credential triple is complete enough to
// construct an S3 client.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey.IsSet()
}

// MetricsConfig holds the optional CloudWatch delivery metrics settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"Mailblast"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
