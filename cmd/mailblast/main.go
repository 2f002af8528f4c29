// Package main is the entry point for the mailblast server.
//
// It loads and validates configuration, connects the subscriber database,
// builds the mail transport and dispatch pipeline, wires the operator UI
// handlers onto the core HTTP chassis, and serves until an OS signal
// (SIGINT, SIGTERM) triggers a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"mailblast/internal/api/handlers"
	"mailblast/internal/audience"
	"mailblast/internal/config"
	"mailblast/internal/core"
	"mailblast/internal/db"
	"mailblast/internal/dispatch"
	"mailblast/internal/external"
	"mailblast/internal/images"
	"mailblast/internal/mail"
	"mailblast/internal/metrics"
	"mailblast/internal/web"
)

const (
	// startupTimeout bounds database connection and schema bootstrap so a
	// wedged database fails startup instead of hanging it.
	startupTimeout = 15 * time.Second
	// shutdownTimeout is the grace period for in-flight requests. A running
	// dispatch batch that outlives it is cut off; sends already handed to the
	// transport complete or fail individually.
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("mailblast starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"addr", cfg.Server.Addr,
		"mail_backend", string(cfg.Mail.Backend),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := db.NewPool(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(startCtx, pool); err != nil {
		return fmt.Errorf("bootstrapping schema: %w", err)
	}

	subscribers := db.NewSubscriberRepository(pool, logger.With("component", "db"))

	// Presentation layer: parsed page templates and the signed flash cookie.
	templates, err := web.NewTemplates()
	if err != nil {
		return fmt.Errorf("parsing page templates: %w", err)
	}
	flash, err := web.NewCookieManager(
		cfg.Server.SessionSecret,
		strings.HasPrefix(cfg.Server.BaseURL, "https://"),
	)
	if err != nil {
		return fmt.Errorf("building flash cookie manager: %w", err)
	}

	// Outbound mail: the newsletter renderer and the configured transport.
	renderer, err := mail.NewRenderer()
	if err != nil {
		return fmt.Errorf("parsing mail template: %w", err)
	}
	transport, err := mail.NewTransport(cfg.Mail, logger.With("component", "mail"))
	if err != nil {
		return fmt.Errorf("building mail transport: %w", err)
	}

	imageClient := external.NewBaseClient(
		&http.Client{Timeout: cfg.Dispatch.ImageTimeout},
		"image-fetch",
		"mailblast/"+cfg.Build.Version,
	)

	recorder, err := newRecorder(startCtx, cfg.Metrics, logger)
	if err != nil {
		return fmt.Errorf("building metrics recorder: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Resolver:   audience.NewResolver(subscribers, logger.With("component", "audience")),
		Inliner:    images.NewInliner(imageClient, logger.With("component", "images")),
		Renderer:   renderer,
		Transport:  transport,
		Recorder:   recorder,
		Backend:    cfg.Mail.Backend,
		BaseURL:    cfg.Server.BaseURL,
		BatchDelay: cfg.Dispatch.BatchDelay,
		Logger:     logger.With("component", "dispatch"),
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	pageHandler := handlers.NewPageHandler(subscribers, templates, flash, logger)
	subscriberHandler := handlers.NewSubscriberHandler(subscribers, templates, flash, logger)
	sendHandler := handlers.NewSendHandler(dispatcher, templates, flash, logger)
	uploadHandler := handlers.NewUploadHandler(newUploadStore(cfg, logger), logger)

	srv.MountRoutes(
		pageHandler.RegisterRoutes,
		subscriberHandler.RegisterRoutes,
		sendHandler.RegisterRoutes,
		uploadHandler.RegisterRoutes,
	)

	// Local upload hosting serves the upload directory itself; with S3 the
	// public URLs point at the bucket and nothing is served here.
	if !cfg.Uploads.S3.Enabled() {
		srv.MountStatic(cfg.Uploads.Dir)
	}

	return serve(srv, logger)
}

// serve runs the HTTP server until a shutdown signal or listener error, then
// drains in-flight requests within the shutdown grace period.
func serve(srv *core.Server, logger *slog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newUploadStore picks where operator-uploaded images are hosted: the
// S3-compatible bucket when the credential triple is configured, the local
// static directory otherwise.
func newUploadStore(cfg *config.Config, logger *slog.Logger) images.UploadStore {
	imagesLogger := logger.With("component", "images")

	if cfg.Uploads.S3.Enabled() {
		logger.Info("hosting uploads in object storage", "bucket", cfg.Uploads.S3.Bucket)
		return images.NewS3Store(cfg.Uploads.S3, imagesLogger)
	}

	logger.Info("hosting uploads on local disk", "dir", cfg.Uploads.Dir)
	return images.NewLocalStore(cfg.Uploads.Dir, cfg.Server.BaseURL, imagesLogger)
}

// newRecorder builds the delivery metrics recorder: CloudWatch when enabled,
// a no-op otherwise.
func newRecorder(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (metrics.DeliveryRecorder, error) {
	if !cfg.Enabled {
		return metrics.NoopRecorder{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return metrics.NewCloudWatchRecorder(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Namespace,
		logger.With("component", "metrics"),
	), nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
