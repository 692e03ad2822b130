package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/registrations/internal/config"
	"github.com/registrations/internal/drive"
	"github.com/registrations/internal/google"
	"github.com/registrations/internal/mailer"
	"github.com/registrations/internal/metrics"
	"github.com/registrations/internal/registration"
	"github.com/registrations/internal/sheets"
)

type App struct {
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pipeline *registration.Pipeline
	tracer   *sdktrace.TracerProvider
	started  time.Time
}

// New connects to Google and builds the pipeline. It does not start serving.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	svcs, err := google.NewServices(ctx, google.Credentials{
		ClientEmail: cfg.Google.ClientEmail,
		PrivateKey:  cfg.Google.PrivateKey,
	})
	if err != nil {
		return nil, fmt.Errorf("google services: %w", err)
	}

	notifier, err := newNotifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	tp, err := newTracerProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	store := drive.NewStore(svcs.Drive, cfg.Google.FolderID, drive.WithPublicLink(cfg.Google.PublicLink))
	sheet := sheets.NewClient(svcs.Sheets, cfg.Google.SpreadsheetID, cfg.Google.SheetName)

	var provider trace.TracerProvider
	if tp != nil {
		provider = tp
	}
	app := newApp(cfg, logger, store, sheet, notifier, provider)
	app.tracer = tp
	return app, nil
}

func newApp(cfg *config.Config, logger *slog.Logger, blobs registration.BlobStore, sheet registration.Sheet, notifier registration.Notifier, tp trace.TracerProvider) *App {
	m := metrics.New()
	pipeline := registration.NewPipeline(blobs, sheet, notifier,
		registration.WithLogger(logger),
		registration.WithRecorder(m),
		registration.WithTracerProvider(tp),
		registration.WithMetadataStripping(cfg.StripImageMetadata),
	)

	return &App{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		pipeline: pipeline,
		started:  time.Now(),
	}
}

// newNotifier returns nil when confirmation emails are disabled.
func newNotifier(ctx context.Context, cfg *config.Config) (registration.Notifier, error) {
	switch cfg.NotifyBackend {
	case config.NotifySMTP:
		return mailer.New(&mailer.Config{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.User,
			Password:    cfg.SMTP.Pass,
			FromName:    cfg.SMTP.FromName,
			FromAddress: cfg.SMTPFrom(),
		}), nil
	case config.NotifySES:
		return mailer.NewSESNotifier(ctx, cfg.SES.Region, cfg.SES.FromEmail)
	default:
		return nil, nil
	}
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", app.config.Port),
		Handler:           app.routes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "notify", app.config.NotifyBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		app.shutdownTracing(shutdownCtx)
		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel, err := cfg.SlogLevel()
	if err != nil {
		logLevel = slog.LevelInfo
	}
	if cfg.IsDevelopment() && logLevel > slog.LevelDebug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
