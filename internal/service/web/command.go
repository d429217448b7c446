package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/iis-server-builder/internal/catalog"
	"github.com/oshokin/iis-server-builder/internal/config"
	"github.com/oshokin/iis-server-builder/internal/logger"
	"github.com/oshokin/iis-server-builder/internal/orchestrator"
	"github.com/oshokin/iis-server-builder/internal/repository/buildinfo"
)

// Options controls the builder process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
	// DataDir provides an optional artifact directory override.
	DataDir string
	// LogLevel provides an optional log level override.
	LogLevel string
}

const (
	// shutdownTimeout bounds the graceful drain of in-flight requests.
	shutdownTimeout = 10 * time.Second

	// readHeaderTimeout protects the listener from slow-header clients.
	readHeaderTimeout = 10 * time.Second

	// dataDirMode is used when creating the data directory.
	dataDirMode os.FileMode = 0o755
)

// Run starts the HTTP layer and blocks until the context is canceled or
// the server stops. Configuration is loaded first, then orphaned temporary
// files from a previous process lifetime are removed before any build can
// be triggered.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "iis-builder")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logLevel := cfg.LogLevel
	if opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}

	if level, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(level)
	}

	if err = os.MkdirAll(cfg.DataDir, dataDirMode); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	catalogClient := catalog.NewClient(cfg.FolderURL, catalog.WithTimeout(cfg.Timeout))
	repo := buildinfo.NewRepository(cfg.VersionFilePath(), cfg.ManifestPath())
	pipeline := orchestrator.New(cfg, catalogClient, repo)

	if err = pipeline.RecoverOrphans(ctx); err != nil {
		return fmt.Errorf("recover orphaned files: %w", err)
	}

	router := newRouter(&handler{
		pipeline:    pipeline,
		repo:        repo,
		archivePath: cfg.ArchivePath(),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	logger.InfoKV(ctx, "Builder listening",
		"listen_address", cfg.ListenAddress,
		"folder_url", cfg.FolderURL,
		"data_dir", cfg.DataDir)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warnf(ctx, "Shutdown did not drain cleanly: %v", shutdownErr)
		}

		close(done)
	}()

	if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
