// SPDX-License-Identifier: MIT

// Command daemon runs the conversation governance service: the HTTP API,
// the session store, the flow audit stream and the periodic CSV export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stitech/convogate/internal/api"
	"github.com/stitech/convogate/internal/audit"
	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/engine"
	"github.com/stitech/convogate/internal/handlers"
	"github.com/stitech/convogate/internal/intent"
	cvlog "github.com/stitech/convogate/internal/log"
	"github.com/stitech/convogate/internal/session"
	"github.com/stitech/convogate/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cvlog.Configure(cvlog.Config{
		Level:   config.ParseString("CONVOGATE_LOG_LEVEL", "info"),
		Service: "convogate",
	})
	logger := cvlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	catalog, err := config.NewCatalog(cfg.MessagesPath, cfg.DefaultLanguage, cvlog.WithComponent("catalog"))
	if err != nil {
		return fmt.Errorf("load reply catalog: %w", err)
	}
	if cfg.MessagesPath != "" {
		if err := catalog.Watch(cfg.MessagesPath); err != nil {
			return fmt.Errorf("watch reply catalog: %w", err)
		}
	}
	defer func() { _ = catalog.Close() }()

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	stream := audit.NewStream(sink, cvlog.WithComponent("audit"), audit.StreamOptions{
		Buffer: cfg.AuditBuffer,
	})
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Warn().Err(err).Msg("audit stream close failed")
		}
	}()

	registry, err := handlers.NewRegistry(catalog, cfg.SupportWhatsApp)
	if err != nil {
		return fmt.Errorf("build handler registry: %w", err)
	}

	classifier := intent.WithTimeout(intent.HeuristicAdapter(), cfg.IntentTimeout, cvlog.WithComponent("intent"))

	eng, err := engine.New(engine.Options{
		Store:      store,
		Registry:   registry,
		Classifier: classifier,
		Audit:      stream,
		Catalog:    catalog,
		Logger:     cvlog.WithComponent("engine"),
		SessionTTL: cfg.SessionTTL,
		ClaimTTL:   cfg.ClaimTTL,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	server := api.NewServer(cfg, eng, stream, cvlog.WithComponent("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.AuditExportPath != "" {
		g.Go(func() error {
			return exportLoop(gctx, stream, cfg.AuditExportPath, logger)
		})
	}

	return g.Wait()
}

// exportLoop periodically rewrites the operator CSV export. Each write is
// atomic, so readers only ever see a complete file.
func exportLoop(ctx context.Context, stream *audit.Stream, path string, logger zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final export so a shutdown leaves a current file behind.
			exportCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := stream.ExportFile(exportCtx, path)
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("final flow audit export failed")
			}
			return nil
		case <-ticker.C:
			if err := stream.ExportFile(ctx, path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("flow audit export failed")
			}
		}
	}
}

func buildStore(cfg config.AppConfig, logger zerolog.Logger) (session.Store, error) {
	fallback := session.NewMemoryStore(5 * time.Minute)
	if cfg.RedisAddr == "" {
		logger.Info().Msg("no redis configured, using in-memory session store")
		return fallback, nil
	}
	store, err := session.NewRedisStore(session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, fallback, cvlog.WithComponent("session"))
	if err != nil {
		return nil, fmt.Errorf("connect session store: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis session store connected")
	return store, nil
}

func buildSink(cfg config.AppConfig, logger zerolog.Logger) (audit.Sink, error) {
	if cfg.AuditDBPath == "" {
		logger.Info().Msg("no audit database configured, keeping flow audit in memory")
		return audit.NewMemorySink(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.AuditDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	sink, err := audit.NewSqliteSink(cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	logger.Info().Str("path", cfg.AuditDBPath).Msg("flow audit database opened")
	return sink, nil
}
