package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/condgate/condgate/internal/api"
	"github.com/condgate/condgate/internal/audit"
	"github.com/condgate/condgate/internal/auth"
	"github.com/condgate/condgate/internal/config"
	"github.com/condgate/condgate/internal/logging"
	"github.com/condgate/condgate/internal/snapshot"
	"github.com/condgate/condgate/internal/store"
	"github.com/condgate/condgate/internal/telemetry"
	"github.com/condgate/condgate/internal/webhook"
)

// auditQueueSize bounds the async audit queue; events past it are dropped
// rather than blocking request handlers.
const auditQueueSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	telemetry.Init()

	ctx := context.Background()

	st, err := store.NewStore(ctx, store.Options{
		Backend:    cfg.StoreBackend,
		DSN:        cfg.DatabaseDSN,
		RuleFile:   cfg.RuleFile,
		NATSURL:    cfg.NATSURL,
		NATSBucket: cfg.NATSBucket,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to create store")
	}
	defer st.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Str("env", cfg.Env).Msg("store ready")

	// Stored API keys are optional; the static admin key always works.
	var keyStore auth.KeyStore
	if cfg.APIKeysFile != "" {
		ks, err := auth.LoadKeysFile(cfg.APIKeysFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.APIKeysFile).Msg("failed to load API keys file")
		}
		keyStore = ks
		keys, _ := ks.ListKeys(ctx)
		logger.Info().Int("keys", len(keys)).Str("path", cfg.APIKeysFile).Msg("API keys loaded")
	}

	// Audit sink: explicit file first, then the store's database, then the
	// service log.
	var sink audit.Sink
	switch {
	case cfg.AuditLogFile != "":
		fileSink, err := audit.NewFileSink(cfg.AuditLogFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.AuditLogFile).Msg("failed to open audit log file")
		}
		defer fileSink.Close()
		sink = fileSink
	default:
		if ps, ok := st.(*store.PostgresStore); ok {
			pgSink := audit.NewPostgresSink(ps.Pool())
			if err := pgSink.EnsureSchema(ctx); err != nil {
				logger.Fatal().Err(err).Msg("failed to ensure audit schema")
			}
			sink = pgSink
		} else {
			sink = audit.NewLogSink(logger)
		}
	}
	auditSvc := audit.NewService(sink, nil, nil, audit.NewDefaultRedactor(cfg.AuditRedactKeys...), auditQueueSize, logger)
	defer auditSvc.Close()

	var webhooks *webhook.Dispatcher
	if len(cfg.WebhookURLs) > 0 {
		webhooks = webhook.NewDispatcher(webhook.EndpointsFromConfig(cfg.WebhookURLs, cfg.WebhookSecret), logger)
		webhooks.Start()
		defer webhooks.Close()
		logger.Info().Int("endpoints", len(cfg.WebhookURLs)).Msg("webhook dispatcher started")
	}

	// Initial snapshot; serving starts only once this succeeds.
	snapshots := snapshot.NewManager(st, cfg.Env, logger)
	if err := snapshots.Rebuild(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to build initial snapshot")
	}
	snap := snapshots.Load()
	logger.Info().Int("rulesets", len(snap.RuleSets)).Str("etag", snap.ETag).Msg("initial snapshot built")

	// Backends that push change notifications keep the snapshot fresh
	// without polling.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if w, ok := st.(store.Watcher); ok {
		go func() {
			err := w.Watch(watchCtx, func() {
				if err := snapshots.Rebuild(watchCtx); err != nil {
					logger.Error().Err(err).Msg("snapshot rebuild after store change failed")
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("store watcher stopped")
			}
		}()
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithSnapshots(snapshots),
		api.WithSampleSalt(cfg.SampleSalt),
		api.WithAudit(auditSvc),
		api.WithEvalRateLimit(cfg.EvalRateLimit, cfg.EvalRateWindow),
	}
	if keyStore != nil {
		opts = append(opts, api.WithKeyStore(keyStore))
	}
	if webhooks != nil {
		opts = append(opts, api.WithWebhooks(webhooks))
	}
	srvAPI := api.NewServer(st, cfg.Env, cfg.AdminAPIKey, opts...)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctxShut, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShut); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
	logger.Info().Msg("stopped")
}
