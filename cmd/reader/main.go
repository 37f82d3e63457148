// Command reader runs the URL-to-text reader, interrogator, and nightly
// cruncher service: browser pool, HTTP API, and the scheduled archive job
// in one process, wired the way the teacher's cmd/chrc/main.go wires its
// chassis, router, and background workers together.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/reader/audit"
	"github.com/hazyhaar/reader/idgen"
	"github.com/hazyhaar/reader/internal/api"
	"github.com/hazyhaar/reader/internal/browserpool"
	"github.com/hazyhaar/reader/internal/config"
	"github.com/hazyhaar/reader/internal/cruncher"
	"github.com/hazyhaar/reader/internal/format"
	"github.com/hazyhaar/reader/internal/llmclient"
	"github.com/hazyhaar/reader/internal/objectstore"
	"github.com/hazyhaar/reader/internal/store"
	"github.com/hazyhaar/reader/internal/tools"
	"github.com/hazyhaar/reader/observability"
	"github.com/hazyhaar/reader/shield"
	"github.com/hazyhaar/reader/trace"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SQLTrace {
		traceDB, err := sql.Open("sqlite", cfg.TraceDBPath)
		if err != nil {
			logger.Error("trace: open failed", "error", err)
			os.Exit(1)
		}
		defer traceDB.Close()
		traceStore := trace.NewStore(traceDB)
		if err := traceStore.Init(); err != nil {
			logger.Error("trace: init failed", "error", err)
			os.Exit(1)
		}
		defer traceStore.Close()
		trace.SetStore(traceStore)
	}

	obsDB, err := sql.Open("sqlite", cfg.ObservabilityDBPath)
	if err != nil {
		logger.Error("observability: open failed", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		logger.Error("observability: schema init failed", "error", err)
		os.Exit(1)
	}

	auditLogger := observability.NewAuditLogger(obsDB, 1000,
		observability.WithAuditIDGenerator(idgen.Prefixed("audit_", idgen.Default)))
	metrics := observability.NewMetricsManager(obsDB, 100, 5*time.Second)
	events := observability.NewEventLogger(obsDB,
		observability.WithEventIDGenerator(idgen.Prefixed("evt_", idgen.Default)))

	heartbeat := observability.NewHeartbeatWriter(obsDB, "reader", 15*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	toolAudit := audit.NewSQLiteLogger(obsDB, audit.WithIDGenerator(idgen.Prefixed("toolaudit_", idgen.Default)))
	if err := toolAudit.Init(); err != nil {
		logger.Error("audit: tool audit schema init failed", "error", err)
		os.Exit(1)
	}
	defer toolAudit.Close()

	pool := browserpool.NewManager(browserpool.Config{
		RemoteURL: cfg.BrowserRemoteURL,
		Stealth:   stealthLevel(cfg.BrowserStealth),
		Logger:    logger,
	})
	if err := pool.Start(ctx); err != nil {
		logger.Error("browserpool: start failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	formatter := format.New()

	llm := llmclient.New(cfg.LLMBaseURL, cfg.LLMAPIKey)

	registry := tools.New()
	tools.RegisterBrowse(registry, pool, formatter)
	if cfg.SearchWebBaseURL != "" {
		tools.RegisterSearchWeb(registry, cfg.SearchWebBaseURL, &http.Client{Timeout: 10 * time.Second})
	}

	openStore := store.Open
	if cfg.SQLTrace {
		openStore = store.OpenTraced
	}
	st, err := openStore(cfg.StoreDBPath)
	if err != nil {
		logger.Error("store: open failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var objects *objectstore.Store
	if cfg.StorageBucket != "" {
		objects, err = objectstore.New(ctx, cfg.StorageBucket)
		if err != nil {
			logger.Error("objectstore: open failed", "error", err)
			os.Exit(1)
		}
	}

	crunch := cruncher.New(cruncher.Config{
		Prefix:    cfg.CrunchPrefix,
		Rev:       cfg.CrunchRev,
		TMinus:    cfg.CruncherTMinusDays,
		BatchSize: cfg.CruncherBatchSize,
	}, st, objects, formatter)

	scheduler := cruncher.NewScheduler(crunch, logger)
	scheduler.Events = events
	go scheduler.Run(ctx)

	srv := &api.Server{
		Pool:       pool,
		Formatter:  formatter,
		LLM:        llm,
		Tools:      registry,
		Store:      st,
		Objects:    objects,
		Cruncher:   crunch,
		Audit:      auditLogger,
		Metrics:    metrics,
		ToolAudit:  toolAudit,
		AuthSecret: []byte(cfg.AuthSecret),
		Logger:     logger,
	}

	var rateLimitDB *sql.DB
	if db, err := shieldDB(cfg.StoreDBPath); err == nil {
		rateLimitDB = db
		defer db.Close()
	} else {
		logger.Warn("shield: rate-limit db unavailable, running without rate limiting", "error", err)
	}

	router := srv.NewRouter(rateLimitDB)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("reader: listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("reader: serve failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("reader: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("reader: shutdown error", "error", err)
	}
}

// shieldDB opens a second handle to the store's SQLite file for shield's
// rate_limits/maintenance tables, keeping that schema isolated from
// internal/store's own migrations.
func shieldDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := shield.Init(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func stealthLevel(enabled bool) browserpool.StealthLevel {
	if enabled {
		return browserpool.LevelHeadless
	}
	return browserpool.LevelHTTP
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
