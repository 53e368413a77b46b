package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/fgcaster/overlay/internal/httpapi"
	"github.com/fgcaster/overlay/internal/hub"
	"github.com/fgcaster/overlay/internal/persist"
	"github.com/fgcaster/overlay/internal/store"
	"github.com/fgcaster/overlay/internal/templates"
)

const saveDebounce = 500 * time.Millisecond

func main() {
	_ = godotenv.Load()

	logger := newLogger(getEnv("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file := persist.NewFile(getEnv("OVERLAY_DATA_FILE", "data.json"))
	doc, err := file.Load()
	if err != nil {
		// Corrupt or unreadable file: defaults keep the show on the air,
		// the next save overwrites whatever is on disk.
		logger.Warn("starting from default state", zap.String("file", file.Path()), zap.Error(err))
	}

	registry := templates.NewRegistry(getEnv("OVERLAY_TEMPLATES_DIR", "templates"), logger.Named("templates"))
	if err := registry.Rescan(); err != nil {
		logger.Warn("template scan failed", zap.Error(err))
	}
	if !registry.HasTemplate(doc.State.ActiveTemplate) {
		logger.Warn("active template not on disk; overlay page will 404 until it appears or the operator switches",
			zap.String("template", doc.State.ActiveTemplate))
	}

	st := store.New(store.Snapshot{Version: doc.Version, State: doc.State}, registry)
	saver := persist.NewSaver(file, doc, clockwork.NewRealClock(), saveDebounce, logger.Named("persist"))
	h := hub.New(ctx, st, saver, logger.Named("hub"))

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Store:     st,
		Registry:  registry,
		Saver:     saver,
		Hub:       h,
		StaticDir: getEnv("OVERLAY_STATIC_DIR", "static"),
		Log:       logger.Named("http"),
	})

	addr := fmt.Sprintf("%s:%d", getEnv("OVERLAY_BIND", "127.0.0.1"), doc.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	// The saver outlives the HTTP server and the hub so the final edits
	// still get flushed after everything else has stopped.
	saverCtx, stopSaver := context.WithCancel(context.Background())
	saverDone := make(chan error, 1)
	go func() { saverDone <- saver.Run(saverCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("overlay server ready",
			zap.String("url", "http://"+addr),
			zap.String("active_template", doc.State.ActiveTemplate),
			zap.Strings("templates", registry.List()),
			zap.Int("version", doc.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		h.Inbox() <- hub.Shutdown{}
		return err
	})

	runErr := g.Wait()
	stopSaver()
	flushErr := <-saverDone

	return multierr.Append(runErr, flushErr)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if lvl, err := zapcore.ParseLevel(strings.ToLower(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
