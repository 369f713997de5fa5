package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/saglikai/medrag/internal/adapters/http"
	"github.com/saglikai/medrag/internal/bootstrap"
	"github.com/saglikai/medrag/internal/config"
	"github.com/saglikai/medrag/internal/observability/logging"
	"github.com/saglikai/medrag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Loader.LoadReady(ctx); err != nil {
		logger.Error("initial index load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	httpMetrics.SetIndexedChunks(app.Collection.Len())

	// Follow worker announcements so freshly indexed documents become
	// searchable without a restart.
	go func() {
		err := app.Queue.SubscribeDocumentIndexed(ctx, func(handlerCtx context.Context, documentID string) error {
			if err := app.Loader.LoadDocument(handlerCtx, documentID); err != nil {
				return err
			}
			httpMetrics.SetIndexedChunks(app.Collection.Len())
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("indexed event subscription failed", slog.String("error", err.Error()))
		}
	}()

	router := httpadapter.NewRouter(
		app.IngestUC,
		app.QueryUC,
		app.Repo,
		app.Sessions,
		httpMetrics,
		logger,
		httpadapter.RouterOptions{
			Service:        "api",
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", slog.String("error", err.Error()))
	}
}
