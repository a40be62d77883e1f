// Command doclens-api runs the doclens HTTP API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/doclens-ai/doclens/cmd/doclens-api/handlers"
	"github.com/doclens-ai/doclens/cmd/doclens-api/middleware"
	"github.com/doclens-ai/doclens/internal/app"
	"github.com/doclens-ai/doclens/internal/config"
	"github.com/doclens-ai/doclens/internal/observability"
	"github.com/doclens-ai/doclens/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doclens-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "doclens-api",
	})

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := storage.Migrate(ctx, application.DB, cfg.Embedding.Dimension); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	handler := handlers.New(
		application.Repos,
		application.Pipeline,
		application.RAG,
		application.Searcher,
		application.Embedder,
		logger,
		handlers.UploadLimits{MaxSize: cfg.Upload.MaxSize, Dir: cfg.Upload.Dir},
	)

	router := NewRouter(AppConfig{
		Handler: handler,
		Auth: middleware.AuthConfig{
			SecretKey:    cfg.Auth.SecretKey,
			DefaultOwner: cfg.Auth.DefaultOwner,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Bool("dev_mode", cfg.IsDevelopment()).
			Msg("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutdown started")

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GracefulShutdown)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}
