package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthands/papergraph/internal/bootstrap"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := bootstrap.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "path", cfgPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, err := bootstrap.NewGraph(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize paper graph", "error", err)
	}
	defer g.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.NewServer(g).SetupRouter(),
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}
