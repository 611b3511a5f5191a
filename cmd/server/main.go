package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/api"
	"github.com/pinkalP4120/order-metafields/internal/app"
	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting order metafields server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("shop", cfg.Shopify.ShopDomain),
		zap.String("backend", cfg.Shopify.Backend),
		zap.String("storage_mode", string(cfg.Metafields.Mode)),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	router := api.NewRouter(cfg, application.Submissions, application.Repos, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// in-flight submissions may take up to SubmitTimeout
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
