package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"affiliate-attribution/internal/client"
	"affiliate-attribution/internal/config"
	"affiliate-attribution/internal/handler"
	"affiliate-attribution/internal/logger"
	"affiliate-attribution/internal/repository"
	"affiliate-attribution/internal/server"
	"affiliate-attribution/internal/service"
	"affiliate-attribution/internal/webhook"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := client.InitMysqlClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	merchantRepo := repository.NewMerchantRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	clickRepo := repository.NewClickTrackingRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	fraudSignalRepo := repository.NewFraudSignalRepository(db)

	fraudDetector := service.NewFraudDetector(cfg.Fraud, commissionRepo, fraudSignalRepo, log)
	syncTrigger := service.NewLoggingSyncTrigger(log)

	processor := service.NewWebhookProcessor(
		db, log,
		merchantRepo,
		webhookEventRepo,
		clickRepo,
		commissionRepo,
		fraudDetector,
		syncTrigger,
		webhook.NewSallaNormalizer(),
		webhook.NewZidNormalizer(),
	)

	platforms := map[string]handler.PlatformSettings{
		"salla": handler.ResolvePlatformSettings("salla", cfg.Salla),
		"zid":   handler.ResolvePlatformSettings("zid", cfg.Zid),
	}
	webhookHandler := handler.NewWebhookHandler(
		log, processor, platforms,
		cfg.Environment.IsProduction(),
		cfg.Processing.Timeout,
	)

	srv := server.NewServer(log, webhookHandler)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}
