package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EpicMandM/station-booking/internal/app"
	"github.com/EpicMandM/station-booking/internal/config"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/service"
)

func main() {
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("Application error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {
	configPath := getEnvOrDefault("CONFIG_PATH", "./data/stations.toml")
	featureCfg, err := service.LoadFeatureConfig(configPath)
	if err != nil {
		log.Error("Failed to load feature config", logger.Error(err), logger.F("PATH", configPath))
		return err
	}

	envPath := getEnvOrDefault("ENV_FILE", ".env")
	infraCfg, err := config.LoadWithFile(envPath)
	if err != nil {
		log.Error("Failed to load infrastructure config", logger.Error(err), logger.F("PATH", envPath))
		return err
	}

	application := app.New(infraCfg, featureCfg, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Close(closeCtx); err != nil {
			log.Error("Failed to close application", logger.Error(err))
		}
	}()

	if err := application.Initialize(ctx); err != nil {
		log.Error("Failed to initialize application", logger.Error(err))
		return err
	}
	return application.Run(ctx)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
