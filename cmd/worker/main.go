package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"traction/internal/pkg/logger"
	"traction/internal/platform/config"
	"traction/internal/platform/database"
	"traction/internal/platform/repositories"
	"traction/internal/platform/secrets"
	"traction/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)
	log.Info().Msg("starting traction worker")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	secretStore, err := secrets.NewStore(db, cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secret store")
	}

	worker := workers.NewSyncWorker(
		db,
		repositories.NewOrganizationRepository(db),
		repositories.NewSettingsRepository(db),
		secretStore,
		cfg.Fireflies,
		cfg.Worker.SyncInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	worker.Run(ctx)
}
