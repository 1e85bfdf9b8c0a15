package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"traction/internal/api"
	"traction/internal/api/handlers"
	"traction/internal/api/middleware"
	"traction/internal/engine/ai"
	"traction/internal/pkg/logger"
	"traction/internal/platform/audit"
	"traction/internal/platform/auth"
	"traction/internal/platform/config"
	"traction/internal/platform/database"
	"traction/internal/platform/repositories"
	"traction/internal/platform/secrets"
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
	log.Info().Msg("starting traction server")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	secretStore, err := secrets.NewStore(db, cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secret store")
	}

	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	inviteRepo := repositories.NewInvitationRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLog := audit.NewLogger(db)
	analyzer := ai.NewAnalyzer(nil)

	deps := &api.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(orgRepo, userRepo, membershipRepo, settingsRepo, tokenSvc),
		OrgHandler:        handlers.NewOrgHandler(orgRepo, userRepo, membershipRepo, auditLog),
		InviteHandler:     handlers.NewInviteHandler(inviteRepo, userRepo, membershipRepo, orgRepo, tokenSvc, auditLog, cfg.Invites),
		SettingsHandler:   handlers.NewSettingsHandler(settingsRepo, secretStore, auditLog),
		CompanyHandler:    handlers.NewCompanyHandler(auditLog),
		ContactHandler:    handlers.NewContactHandler(auditLog),
		ProgramHandler:    handlers.NewProgramHandler(auditLog),
		CommitmentHandler: handlers.NewCommitmentHandler(auditLog),
		MilestoneHandler:  handlers.NewMilestoneHandler(auditLog),
		MeetingHandler:    handlers.NewMeetingHandler(settingsRepo, secretStore, analyzer, auditLog, cfg.Fireflies),
		AuditHandler:      handlers.NewAuditHandler(auditLog),
		HealthHandler:     handlers.NewHealthHandler(db),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware:  middleware.NewTenantMiddleware(orgRepo, settingsRepo, db),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
