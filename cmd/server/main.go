package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/avatarctic/tenancy-engine/configs"
	"github.com/avatarctic/tenancy-engine/internal/bootstrap"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := bootstrap.NewLogger(cfg.Log)
	logger.Info("Starting tenancy engine...")

	database, redisClient, err := bootstrap.Connect(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect backends:", err)
	}

	engine, err := bootstrap.New(cfg, logger, database, redisClient)
	if err != nil {
		logger.Fatal("Failed to wire engine:", err)
	}
	defer engine.Close()

	// Run migrations
	if err := engine.Migrate(); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	engine.Sweeper.Start()

	serverConfig := &httpserver.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Environment:      cfg.Server.Environment,
		DefaultInviteTTL: cfg.Invite.DefaultTTL,
	}

	deps := httpserver.ServerDeps{
		InviteService:     engine.Invites,
		RevocationService: engine.Revocations,
		PropertyService:   engine.Properties,
		AuditService:      engine.Audit,
		IdentityService:   engine.Identity,
		HealthCheckers:    engine.HealthCheckers,
		Validator:         engine.Validator,
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
