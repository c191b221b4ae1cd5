// Package main provides the entry point for the encurtador URL shortener
// service.
package main

import (
	"context"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/admin"
	"github.com/julioborgesigt/encurtador/internal/auth"
	"github.com/julioborgesigt/encurtador/internal/clicks"
	"github.com/julioborgesigt/encurtador/internal/config"
	"github.com/julioborgesigt/encurtador/internal/database"
	httpHandler "github.com/julioborgesigt/encurtador/internal/handler/http"
	"github.com/julioborgesigt/encurtador/internal/repository/postgres"
	"github.com/julioborgesigt/encurtador/internal/service"
	"github.com/julioborgesigt/encurtador/internal/sweep"
	"github.com/julioborgesigt/encurtador/pkg/logger"
	"github.com/julioborgesigt/encurtador/pkg/useragent"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting encurtador service", zap.String("env", cfg.Env))

	// Database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	// User-Agent parser for redirect log enrichment; the keyword fallback
	// covers us when the regexes file is missing.
	if err := useragent.InitGlobalParser("assets/regexes.yaml", log); err != nil {
		log.Warn("failed to initialize User-Agent parser, using fallback", zap.Error(err))
	}

	// Storage, click processor and core service
	storage := postgres.New(db, log)

	clickProcessor := clicks.NewProcessor(storage, log, clicks.DefaultConfig())
	if err := clickProcessor.Start(); err != nil {
		log.Fatal("failed to start click processor", zap.Error(err))
	}

	shortener := service.NewShortener(storage, clickProcessor, cfg, log)
	adminService := admin.NewService(db, log)

	// Expired-link sweep
	sweeper := sweep.New(storage, cfg.Sweep.Schedule, log)
	if cfg.Sweep.Enabled {
		if err := sweeper.Start(); err != nil {
			log.Fatal("failed to start expired-link sweep", zap.Error(err))
		}
	}

	// Authentication
	tokenTTL, err := time.ParseDuration(cfg.Auth.TokenTTL)
	if err != nil {
		log.Warn("failed to parse token_ttl, using default 168h", zap.Error(err))
		tokenTTL = 168 * time.Hour
	}
	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  tokenTTL,
		Issuer:    "encurtador",
	})
	googleService := auth.NewGoogleService(auth.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		CallbackURL:  cfg.Auth.GoogleCallbackURL,
	}, storage, log)
	authMiddleware := auth.NewMiddleware(jwtService, cfg.Auth.AdminEmails, log)

	// HTTP server
	secureCookies := cfg.Env == "production"
	apiServer := httpHandler.NewServer(
		storage,
		shortener,
		adminService,
		sweeper,
		googleService,
		jwtService,
		authMiddleware,
		secureCookies,
		cfg.Shortener.BaseURL,
		log,
	)

	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  parseDurationOr(cfg.HTTPServer.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDurationOr(cfg.HTTPServer.WriteTimeout, 30*time.Second),
		IdleTimeout:  parseDurationOr(cfg.HTTPServer.IdleTimeout, 60*time.Second),
	}

	go func() {
		log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down encurtador service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if cfg.Sweep.Enabled {
		sweeper.Stop()
	}

	if err := clickProcessor.Stop(); err != nil {
		log.Error("failed to stop click processor", zap.Error(err))
	}
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
