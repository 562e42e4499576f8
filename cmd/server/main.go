package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountrepo "identity-gateway/internal/account/repository"
	"identity-gateway/internal/auth"
	challengerepo "identity-gateway/internal/challenge/repository"
	"identity-gateway/internal/config"
	"identity-gateway/internal/db"
	"identity-gateway/internal/email"
	"identity-gateway/internal/logging"
	"identity-gateway/internal/profile"
	"identity-gateway/internal/security"
	"identity-gateway/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenLifetime(), cfg.EmailTokenLifetime())

	var profiles profile.Creator
	if cfg.ProfileAPIURL != "" {
		profiles = profile.NewClient(cfg.ProfileAPIURL)
	}

	svc := auth.NewService(
		accountrepo.NewPostgresRepository(database),
		challengerepo.NewPostgresRepository(database),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		security.NewTOTPVerifier(cfg.TOTPIssuer, cfg.TOTPSkew),
		auth.LockoutPolicy{
			Enabled:     cfg.LockoutOnFailure,
			MaxAttempts: cfg.MaxFailedAccessAttempts,
			Span:        cfg.LockoutSpan(),
		},
		email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		profiles,
		email.Address{Name: cfg.EmailFromName, Address: cfg.EmailFromAddress},
		cfg.AppOrigin,
		cfg.ChallengeTTL(),
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(svc, logger, database.PingContext).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
