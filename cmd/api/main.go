package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kset/verifikator/internal/application/roster"
	"github.com/kset/verifikator/internal/application/verification"
	"github.com/kset/verifikator/internal/config"
	"github.com/kset/verifikator/internal/infrastructure/dynamo"
	googleinfra "github.com/kset/verifikator/internal/infrastructure/google"
	jwtinfra "github.com/kset/verifikator/internal/infrastructure/jwt"
	"github.com/kset/verifikator/internal/infrastructure/memstore"
	"github.com/kset/verifikator/internal/infrastructure/sheets"
	"github.com/kset/verifikator/internal/infrastructure/smtp"
	snsinfra "github.com/kset/verifikator/internal/infrastructure/sns"
	transporthttp "github.com/kset/verifikator/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Roster source + cache. The initial load is best-effort: a failed
	// fetch leaves the cache unavailable until the next refresh, it does
	// not prevent startup.
	source, err := sheets.NewSource(ctx, cfg)
	if err != nil {
		log.Fatalf("roster source: %v", err)
	}
	cache, err := roster.NewCache(source, cfg.CacheRefreshCutoff)
	if err != nil {
		log.Fatalf("roster cache: %v", err)
	}
	if _, err := cache.Refresh(ctx, true); err != nil {
		log.Printf("WARN: initial roster load failed: %v", err)
	}

	// Verification store: in-memory by default, DynamoDB when configured.
	var attempts verification.AttemptRepository
	switch cfg.StoreBackend {
	case "dynamo":
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, client, cfg.DynamoAttemptsTable)
		attempts = dynamo.NewAttemptRepo(client, cfg.DynamoAttemptsTable)
	default:
		attempts = memstore.NewAttemptRepo()
	}

	deps := &transporthttp.Deps{
		Attempts:  attempts,
		Roster:    cache,
		Exchanger: googleinfra.NewExchanger(cfg),
		Mailer:    smtp.NewMailer(cfg),
	}

	// SNS publisher, optional with graceful fallback.
	if publisher, err := snsinfra.NewPublisher(cfg); err == nil {
		deps.Publisher = publisher
	} else {
		log.Printf("WARN: SNS publisher not available: %v", err)
	}

	// Receipt signer, optional with graceful fallback if keys are missing.
	if signer, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.Receipts = signer
	} else {
		log.Printf("WARN: receipt signer not available: %v", err)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
