package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"homebase/api/internal/ai"
	"homebase/api/internal/app"
	"homebase/api/internal/authpw"
	"homebase/api/internal/config"
	"homebase/api/internal/email"
	"homebase/api/internal/export"
	"homebase/api/internal/media"
	"homebase/api/internal/revisions"
	"homebase/api/internal/search"
	"homebase/api/internal/session"
	"homebase/api/internal/sms"
	"homebase/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	objectStore, err := media.NewObjectStore(ctx, media.ObjectStoreConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object store connection failed: %v", err)
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}
	searchService.ReindexAllFromPG(ctx)

	smsClient := sms.NewClient(sms.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
	})
	aiClient := ai.NewClient(ai.Config{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
	})
	mailService := email.NewService(email.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		FromName:  cfg.SMTPFromName,
		EnableTLS: true,
	})

	deps := app.Dependencies{
		Auth:      authpw.NewService(dataStore),
		Email:     mailService,
		SMS:       smsClient,
		AI:        aiClient,
		Search:    searchService,
		Media:     objectStore,
		Revisions: revisions.New(cfg.ReposDir),
		Export:    export.NewService(dataStore),
	}

	// Refresh tokens live in Redis when it is reachable; otherwise the
	// refresh_sessions table serves the same interface.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, falling back to postgres refresh sessions: %v", err)
			deps.Sessions = dataStore
		} else {
			defer redisStore.Close()
			deps.Sessions = redisStore
		}
	} else {
		deps.Sessions = dataStore
	}

	service := app.New(cfg, dataStore, deps)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Homebase API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
