package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbackend/internal/config"
	"chatbackend/internal/httpserver"
	"chatbackend/internal/identity"
	"chatbackend/internal/security"
	"chatbackend/internal/service"
	"chatbackend/internal/store/mongo"
	"chatbackend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		log.Fatalf("failed to open database: %v", err)
	}
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		cancel()
		log.Fatalf("failed to ensure indexes: %v", err)
	}
	cancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Client().Disconnect(ctx)
	}()

	// Repositories
	userRepo := mongo.NewUserRepo(db)
	chatRepo := mongo.NewChatRepo(db)
	msgRepo := mongo.NewMessageRepo(db)

	// Identity: local tokens always, provider verification when configured.
	tokenSvc := identity.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	verifiers := []identity.Verifier{}
	if cfg.ProviderPublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.ProviderPublicKeyFile)
		if err != nil {
			log.Fatalf("failed to read provider public key: %v", err)
		}
		provider, err := identity.NewProviderVerifier(pem, cfg.ProviderIssuer)
		if err != nil {
			log.Fatalf("failed to initialize provider verifier: %v", err)
		}
		verifiers = append(verifiers, provider)
	}
	verifiers = append(verifiers, tokenSvc)
	resolver := identity.NewResolver(userRepo, verifiers...)

	// Realtime layer
	registry := ws.NewRegistry()
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, registry, userRepo, cfg.CORSOrigins)
	coordinator := ws.NewCoordinator(hub)

	// Services
	hasher := security.NewPasswordHasher(0)
	authSvc := service.NewAuthService(userRepo, tokenSvc, hasher)
	userSvc := service.NewUserService(userRepo, coordinator)
	chatSvc := service.NewChatService(chatRepo, userRepo, coordinator)
	msgSvc := service.NewMessageService(chatRepo, msgRepo, coordinator)

	router := httpserver.NewRouter(httpserver.Deps{
		Cfg:      cfg,
		Resolver: resolver,
		Gateway:  gateway,
		Auth:     authSvc,
		Users:    userSvc,
		Chats:    chatSvc,
		Messages: msgSvc,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting %s on %s\n", cfg.AppName, cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
