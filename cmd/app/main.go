package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"counseling-platform/internal/config"
	pg "counseling-platform/internal/infra/db/postgres"
	"counseling-platform/internal/infra/logging"
	"counseling-platform/internal/infra/metrics"
	red "counseling-platform/internal/infra/redis"
	"counseling-platform/internal/infra/web"
	"counseling-platform/internal/infra/ws"
	"counseling-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	chatCache := red.NewChatCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	chatRepo := pg.NewChatRepo(pool, chatCache)
	messageRepo := pg.NewMessageRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	walletRepo := pg.NewWalletRepo(pool)

	// ---- Use cases ----
	billingUC := usecase.NewBillingUseCase(txManager, chatRepo, walletRepo, cfg.Billing.RatePerMinute, logger)
	chatUC := usecase.NewChatUseCase(txManager, chatRepo, messageRepo, userRepo, walletRepo, billingUC, cfg.Billing.RatePerMinute, logger)
	walletUC := usecase.NewWalletUseCase(walletRepo, logger)

	// ---- Transport ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, auth, chatUC, rateLimiter, cfg.Chat.MessagesPerMinute, logger)
	server := web.NewServer(chatUC, walletUC, billingUC, auth, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(wsHandler),
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
