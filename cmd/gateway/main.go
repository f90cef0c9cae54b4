package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/api"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/crypto-monitor/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	assets, err := cfg.Assets()
	if err != nil {
		logger.Fatal("Invalid asset list", zap.Error(err))
	}
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo := repository.NewRedisStore(rdb)

	// Dependency Injection: Hub depends on the Repository Interface
	wsHub := hub.NewHub(repo, logger)

	var limiter repository.RateLimiter
	if cfg.Gateway.RateLimit > 0 {
		limiter = repository.NewRedisRateLimiter(rdb, cfg.Gateway.RateLimit, time.Minute)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.NewUpgradeHandler(wsHub, limiter, logger, cfg.AssetIDs()))
	mux.Handle("/api/assets", api.NewHandler(repo, ids, cfg.Market.Quote, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		clients, upstream := wsHub.Stats()
		fmt.Fprintf(w, "ok clients=%d upstream=%d\n", clients, upstream)
	})

	srv := &http.Server{Addr: cfg.Gateway.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.Gateway.Port), zap.Int("assets", len(ids)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := repo.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
