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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/engine"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/intents"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/market"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/publisher"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/scheduler"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/stats"
	"github.com/shubham-shewale/crypto-monitor/pkg/config"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
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

	seeds, err := cfg.Assets()
	if err != nil {
		logger.Fatal("Invalid asset list", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 1. Topic
	tc := publisher.NewTopicCreator(logger, &publisher.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 5 * time.Second}}, publisher.RealClock{})
	tc.Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// 2. Kafka writer. Keys are asset ids, so each asset keeps its order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	}
	sink := publisher.NewKafkaSink(logger, writer)

	// 3. Market source: local proxy first, then the public API
	var src market.Source = market.NewClient(logger, market.NewHTTPClient(cfg.Market.Timeout), cfg.Market.PrimaryURL, cfg.Market.FallbackURL)

	simCfg := engine.DefaultSimulationConfig()
	simCfg.Interval = cfg.Feed.SimInterval
	simCfg.Quote = cfg.Market.Quote
	simCfg.KlineInterval = cfg.Market.KlineInterval
	var simSource market.Source
	if cfg.Feed.Hydrate {
		simSource = src
	}

	liveCfg := engine.LiveConfig{
		Interval:      cfg.Feed.LiveInterval,
		Quote:         cfg.Market.Quote,
		KlineInterval: cfg.Market.KlineInterval,
		KlineLimit:    cfg.Market.KlineLimit,
	}

	factories := map[string]scheduler.EngineFactory{
		models.ModeSimulation: func(seeds []models.Asset) *engine.Engine {
			return engine.New(engine.NewSimulation(logger, simCfg, engine.NewRealRand(), simSource), seeds)
		},
		models.ModeLive: func(seeds []models.Asset) *engine.Engine {
			return engine.New(engine.NewLive(logger, liveCfg, src), seeds)
		},
	}

	// 4. Stats worker
	worker := stats.NewWorker(logger)
	go worker.Run(ctx)

	// 5. Scheduler
	sched, err := scheduler.New(scheduler.Options{
		Mode:     cfg.Feed.Mode,
		Seeds:    seeds,
		Observer: scheduler.LogObserver{Logger: logger},
		Metrics:  scheduler.NewMetrics(prometheus.DefaultRegisterer),
	}, logger, factories, worker, sink, publisher.RealClock{})
	if err != nil {
		logger.Fatal("Failed to build scheduler", zap.Error(err))
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			logger.Error("Scheduler Error", zap.Error(err))
		}
	}()

	// 6. Intents from the gateway. Redis is optional: without it the feed
	// still runs with the configured mode and no thresholds.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, intents disabled", zap.Error(err))
	} else {
		listener := intents.NewListener(logger, rdb, sched)
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("Intent listener stopped", zap.Error(err))
			}
		}()
	}

	// 7. Metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Feed.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", cfg.Feed.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Feed Started",
		zap.String("mode", cfg.Feed.Mode),
		zap.Int("assets", len(seeds)),
		zap.Strings("brokers", cfg.Kafka.Brokers))

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
	<-schedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	// Flush buffered Kafka batches
	if err := sink.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
	rdb.Close()

	logger.Info("Feed exited cleanly")
}
