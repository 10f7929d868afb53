package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feargreed/config"
	"feargreed/internal/fng/aggregator"
	"feargreed/internal/fng/freshness"
	"feargreed/internal/fng/memorystore"
	"feargreed/internal/fng/refresh"
	"feargreed/internal/fng/server"
	"feargreed/internal/fng/trigger"
	"feargreed/logger"
	"feargreed/pkg/sources"
	"feargreed/pkg/storage/history"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional outside local dev
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	// viper config
	cfg := config.Load()

	// zap logger
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer zlog.Sync()

	if cfg.Log.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// upstream sources, fixed order
	agg := aggregator.New(zlog,
		sources.NewAlternative(cfg.Sources.Alternative.URL, cfg.Sources.Timeout, zlog),
		sources.NewCoinMarketCap(cfg.Sources.CMC.URL, cfg.Sources.CMC.APIKey, cfg.Sources.Timeout, zlog),
		sources.NewCoinStats(cfg.Sources.CoinStats.URL, cfg.Sources.CoinStats.APIKey, cfg.Sources.Timeout, zlog),
	)

	if cfg.Store.CreateDatabase {
		if err := history.CreateDatabase(cfg.Store, cfg.Log.Environment); err != nil {
			zlog.Fatal("failed to create database", zap.Error(err))
		}
	}

	// connects lazily; a missing store URL surfaces on first use
	store := history.New(cfg.Store, cfg.Log.Environment, zlog)
	defer store.Close()

	refresher := refresh.NewService(agg, store, zlog)
	controller := freshness.NewController(memorystore.NewPayloadCache(), store, refresher,
		freshness.WithTTL(cfg.Cache.MemoryTTL, cfg.Cache.DurableTTL),
		freshness.WithLogger(zlog),
	)

	trig := trigger.New(cfg.Scheduler, cfg.Server.Addr, zlog)
	if cfg.Scheduler.Enabled {
		sched := &trigger.Scheduler{Trigger: trig, Every: time.Hour, Logger: zlog}
		sched.Start(ctx)
		zlog.Info("hourly refresh scheduler started")
	}

	srv := server.New(server.Options{
		Addr:                cfg.Server.Addr,
		StreamInterval:      cfg.Stream.Interval,
		StreamWriteTimeout:  cfg.Stream.WriteTimeout,
		ShutdownGracePeriod: cfg.Server.ShutdownTimeout,
	}, controller, refresher, store, trig, zlog)

	if err := srv.Start(ctx); err != nil {
		zlog.Fatal("http server failed", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}
