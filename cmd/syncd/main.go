package main

// Package main is the entry point for the record sync daemon.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Open the SQLite persistence medium shared by the cache and record store
//   - Start the sync orchestrator with its background auto-sync loop
//   - Serve the localhost status API (REST + websocket + metrics)
//   - Implement graceful shutdown: stop the ticker, wait for the in-flight
//     sync, drain the HTTP server, close the store, flush logs

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/api"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/auth"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/cache"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/cloudsync"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/config"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/logging"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/remote"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/storage"
)

func main() {
	configPath := flag.String("config", os.ExpandEnv("$HOME/.rei/syncd.yaml"), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "syncd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	mgr := config.NewManager(configPath)
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	cfg := mgr.Get(ctx)

	log, logLevel, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	blobs, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer blobs.Close()

	cacheEngine := cache.New(blobs, log,
		cache.WithQuota(int64(cfg.Cache.QuotaMB)*1024*1024),
		cache.WithDefaultTTL(time.Duration(cfg.Cache.DefaultTTLDays)*24*time.Hour),
		cache.WithCleanupInterval(time.Duration(cfg.Cache.CleanupIntervalHours)*time.Hour))
	cacheEngine.Cleanup(ctx)

	records := record.NewStore(blobs, log)
	session := auth.NewSessionFile(cfg.Cloud.SessionTokenPath)
	cloud := remote.NewHTTPStore(cfg.Cloud.BaseURL,
		time.Duration(cfg.Cloud.TimeoutSeconds)*time.Second, session, log)

	hub := api.NewHub(log)
	syncer := cloudsync.NewSyncer(records, cloud, log)
	orch := cloudsync.NewOrchestrator(ctx, syncer, log,
		cloudsync.WithTimeout(time.Duration(cfg.Sync.TimeoutSeconds)*time.Second),
		cloudsync.WithNotifier(hub.Broadcast))

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	loopDone := make(chan struct{})
	if cfg.Sync.AutoIntervalSeconds > 0 {
		go func() {
			defer close(loopDone)
			orch.Run(loopCtx, time.Duration(cfg.Sync.AutoIntervalSeconds)*time.Second)
		}()
	} else {
		close(loopDone)
		log.Info("auto-sync disabled, manual trigger only")
	}

	// Live reload: log level and auto-sync interval follow config file edits.
	watchCh := mgr.Watch(ctx)
	go func() {
		for newCfg := range watchCh {
			if lvl, lerr := zapcore.ParseLevel(newCfg.Logging.Level); lerr == nil {
				logLevel.SetLevel(lvl)
			}
			orch.SetInterval(time.Duration(newCfg.Sync.AutoIntervalSeconds) * time.Second)
			log.Info("configuration reloaded",
				zap.String("log_level", newCfg.Logging.Level),
				zap.Int("sync_interval_seconds", newCfg.Sync.AutoIntervalSeconds))
		}
	}()

	srv := api.NewServer(cfg.Server.Port, orch, syncer, records, hub, log)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("status api: %w", err)
		}
	}

	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("status api shutdown", zap.Error(err))
	}
	if err := cacheEngine.Close(); err != nil {
		log.Warn("cache close", zap.Error(err))
	}

	log.Info("shutdown complete")
	return nil
}
