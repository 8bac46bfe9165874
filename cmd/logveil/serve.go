package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/cache"
	"github.com/logveil/logveil/internal/server"
	"github.com/logveil/logveil/internal/version"
)

var flagPort int

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sanitization HTTP service",
		RunE:  runServe,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().IntVar(&flagPort, "port", 0, "listen port (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagPort > 0 {
		cfg.Server.Port = flagPort
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting logveil",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("port", cfg.Server.Port),
	)

	manager, store, err := buildProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// The result cache is optional; the service degrades to engine-only
	// operation when Redis is unreachable at startup.
	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache, err = cache.NewResultCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache"))
		if err != nil {
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
			resultCache = nil
		}
	}

	srv := server.New(cfg, log, store, manager, resultCache)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Graceful shutdown failed", zap.Error(err))
			return err
		}
	}

	log.Info("Logveil stopped")
	return nil
}
