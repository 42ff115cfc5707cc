package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/social-enrichment/internal/config"
	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/events"
	"github.com/blackmichael/social-enrichment/internal/httpserver"
	"github.com/blackmichael/social-enrichment/internal/instagram"
	"github.com/blackmichael/social-enrichment/internal/integration"
	"github.com/blackmichael/social-enrichment/internal/logging"
	"github.com/blackmichael/social-enrichment/internal/rediscache"
	"github.com/blackmichael/social-enrichment/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Init(logging.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "social-enrichment",
	})

	// Set up repository (implements CacheStore, CachePruner and CursorRepository)
	repo, err := store.NewRepository(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(context.Background()); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("connected to database")

	var cacheStore domain.CacheStore = repo
	var pruner domain.CachePruner = repo
	if cfg.Redis.Address != "" {
		rc, err := rediscache.New(rediscache.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		}, repo)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()
		cacheStore = rc
		pruner = rc
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	registry := integration.NewRegistry(
		instagram.NewIntegration(instagram.NewClient(cfg.Instagram.APIBase, cfg.Instagram.AccessToken)),
	)
	service := domain.NewEnrichmentService(registry, cacheStore, repo, cfg.BatchWorkers)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.LeadEventsURL != "" {
		subscriber := events.NewSubscriber(cfg.LeadEventsURL, service, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("lead event subscriber exited with error")
			}
		}()
	}

	go service.StartPruneJob(ctx, pruner, cfg.PruneInterval, cfg.CacheMaxAge)

	server := httpserver.NewServer(cfg.Port, service, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server exited with error")
		}
	}()

	logger.Info().Int("port", cfg.Port).Msg("server started")

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("error shutting down http server")
	}

	return nil
}
