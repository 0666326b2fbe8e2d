// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Command server runs the Pressrank personalization engine: a local-first
// preference store, hybrid ranker, and artifact cache behind an HTTP API,
// with optional remote mirroring and model downloads.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressrank/pressrank/internal/api"
	"github.com/pressrank/pressrank/internal/config"
	"github.com/pressrank/pressrank/internal/logging"
	"github.com/pressrank/pressrank/internal/personalize"
	"github.com/pressrank/pressrank/internal/personalize/artifact"
	"github.com/pressrank/pressrank/internal/remote"
	"github.com/pressrank/pressrank/internal/storage"
	"github.com/pressrank/pressrank/internal/supervisor"
	"github.com/pressrank/pressrank/internal/supervisor/services"
	"github.com/pressrank/pressrank/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("storage_path", cfg.Storage.Path).
		Bool("remote_enabled", cfg.Remote.Enabled).
		Bool("artifact_blend", cfg.Ranker.UseArtifactBlend).
		Msg("Starting Pressrank")

	store, err := storage.Open(storage.Options{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
	}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close local store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Remote services are optional; without them the engine runs fully
	// local with rule-based ranking only.
	var (
		cache      *artifact.Cache
		prefMirror personalize.RemoteMirror
	)
	if cfg.Remote.Enabled {
		client := remote.NewClient(remote.ClientConfig{
			BaseURL:           cfg.Remote.BaseURL,
			Timeout:           cfg.Remote.Timeout,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
			Burst:             cfg.Remote.Burst,
		})
		prefMirror = remote.NewPreferenceClient(client)
		cache = artifact.NewCache(store, remote.NewArtifactClient(client), logger)
		logging.Info().Str("base_url", cfg.Remote.BaseURL).Msg("Remote services enabled")
	}

	storeOpts := []personalize.StoreOption{}
	if prefMirror != nil {
		storeOpts = append(storeOpts, personalize.WithRemoteMirror(prefMirror))
	}
	if len(cfg.Personalize.KnownCategories) > 0 {
		categories := make([]personalize.CategoryID, 0, len(cfg.Personalize.KnownCategories))
		for _, c := range cfg.Personalize.KnownCategories {
			categories = append(categories, personalize.CategoryID(c))
		}
		storeOpts = append(storeOpts, personalize.WithKnownCategories(categories))
	}

	// The sync bus connects the preference store to the background worker
	// pushing snapshots to the remote mirror.
	var syncWorker *syncer.Worker
	if cfg.Sync.Enabled && prefMirror != nil {
		bus := syncer.NewBus(logger)
		storeOpts = append(storeOpts, personalize.WithSyncPublisher(syncer.NewPublisher(bus, logger)))
		syncWorker = syncer.NewWorker(bus, prefMirror, cfg.Sync.PushTimeout, logger)
	}

	prefs := personalize.NewStore(store, logger, storeOpts...)
	scorer := personalize.NewScorer(cfg.Personalize.RNGSeed)

	ranker, err := personalize.NewRanker(prefs, scorer, cache, personalize.RankerConfig{
		UseArtifactBlend: cfg.Ranker.UseArtifactBlend,
		RecencyHalfLife:  cfg.Ranker.RecencyHalfLife,
		Default:          blendWeights(cfg.Ranker.Default),
		RuleHeavy:        blendWeights(cfg.Ranker.RuleHeavy),
	}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ranker")
	}
	if err := ranker.Initialize(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ranker")
	}

	handler := api.NewHandler(prefs, ranker, cache, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		CORSOrigins:     cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), treeCfg)

	if syncWorker != nil {
		tree.AddBackgroundService(syncWorker)
		logging.Info().Msg("Preference sync worker added")
	}
	if cache != nil {
		tree.AddBackgroundService(services.NewArtifactRefreshService(
			ranker, cache, cfg.Artifact.RefreshInterval, cfg.Artifact.RefreshOnStartup, logger))
		logging.Info().Dur("interval", cfg.Artifact.RefreshInterval).Msg("Artifact refresh service added")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Pressrank stopped")
}

// blendWeights converts a config weight profile to the ranker's type.
func blendWeights(w config.WeightsConfig) personalize.BlendWeights {
	return personalize.BlendWeights{
		Artifact: w.Artifact,
		Local:    w.Local,
		Recency:  w.Recency,
		Trending: w.Trending,
	}
}
