// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package main is the entry point for the Resonate worker service.
//
// The service consumes three NATS JetStream queues produced by the
// catalog API: "embedding" (metadata embeddings for tracks, albums,
// artists, users, playlists and search queries), "personalization"
// (per-user vector derivation), and "sonic-embedding" (audio feature
// extraction). Each queue is driven by one bounded-concurrency worker
// pool under a suture supervision tree, alongside an ops listener that
// serves /healthz and Prometheus /metrics.
//
// Configuration is loaded via koanf with layered sources (highest
// priority wins): RESONATE_-prefixed environment variables, an optional
// YAML config file (CONFIG_PATH or ./config.yaml), built-in defaults.
//
// The service shuts down gracefully on SIGINT and SIGTERM: pools stop
// fetching, in-flight jobs drain to completion, then connections close.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/resonatefm/resonate/internal/cache"
	"github.com/resonatefm/resonate/internal/config"
	"github.com/resonatefm/resonate/internal/dispatch"
	"github.com/resonatefm/resonate/internal/embedder"
	"github.com/resonatefm/resonate/internal/handler"
	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/logging"
	"github.com/resonatefm/resonate/internal/objectstore"
	"github.com/resonatefm/resonate/internal/ops"
	"github.com/resonatefm/resonate/internal/queue"
	"github.com/resonatefm/resonate/internal/repository/pgdb"
	"github.com/resonatefm/resonate/internal/supervisor"
	"github.com/resonatefm/resonate/internal/worker"
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
	log := logging.Logger()

	logging.Info().
		Str("nats_url", cfg.NATS.URL).
		Str("embedder_url", cfg.Embedder.BaseURL).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Msg("Starting Resonate workers")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: catalog reads and embedding writes.
	pool, err := pgdb.NewPool(ctx, cfg.Postgres)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	catalog := pgdb.NewCatalogRepo(pool)
	history := pgdb.NewHistoryRepo(pool)

	// Cache: Redis in production, in-memory fallback when disabled.
	var resultCache cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis connection")
			}
		}()
		resultCache = redisCache
	} else {
		memCache := cache.NewMemory(cfg.Redis.DefaultTTL, 0)
		defer memCache.Close()
		resultCache = memCache
		logging.Warn().Msg("Redis disabled, using in-memory result cache")
	}

	store, err := objectstore.NewMinio(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to object storage")
	}

	emb := embedder.NewHTTPClient(cfg.Embedder, log)

	// Handlers and per-queue dispatchers.
	embedHandlers := handler.NewEmbeddingHandlers(catalog, emb, log)
	audioHandler := handler.NewAudioHandler(catalog, store, emb, cfg.Storage.Bucket, log)
	personalization := handler.NewPersonalizationHandler(history, resultCache, cfg.Personalization, log)

	embeddingDispatcher := dispatch.New(cfg.Queues.Embedding, log).
		Register(job.TypeTrack, dispatch.HandlerFunc(embedHandlers.Track)).
		Register(job.TypeTrackAudio, dispatch.HandlerFunc(audioHandler.TrackAudio)).
		Register(job.TypeAlbum, dispatch.HandlerFunc(embedHandlers.Album)).
		Register(job.TypeArtist, dispatch.HandlerFunc(embedHandlers.Artist)).
		Register(job.TypeUserPref, dispatch.HandlerFunc(embedHandlers.UserPreference)).
		Register(job.TypePlaylist, dispatch.HandlerFunc(embedHandlers.Playlist)).
		Register(job.TypeSearchQuery, dispatch.HandlerFunc(embedHandlers.SearchQuery))

	personalizationDispatcher := dispatch.New(cfg.Queues.Personalization, log).
		Register(job.TypeForYou, dispatch.HandlerFunc(personalization.ForYou)).
		Register(job.TypeTrendingNow, dispatch.HandlerFunc(personalization.Trending)).
		Allow(job.TypeNewReleases).
		Allow(job.TypeRecommendedForYou).
		Allow(job.TypeNextPlaylist)

	sonicDispatcher := dispatch.New(cfg.Queues.SonicEmbedding, log).
		Register(job.TypeTrackAudio, dispatch.HandlerFunc(audioHandler.TrackAudio))

	// Queue sources: one JetStream consumer per queue.
	dispatchers := []struct {
		queueName  string
		dispatcher *dispatch.Dispatcher
	}{
		{cfg.Queues.Embedding, embeddingDispatcher},
		{cfg.Queues.Personalization, personalizationDispatcher},
		{cfg.Queues.SonicEmbedding, sonicDispatcher},
	}

	slogLogger := slog.New(logging.NewSlogHandlerWithLogger(log))
	tree := supervisor.NewTree(slogLogger, cfg.Supervisor)

	queueLogger := queue.NewZerologAdapter(log)
	for _, d := range dispatchers {
		natsCfg := cfg.NATS
		natsCfg.Queue = d.queueName
		source, err := queue.NewNATSSource(ctx, natsCfg, queueLogger)
		if err != nil {
			logging.Fatal().Err(err).Str("queue", d.queueName).Msg("Failed to create queue source")
		}
		tree.AddWorker(worker.NewPool(source, d.dispatcher, cfg.Worker, log))
	}

	tree.AddOps(ops.NewServer(cfg.Ops, log))

	logging.Info().Msg("Supervision tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervision tree terminated")
	}

	logging.Info().Msg("Shutdown complete")
}
