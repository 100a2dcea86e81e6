// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package config loads and validates the worker service configuration.
//
// Configuration is layered with koanf: struct defaults first, then an
// optional YAML file, then environment variables with the RESONATE_
// prefix (highest priority). RESONATE_NATS_URL overrides nats.url,
// RESONATE_PERSONALIZATION_CACHE_TTL overrides personalization.cache_ttl,
// and so on.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/resonatefm/resonate/internal/cache"
	"github.com/resonatefm/resonate/internal/embedder"
	"github.com/resonatefm/resonate/internal/handler"
	"github.com/resonatefm/resonate/internal/logging"
	"github.com/resonatefm/resonate/internal/objectstore"
	"github.com/resonatefm/resonate/internal/ops"
	"github.com/resonatefm/resonate/internal/queue"
	"github.com/resonatefm/resonate/internal/repository/pgdb"
	"github.com/resonatefm/resonate/internal/supervisor"
	"github.com/resonatefm/resonate/internal/worker"
)

// QueueNames binds the three consumed queues to their producer-side
// names. They are part of the producer contract and rarely change.
type QueueNames struct {
	Embedding       string `koanf:"embedding" validate:"required"`
	Personalization string `koanf:"personalization" validate:"required"`
	SonicEmbedding  string `koanf:"sonic_embedding" validate:"required"`
}

// Config is the root configuration for the worker service.
type Config struct {
	Logging         logging.Config          `koanf:"logging"`
	NATS            queue.NATSConfig        `koanf:"nats"`
	Queues          QueueNames              `koanf:"queues"`
	Postgres        pgdb.PoolConfig         `koanf:"postgres"`
	Redis           cache.RedisConfig       `koanf:"redis"`
	Storage         objectstore.MinioConfig `koanf:"storage"`
	Embedder        embedder.HTTPConfig     `koanf:"embedder"`
	Worker          worker.Config           `koanf:"worker"`
	Personalization handler.ForYouConfig    `koanf:"personalization"`
	Ops             ops.Config              `koanf:"ops"`
	Supervisor      supervisor.TreeConfig   `koanf:"supervisor"`
}

// defaultConfig returns a Config with all defaults applied. These are
// layered under the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		NATS:    queue.DefaultNATSConfig(""),
		Queues: QueueNames{
			Embedding:       "embedding",
			Personalization: "personalization",
			SonicEmbedding:  "sonic-embedding",
		},
		Postgres: pgdb.DefaultPoolConfig(),
		Redis:    cache.DefaultRedisConfig(),
		Storage: objectstore.MinioConfig{
			Endpoint: "127.0.0.1:9000",
			Bucket:   "resonate-audio",
		},
		Embedder:        embedder.DefaultHTTPConfig(),
		Worker:          worker.DefaultConfig(),
		Personalization: handler.DefaultForYouConfig(),
		Ops:             ops.DefaultConfig(),
		Supervisor:      supervisor.DefaultTreeConfig(),
	}
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Personalization.CacheTTL <= 0 {
		return fmt.Errorf("config validation: personalization.cache_ttl must be positive")
	}
	if c.Personalization.RecentCacheTTL <= 0 {
		return fmt.Errorf("config validation: personalization.recent_cache_ttl must be positive")
	}
	// The recent variant tracks a fast-changing in-session signal and
	// must expire before the general variant.
	if c.Personalization.RecentCacheTTL >= c.Personalization.CacheTTL {
		return fmt.Errorf("config validation: personalization.recent_cache_ttl (%s) must be shorter than cache_ttl (%s)",
			c.Personalization.RecentCacheTTL, c.Personalization.CacheTTL)
	}

	if c.Personalization.DecayBase <= 0 || c.Personalization.DecayBase > 1 {
		return fmt.Errorf("config validation: personalization.decay_base must be in (0, 1], got %g",
			c.Personalization.DecayBase)
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("config validation: worker.concurrency must be positive")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("config validation: storage.bucket is required")
	}

	return nil
}
