// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Queues.Embedding != "embedding" ||
		cfg.Queues.Personalization != "personalization" ||
		cfg.Queues.SonicEmbedding != "sonic-embedding" {
		t.Errorf("queue names = %+v, want producer defaults", cfg.Queues)
	}
	if cfg.Worker.Concurrency != 5 {
		t.Errorf("worker concurrency = %d, want 5", cfg.Worker.Concurrency)
	}
	if cfg.Personalization.RecentCacheTTL >= cfg.Personalization.CacheTTL {
		t.Errorf("recent TTL %v not shorter than general TTL %v",
			cfg.Personalization.RecentCacheTTL, cfg.Personalization.CacheTTL)
	}
	if cfg.Storage.Bucket != "resonate-audio" {
		t.Errorf("storage bucket = %q, want resonate-audio", cfg.Storage.Bucket)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RESONATE_NATS_URL", "nats://queue.internal:4222")
	t.Setenv("RESONATE_WORKER_CONCURRENCY", "8")
	t.Setenv("RESONATE_PERSONALIZATION_DECAY_BASE", "0.8")
	t.Setenv("RESONATE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.NATS.URL != "nats://queue.internal:4222" {
		t.Errorf("nats url = %q, want env override", cfg.NATS.URL)
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("worker concurrency = %d, want 8", cfg.Worker.Concurrency)
	}
	if cfg.Personalization.DecayBase != 0.8 {
		t.Errorf("decay base = %g, want 0.8", cfg.Personalization.DecayBase)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.TrimSpace(`
logging:
  level: debug
personalization:
  cache_ttl: 20s
  recent_cache_ttl: 3s
`)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Personalization.CacheTTL != 20*time.Second {
		t.Errorf("cache ttl = %v, want 20s", cfg.Personalization.CacheTTL)
	}
	if cfg.Personalization.RecentCacheTTL != 3*time.Second {
		t.Errorf("recent cache ttl = %v, want 3s", cfg.Personalization.RecentCacheTTL)
	}
	// File overrides must not disturb untouched defaults.
	if cfg.Worker.Concurrency != 5 {
		t.Errorf("worker concurrency = %d, want default 5", cfg.Worker.Concurrency)
	}
}

func TestValidateRejectsInvertedTTLs(t *testing.T) {
	t.Setenv("RESONATE_PERSONALIZATION_RECENT_CACHE_TTL", "30s")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted recent TTL longer than general TTL")
	}
}

func TestValidateRejectsBadDecayBase(t *testing.T) {
	t.Setenv("RESONATE_PERSONALIZATION_DECAY_BASE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted decay base above 1")
	}
}
