// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package cache provides the best-effort result cache for derived
// personalization data.
//
// Everything written here is recomputable from source signals, so the
// contract is deliberately loose: absence on read is normal and triggers
// recomputation by the caller, and a failed write must never fail the
// operation that produced the value. The production implementation is
// Redis; an in-memory TTL cache backs tests and Redis-less deployments.
package cache

import (
	"context"
	"time"
)

// Cache stores serialized derived values under string keys with a TTL.
type Cache interface {
	// Set writes a value with the given time-to-live. A zero ttl means
	// the implementation's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get reads a value. A missing or expired key returns ok=false with
	// a nil error; absence is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}
