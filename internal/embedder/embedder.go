// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package embedder provides the client side of the ML inference service
// that turns text or audio into embedding vectors.
//
// Model hosting is out of scope for this service: the platform runs its
// sentence-transformer and CLAP models behind an internal HTTP service,
// and this package is the resilient client for it. Embedding extraction
// is compute-heavy upstream, so the client carries a circuit breaker and
// a client-side rate limit to avoid stampeding a struggling inference
// host.
package embedder

import (
	"context"
	"errors"
	"io"

	"github.com/resonatefm/resonate/internal/vector"
)

// ErrEmbedding wraps all provider failures so callers can classify them
// without knowing the transport.
var ErrEmbedding = errors.New("embedder: inference failed")

// Embedder produces embedding vectors from raw inputs.
type Embedder interface {
	// EmbedText embeds a single text into a metadata-space vector.
	EmbedText(ctx context.Context, text string) (vector.Vector, error)

	// ExtractAudioFeatures embeds an audio byte stream into a
	// sonic-space vector. The stream is consumed; callers must not need
	// it afterward.
	ExtractAudioFeatures(ctx context.Context, audio io.Reader) (vector.Vector, error)
}
