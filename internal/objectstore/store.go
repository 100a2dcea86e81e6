// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package objectstore provides read access to the platform's audio
// object storage (MinIO or any S3-compatible store) and duration probing
// for downloaded audio streams.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("objectstore: object not found")

// Store reads audio objects and probes their duration.
type Store interface {
	// Download opens a streaming read on bucket/key. The caller owns the
	// returned reader and must close it.
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// ProbeDuration reads an audio stream and returns its duration in
	// seconds. The stream is consumed; callers must supply a stream not
	// needed afterward.
	ProbeDuration(ctx context.Context, audio io.Reader) (float64, error)
}
