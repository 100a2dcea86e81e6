// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package queue abstracts the external job queue this service consumes.
//
// The queue itself (transport, delivery guarantees, retry policy) is an
// external system; this package only models the consumer side: fetch the
// next job, delete it on completion, or release it for redelivery. The
// production implementation rides NATS JetStream through Watermill; an
// in-memory implementation backs tests and local development.
package queue

import (
	"context"
	"errors"

	"github.com/resonatefm/resonate/internal/job"
)

// ErrClosed is returned by Fetch once a source has been closed and its
// buffered deliveries are exhausted.
var ErrClosed = errors.New("queue: source closed")

// Source is a consumer handle on one named queue.
//
// Fetch blocks until a job is available, the context is canceled, or the
// source is closed. Delete removes a completed job from the queue store;
// Release returns a job to the queue for redelivery under the queue's own
// retry policy. Neither is called more than once per fetched job.
type Source interface {
	// Name returns the queue name, used for logging and metrics labels.
	Name() string

	Fetch(ctx context.Context) (*job.Job, error)
	Delete(ctx context.Context, j *job.Job) error
	Release(ctx context.Context, j *job.Job) error

	// Close terminates the underlying queue connection. In-flight jobs
	// that were neither deleted nor released are redelivered by the queue.
	Close() error
}
