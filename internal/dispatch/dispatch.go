// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package dispatch routes fetched jobs to their handlers. Each queue owns
// one Dispatcher with an explicit allow-list: job types are either
// registered with a handler, allow-listed without one (reserved by the
// producer contract), or rejected outright. Routing is a closed match
// over the job type enum; unknown strings never reach a handler.
package dispatch

import (
	"context"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/job"
)

// Handler processes one job and returns a structured result. Handlers
// must not panic; the dispatcher still guards against it.
type Handler interface {
	Handle(ctx context.Context, j *job.Job) job.Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, j *job.Job) job.Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, j *job.Job) job.Result {
	return f(ctx, j)
}

// Dispatcher maps job types to handlers for one queue.
type Dispatcher struct {
	queue    string
	handlers map[job.Type]Handler
	log      zerolog.Logger
}

// New creates an empty dispatcher for the named queue.
func New(queue string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		handlers: make(map[job.Type]Handler),
		log:      log.With().Str("component", "dispatcher").Str("queue", queue).Logger(),
	}
}

// Register binds a handler to a job type.
func (d *Dispatcher) Register(t job.Type, h Handler) *Dispatcher {
	d.handlers[t] = h
	return d
}

// Allow marks a job type as part of this queue's contract without binding
// a handler. Allow-listed types dispatch to a "not implemented" result
// instead of being treated as unknown.
func (d *Dispatcher) Allow(t job.Type) *Dispatcher {
	d.handlers[t] = nil
	return d
}

// Dispatch routes one job. It never panics: a handler panic is caught
// here and converted to an error result, keeping the worker pool alive.
func (d *Dispatcher) Dispatch(ctx context.Context, j *job.Job) (res job.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("job_id", j.ID).Str("type", string(j.Type)).
				Interface("panic", r).Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			res = job.Errorf("handler panic: %v", r)
		}
	}()

	h, ok := d.handlers[j.Type]
	if !ok {
		d.log.Warn().Str("job_id", j.ID).Str("type", string(j.Type)).
			Msg("job with unknown type")
		return job.Reject(job.StatusInvalidType)
	}
	if h == nil {
		d.log.Warn().Str("job_id", j.ID).Str("type", string(j.Type)).
			Msg("job type has no handler yet")
		return job.Reject(job.StatusNotImplemented)
	}

	return h.Handle(ctx, j)
}
