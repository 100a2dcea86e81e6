// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package worker implements the queue-consuming runtime: one Pool per
// queue, fetching jobs up to a concurrency limit and driving each one
// through dispatch, completion logging and queue cleanup.
//
// Pools are suture services: Serve blocks until the context is canceled,
// then drains in-flight jobs before returning. A job that produced a
// structured result is complete regardless of its status and is deleted
// from the queue; only a dispatch that escapes with a panic leaves the
// job to the queue's own redelivery policy.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/metrics"
	"github.com/resonatefm/resonate/internal/queue"
)

// DefaultConcurrency is the per-queue in-flight job limit.
const DefaultConcurrency = 5

// fetchErrorBackoff spaces retries after a failed fetch so a broken
// queue connection does not spin the loop.
const fetchErrorBackoff = time.Second

// Dispatcher routes one job to its handler. Implemented by
// dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, j *job.Job) job.Result
}

// Config tunes one worker pool.
type Config struct {
	// Concurrency is the maximum number of jobs processed at once.
	Concurrency int `koanf:"concurrency"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Concurrency: DefaultConcurrency}
}

// Pool consumes one queue with bounded concurrency.
type Pool struct {
	source     queue.Source
	dispatcher Dispatcher
	cfg        Config
	log        zerolog.Logger
}

// NewPool creates a worker pool over the given source and dispatcher.
func NewPool(source queue.Source, dispatcher Dispatcher, cfg Config, log zerolog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Pool{
		source:     source,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "worker_pool").Str("queue", source.Name()).Logger(),
	}
}

// String names the pool in supervisor logs.
func (p *Pool) String() string {
	return "worker-pool-" + p.source.Name()
}

// Serve implements suture.Service. It fetches and processes jobs until
// the context is canceled or the source is closed, then waits for all
// in-flight jobs to finish before returning.
func (p *Pool) Serve(ctx context.Context) error {
	p.log.Info().Int("concurrency", p.cfg.Concurrency).Msg("worker pool starting")

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	// In-flight jobs run on a context that survives cancellation so
	// shutdown drains work instead of aborting it mid-write.
	workCtx := context.WithoutCancel(ctx)

	var serveErr error

loop:
	for {
		select {
		case <-ctx.Done():
			serveErr = ctx.Err()
			break loop
		case sem <- struct{}{}:
		}

		j, err := p.source.Fetch(ctx)
		if err != nil {
			<-sem
			switch {
			case ctx.Err() != nil:
				serveErr = ctx.Err()
				break loop
			case errors.Is(err, queue.ErrClosed):
				serveErr = err
				break loop
			default:
				metrics.RecordFetchError(p.source.Name())
				p.log.Error().Err(err).Msg("queue fetch failed")
				select {
				case <-ctx.Done():
					serveErr = ctx.Err()
					break loop
				case <-time.After(fetchErrorBackoff):
				}
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.process(workCtx, j)
		}()
	}

	p.log.Info().Msg("worker pool draining in-flight jobs")
	wg.Wait()

	if err := p.source.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close queue source")
	}

	p.log.Info().Msg("worker pool stopped")
	return serveErr
}

// process runs one job to completion. The dispatcher already converts
// handler panics into error results; the recover here is the second
// layer, covering the dispatcher itself, and is the only path on which a
// job is released for redelivery.
func (p *Pool) process(ctx context.Context, j *job.Job) {
	start := time.Now()

	res, completed := p.dispatch(ctx, j)
	elapsed := time.Since(start)

	if !completed {
		metrics.RecordJob(p.source.Name(), string(j.Type), "panic", elapsed)
		if err := p.source.Release(ctx, j); err != nil {
			p.log.Error().Err(err).Str("job_id", j.ID).Str("type", string(j.Type)).
				Msg("failed to release job after dispatch panic")
		}
		return
	}

	metrics.RecordJob(p.source.Name(), string(j.Type), res.Status, elapsed)

	evt := p.log.Info()
	if !res.OK() {
		evt = p.log.Error()
	}
	evt.Str("job_id", j.ID).Str("type", string(j.Type)).Str("status", res.Status).
		Dur("elapsed", elapsed).Msg("job completed")

	// Completed jobs are deleted from the queue store exactly once.
	// Deletion failure does not change the job's computed result.
	if err := p.source.Delete(ctx, j); err != nil {
		p.log.Error().Err(err).Str("job_id", j.ID).Str("type", string(j.Type)).
			Msg("failed to delete completed job from queue")
	}
}

func (p *Pool) dispatch(ctx context.Context, j *job.Job) (res job.Result, completed bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("job_id", j.ID).Str("type", string(j.Type)).
				Interface("panic", r).Msg("dispatch escaped with panic")
		}
	}()

	res = p.dispatcher.Dispatch(ctx, j)
	return res, true
}
