// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/resonatefm/resonate/internal/job"
)

// MemorySource is a channel-backed Source for tests and local development.
// Release re-enqueues the job, mimicking at-least-once redelivery.
type MemorySource struct {
	name string
	jobs chan *job.Job

	mu       sync.Mutex
	closed   bool
	deleted  []string
	released []string
}

// NewMemorySource creates an in-memory queue with the given buffer size.
func NewMemorySource(name string, buffer int) *MemorySource {
	return &MemorySource{
		name: name,
		jobs: make(chan *job.Job, buffer),
	}
}

// Name returns the queue name.
func (s *MemorySource) Name() string { return s.name }

// Push enqueues a job, assigning an ID if the producer left it empty.
// It fails when the source is closed or full.
func (s *MemorySource) Push(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	select {
	case s.jobs <- j:
		return nil
	default:
		return fmt.Errorf("queue %s: buffer full", s.name)
	}
}

// Fetch returns the next job, blocking until one is available.
func (s *MemorySource) Fetch(ctx context.Context) (*job.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j, ok := <-s.jobs:
		if !ok {
			return nil, ErrClosed
		}
		return j, nil
	}
}

// Delete records the deletion; the job is gone from the queue.
func (s *MemorySource) Delete(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, j.ID)
	return nil
}

// Release records the release and re-enqueues the job if possible.
func (s *MemorySource) Release(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	s.released = append(s.released, j.ID)
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil
	}
	select {
	case s.jobs <- j:
	default:
	}
	return nil
}

// Close stops delivery. Buffered jobs are still drained by Fetch.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	return nil
}

// Deleted returns the IDs of deleted jobs, in completion order.
func (s *MemorySource) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}

// Released returns the IDs of released jobs.
func (s *MemorySource) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.released))
	copy(out, s.released)
	return out
}
