// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type countingService struct {
	name string

	mu     sync.Mutex
	starts int
	fail   int
}

func (s *countingService) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.starts++
	shouldFail := s.fail > 0
	if shouldFail {
		s.fail--
	}
	s.mu.Unlock()

	if shouldFail {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func (s *countingService) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsServices(t *testing.T) {
	tree := NewTree(discardLogger(), DefaultTreeConfig())
	svc := &countingService{name: "test-worker"}
	tree.AddWorker(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.startCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.startCount() == 0 {
		t.Fatal("service never started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(discardLogger(), cfg)
	svc := &countingService{name: "flaky-worker", fail: 2}
	tree.AddWorker(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for svc.startCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := svc.startCount(); got < 3 {
		t.Fatalf("service started %d times, want at least 3 (two failures then success)", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}

func TestTreeIsolatesLayers(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(discardLogger(), cfg)

	flaky := &countingService{name: "flaky-worker", fail: 1}
	stable := &countingService{name: "ops-service"}
	tree.AddWorker(flaky)
	tree.AddOps(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for (flaky.startCount() < 2 || stable.startCount() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The worker failure restarts only the worker; the ops service keeps
	// its single run.
	if got := stable.startCount(); got != 1 {
		t.Errorf("ops service started %d times, want 1", got)
	}
	if got := flaky.startCount(); got < 2 {
		t.Errorf("flaky worker started %d times, want at least 2", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}
