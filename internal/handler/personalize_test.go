// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/repository"
	"github.com/resonatefm/resonate/internal/vector"
)

func approxEqual(a, b vector.Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func forYouJob(payload map[string]any) *job.Job {
	return &job.Job{ID: "j1", Type: job.TypeForYou, Payload: payload}
}

func TestForYouMissingUserID(t *testing.T) {
	history := &fakeHistory{}
	h := NewPersonalizationHandler(history, &fakeCache{}, DefaultForYouConfig(), zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{}))

	if res.Status != StatusNoUserID {
		t.Errorf("status = %q, want %q", res.Status, StatusNoUserID)
	}
	if history.calls != 0 {
		t.Errorf("history called %d times on validation failure", history.calls)
	}
}

func TestForYouDerivesVectors(t *testing.T) {
	history := &fakeHistory{
		listened: []repository.Signal{
			{TrackID: "t1", MetaVector: vector.Vector{1, 1}, AudioVector: vector.Vector{2, 2}},
		},
		liked: []repository.Signal{
			{TrackID: "t2", MetaVector: vector.Vector{3, 3}, AudioVector: vector.Vector{4, 4}},
		},
		pref: &repository.Preference{UserID: "u1", MetaVector: vector.Vector{5, 5}},
	}
	c := &fakeCache{}
	h := NewPersonalizationHandler(history, c, DefaultForYouConfig(), zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))

	if res.Status != job.StatusDone {
		t.Fatalf("status = %q, want %q (message: %s)", res.Status, job.StatusDone, res.Message)
	}
	result, ok := res.Data.(*PersonalizationResult)
	if !ok {
		t.Fatalf("result data is %T, want *PersonalizationResult", res.Data)
	}

	// meta = 0.2*pref + 0.6*listened + 0.2*liked = 0.2*5 + 0.6*1 + 0.2*3
	wantMeta := vector.Vector{2.2, 2.2}
	// audio = 0.7*listened + 0.3*liked = 0.7*2 + 0.3*4
	wantAudio := vector.Vector{2.6, 2.6}
	if !approxEqual(result.UserMetaVector, wantMeta) {
		t.Errorf("meta vector = %v, want %v", result.UserMetaVector, wantMeta)
	}
	if !approxEqual(result.UserAudioVector, wantAudio) {
		t.Errorf("audio vector = %v, want %v", result.UserAudioVector, wantAudio)
	}

	if history.historyLimit != 10 || history.likedLimit != 4 {
		t.Errorf("limits = %d/%d, want 10/4", history.historyLimit, history.likedLimit)
	}
}

func TestForYouRecencyDecay(t *testing.T) {
	history := &fakeHistory{
		listened: []repository.Signal{
			{TrackID: "t1", MetaVector: vector.Vector{2, 0}},
			{TrackID: "t2", MetaVector: vector.Vector{0, 2}},
		},
	}
	cfg := DefaultForYouConfig()
	cfg.DecayBase = 0.5
	cfg.PrefWeight = 0
	cfg.ListenedWeight = 1
	cfg.LikedWeight = 0
	h := NewPersonalizationHandler(history, &fakeCache{}, cfg, zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))

	if res.Status != job.StatusDone {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
	}
	result := res.Data.(*PersonalizationResult)
	// weights 1 and 0.5: [2*1+0*0.5, 0*1+2*0.5] / 1.5
	want := vector.Vector{4.0 / 3.0, 2.0 / 3.0}
	if !approxEqual(result.UserMetaVector, want) {
		t.Errorf("meta vector = %v, want %v", result.UserMetaVector, want)
	}
}

func TestForYouCacheWrite(t *testing.T) {
	history := &fakeHistory{
		listened: []repository.Signal{{TrackID: "t1", MetaVector: vector.Vector{1, 1}}},
	}

	t.Run("general", func(t *testing.T) {
		c := &fakeCache{}
		cfg := DefaultForYouConfig()
		h := NewPersonalizationHandler(history, c, cfg, zerolog.Nop())

		res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))
		if res.Status != job.StatusDone {
			t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
		}
		if len(c.writes) != 1 {
			t.Fatalf("got %d cache writes, want 1", len(c.writes))
		}
		w := c.writes[0]
		if w.key != "user_vectors:u1" {
			t.Errorf("cache key = %q, want user_vectors:u1", w.key)
		}
		if w.ttl != cfg.CacheTTL {
			t.Errorf("ttl = %v, want %v", w.ttl, cfg.CacheTTL)
		}

		var cached PersonalizationResult
		if err := json.Unmarshal(w.value, &cached); err != nil {
			t.Fatalf("cached value is not valid JSON: %v", err)
		}
		if cached.UserMetaVector.IsEmpty() {
			t.Error("cached result carries no meta vector")
		}
	})

	t.Run("recent", func(t *testing.T) {
		c := &fakeCache{}
		cfg := DefaultForYouConfig()
		h := NewPersonalizationHandler(history, c, cfg, zerolog.Nop())

		res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1", "is_recent": true}))
		if res.Status != job.StatusDone {
			t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
		}
		if len(c.writes) != 1 {
			t.Fatalf("got %d cache writes, want 1", len(c.writes))
		}
		w := c.writes[0]
		if w.key != "recent:user_vectors:u1" {
			t.Errorf("cache key = %q, want recent:user_vectors:u1", w.key)
		}
		if w.ttl >= cfg.CacheTTL {
			t.Errorf("recent ttl %v not strictly shorter than general ttl %v", w.ttl, cfg.CacheTTL)
		}
		if history.historyLimit != cfg.RecentHistoryLimit || history.likedLimit != cfg.RecentLikedLimit {
			t.Errorf("recent limits = %d/%d, want %d/%d",
				history.historyLimit, history.likedLimit, cfg.RecentHistoryLimit, cfg.RecentLikedLimit)
		}
	})
}

func TestForYouCacheFailureIsNotFatal(t *testing.T) {
	history := &fakeHistory{
		listened: []repository.Signal{{TrackID: "t1", MetaVector: vector.Vector{1, 1}}},
	}
	c := &fakeCache{setErr: errors.New("redis down")}
	h := NewPersonalizationHandler(history, c, DefaultForYouConfig(), zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))

	if res.Status != job.StatusDone {
		t.Errorf("status = %q, want %q despite cache failure", res.Status, job.StatusDone)
	}
}

func TestForYouUpstreamError(t *testing.T) {
	history := &fakeHistory{historyErr: errors.New("connection reset")}
	h := NewPersonalizationHandler(history, &fakeCache{}, DefaultForYouConfig(), zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))

	if res.Status != job.StatusError {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusError)
	}
	if res.Message == "" {
		t.Error("error result carries no message")
	}
}

func TestForYouNoSignals(t *testing.T) {
	h := NewPersonalizationHandler(&fakeHistory{}, &fakeCache{}, DefaultForYouConfig(), zerolog.Nop())

	res := h.ForYou(context.Background(), forYouJob(map[string]any{"user_id": "u1"}))

	if res.Status != job.StatusDone {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
	}
	result := res.Data.(*PersonalizationResult)
	if len(result.UserMetaVector) != 0 || len(result.UserAudioVector) != 0 {
		t.Errorf("vectors without signals = %v/%v, want empty", result.UserMetaVector, result.UserAudioVector)
	}
}

func TestTrendingStub(t *testing.T) {
	h := NewPersonalizationHandler(&fakeHistory{}, &fakeCache{}, DefaultForYouConfig(), zerolog.Nop())

	res := h.Trending(context.Background(), &job.Job{ID: "j1", Type: job.TypeTrendingNow})

	if res.Status != job.StatusDone {
		t.Errorf("status = %q, want %q", res.Status, job.StatusDone)
	}
	data, ok := res.Data.([]any)
	if !ok || len(data) != 0 {
		t.Errorf("data = %#v, want empty list", res.Data)
	}
}
