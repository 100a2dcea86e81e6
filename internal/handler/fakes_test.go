// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/resonatefm/resonate/internal/repository"
	"github.com/resonatefm/resonate/internal/vector"
)

type embedUpdate struct {
	id   string
	vec  vector.Vector
	kind repository.EntityKind
}

type durationUpdate struct {
	trackID  string
	vec      vector.Vector
	duration float64
}

type fakeCatalog struct {
	track   *repository.Track
	details *repository.TrackDetails

	getTrackErr   error
	getDetailsErr error
	updateErr     error

	calls           int
	updates         []embedUpdate
	durationUpdates []durationUpdate
}

func (f *fakeCatalog) GetTrack(_ context.Context, id string) (*repository.Track, error) {
	f.calls++
	if f.getTrackErr != nil {
		return nil, f.getTrackErr
	}
	return f.track, nil
}

func (f *fakeCatalog) GetFullTrackDetails(_ context.Context, id string) (*repository.TrackDetails, error) {
	f.calls++
	if f.getDetailsErr != nil {
		return nil, f.getDetailsErr
	}
	return f.details, nil
}

func (f *fakeCatalog) UpdateEmbedding(_ context.Context, id string, vec vector.Vector, kind repository.EntityKind) error {
	f.calls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, embedUpdate{id: id, vec: vec, kind: kind})
	return nil
}

func (f *fakeCatalog) UpdateEmbeddingAndDuration(_ context.Context, trackID string, vec vector.Vector, durationSeconds float64) error {
	f.calls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.durationUpdates = append(f.durationUpdates, durationUpdate{trackID: trackID, vec: vec, duration: durationSeconds})
	return nil
}

type fakeEmbedder struct {
	textVec  vector.Vector
	audioVec vector.Vector
	err      error

	calls      int
	texts      []string
	audioBytes [][]byte
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) (vector.Vector, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return f.textVec, nil
}

func (f *fakeEmbedder) ExtractAudioFeatures(_ context.Context, audio io.Reader) (vector.Vector, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	f.audioBytes = append(f.audioBytes, data)
	return f.audioVec, nil
}

type fakeStore struct {
	audio       []byte
	duration    float64
	downloadErr error
	probeErr    error

	calls       int
	downloads   []string
	probedBytes [][]byte
}

func (f *fakeStore) Download(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.calls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	f.downloads = append(f.downloads, bucket+"/"+key)
	return io.NopCloser(bytes.NewReader(f.audio)), nil
}

func (f *fakeStore) ProbeDuration(_ context.Context, audio io.Reader) (float64, error) {
	f.calls++
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return 0, err
	}
	f.probedBytes = append(f.probedBytes, data)
	return f.duration, nil
}

type fakeHistory struct {
	listened []repository.Signal
	liked    []repository.Signal
	pref     *repository.Preference

	historyErr error
	likedErr   error
	prefErr    error

	calls        int
	historyLimit int
	likedLimit   int
}

func (f *fakeHistory) GetListeningHistory(_ context.Context, userID string, limit int) ([]repository.Signal, error) {
	f.calls++
	f.historyLimit = limit
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if limit <= 0 {
		return nil, nil
	}
	if limit < len(f.listened) {
		return f.listened[:limit], nil
	}
	return f.listened, nil
}

func (f *fakeHistory) GetLikedSongs(_ context.Context, userID string, limit int) ([]repository.Signal, error) {
	f.calls++
	f.likedLimit = limit
	if f.likedErr != nil {
		return nil, f.likedErr
	}
	if limit <= 0 {
		return nil, nil
	}
	if limit < len(f.liked) {
		return f.liked[:limit], nil
	}
	return f.liked, nil
}

func (f *fakeHistory) GetUserPreference(_ context.Context, userID string) (*repository.Preference, error) {
	f.calls++
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	return f.pref, nil
}

type cacheWrite struct {
	key   string
	value []byte
	ttl   time.Duration
}

type fakeCache struct {
	setErr error
	writes []cacheWrite
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.writes = append(f.writes, cacheWrite{key: key, value: value, ttl: ttl})
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	for i := len(f.writes) - 1; i >= 0; i-- {
		if f.writes[i].key == key {
			return f.writes[i].value, true, nil
		}
	}
	return nil, false, nil
}
