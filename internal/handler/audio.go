// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/embedder"
	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/objectstore"
	"github.com/resonatefm/resonate/internal/repository"
)

// AudioHandler processes track_audio jobs: it downloads a track's audio
// object, probes its duration, extracts the sonic embedding and persists
// both in one write.
type AudioHandler struct {
	catalog  repository.Catalog
	store    objectstore.Store
	embedder embedder.Embedder
	bucket   string
	log      zerolog.Logger
}

// NewAudioHandler wires the sonic-embedding handler. bucket is the audio
// bucket name, also used as the marker that splits stored audio URLs into
// a storage object key.
func NewAudioHandler(catalog repository.Catalog, store objectstore.Store, emb embedder.Embedder, bucket string, log zerolog.Logger) *AudioHandler {
	return &AudioHandler{
		catalog:  catalog,
		store:    store,
		embedder: emb,
		bucket:   bucket,
		log:      log.With().Str("component", "audio_handler").Logger(),
	}
}

// objectKey resolves the storage key from a stored audio URL by taking
// everything after the "{bucket}/" marker. Audio URLs are written by the
// upload service as "{endpoint}/{bucket}/{key}".
func (h *AudioHandler) objectKey(audioURL string) (string, error) {
	marker := h.bucket + "/"
	idx := strings.Index(audioURL, marker)
	if idx < 0 {
		return "", fmt.Errorf("audio URL %q does not contain bucket %q", audioURL, h.bucket)
	}
	key := audioURL[idx+len(marker):]
	if key == "" {
		return "", fmt.Errorf("audio URL %q has no object key after bucket", audioURL)
	}
	return key, nil
}

// TrackAudio handles one track_audio job. The audio object is downloaded
// once and buffered; duration probing and feature extraction each consume
// a stream, so both read fresh readers over the same buffer.
func (h *AudioHandler) TrackAudio(ctx context.Context, j *job.Job) job.Result {
	trackID, ok := j.StringField("trackId")
	if !ok {
		h.log.Error().Str("job_id", j.ID).Msg("audio embedding job without track ID")
		return job.Reject(StatusNoTrackID)
	}

	track, err := h.catalog.GetTrack(ctx, trackID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to load track")
		return job.Errorf("load track %s: %v", trackID, err)
	}

	key, err := h.objectKey(track.AudioURL)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to resolve audio object key")
		return job.Errorf("resolve audio object for track %s: %v", trackID, err)
	}

	audio, err := h.download(ctx, key)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).Str("key", key).
			Msg("failed to download audio")
		return job.Errorf("download audio for track %s: %v", trackID, err)
	}

	duration, err := h.store.ProbeDuration(ctx, bytes.NewReader(audio))
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to probe audio duration")
		return job.Errorf("probe duration for track %s: %v", trackID, err)
	}

	vec, err := h.embedder.ExtractAudioFeatures(ctx, bytes.NewReader(audio))
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to extract audio features")
		return job.Errorf("extract audio features for track %s: %v", trackID, err)
	}

	if err := h.catalog.UpdateEmbeddingAndDuration(ctx, trackID, vec, duration); err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to store sonic embedding")
		return job.Errorf("store sonic embedding for track %s: %v", trackID, err)
	}

	h.log.Info().Str("job_id", j.ID).Str("track_id", trackID).Int("dim", len(vec)).
		Float64("duration_seconds", duration).Msg("sonic embedding updated")
	return job.Result{Status: job.StatusDone}
}

func (h *AudioHandler) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := h.store.Download(ctx, h.bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}
