// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package handler implements the per-job-type processing logic behind the
// dispatcher: metadata and audio embedding for catalog entities, and
// personalization vector derivation for users.
//
// Every handler follows the same contract: validate payload fields first
// and reject without touching any collaborator, then perform the work and
// fold any collaborator failure into a structured error result. Handlers
// never return a Go error and never panic on bad input.
package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/embedder"
	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/repository"
)

// Missing-field statuses, part of the producer contract: producers match
// on these strings, so they change only together with the producers.
const (
	StatusNoTrackID        = "no track ID"
	StatusNoAlbumID        = "no album ID"
	StatusNoAlbumMetadata  = "no album metadata"
	StatusNoArtistID       = "no artist ID"
	StatusNoArtistMetadata = "no artist metadata"
	StatusNoUserID         = "no user ID"
	StatusNoUserMetadata   = "no user metadata"
	StatusNoPlaylistID     = "no playlist ID"
	StatusNoPlaylistMeta   = "no playlist metadata"
	StatusNoQueryText      = "no query text"
)

// EmbeddingHandlers processes the metadata-embedding job types: it turns
// entity metadata into vectors via the embedder and persists them through
// the catalog.
type EmbeddingHandlers struct {
	catalog  repository.Catalog
	embedder embedder.Embedder
	log      zerolog.Logger
}

// NewEmbeddingHandlers wires the metadata-embedding handlers.
func NewEmbeddingHandlers(catalog repository.Catalog, emb embedder.Embedder, log zerolog.Logger) *EmbeddingHandlers {
	return &EmbeddingHandlers{
		catalog:  catalog,
		embedder: emb,
		log:      log.With().Str("component", "embedding_handlers").Logger(),
	}
}

// Track embeds a track's joined catalog metadata and stores the vector on
// the track row.
func (h *EmbeddingHandlers) Track(ctx context.Context, j *job.Job) job.Result {
	trackID, ok := j.StringField("track_id")
	if !ok {
		h.log.Error().Str("job_id", j.ID).Msg("track embedding job without track ID")
		return job.Reject(StatusNoTrackID)
	}

	details, err := h.catalog.GetFullTrackDetails(ctx, trackID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to load track details")
		return job.Errorf("load track %s: %v", trackID, err)
	}

	vec, err := h.embedder.EmbedText(ctx, BuildTrackEmbeddingText(details))
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to embed track metadata")
		return job.Errorf("embed track %s: %v", trackID, err)
	}

	if err := h.catalog.UpdateEmbedding(ctx, trackID, vec, repository.KindTrack); err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("track_id", trackID).
			Msg("failed to store track embedding")
		return job.Errorf("store track embedding %s: %v", trackID, err)
	}

	h.log.Info().Str("job_id", j.ID).Str("track_id", trackID).Int("dim", len(vec)).
		Msg("track metadata embedding updated")
	return job.Done(vec)
}

// Album embeds producer-supplied album metadata text.
func (h *EmbeddingHandlers) Album(ctx context.Context, j *job.Job) job.Result {
	return h.embedMetadata(ctx, j, metadataSpec{
		idField:       "album_id",
		noID:          StatusNoAlbumID,
		metadataField: "album_metadata",
		noMetadata:    StatusNoAlbumMetadata,
		kind:          repository.KindAlbum,
	})
}

// Artist embeds producer-supplied artist metadata text.
func (h *EmbeddingHandlers) Artist(ctx context.Context, j *job.Job) job.Result {
	return h.embedMetadata(ctx, j, metadataSpec{
		idField:       "artist_id",
		noID:          StatusNoArtistID,
		metadataField: "artist_metadata",
		noMetadata:    StatusNoArtistMetadata,
		kind:          repository.KindArtist,
	})
}

// UserPreference embeds a user's stated preferences (favorite artists,
// genres, mood, language) into the long-term preference vector.
func (h *EmbeddingHandlers) UserPreference(ctx context.Context, j *job.Job) job.Result {
	return h.embedMetadata(ctx, j, metadataSpec{
		idField:       "user_id",
		noID:          StatusNoUserID,
		metadataField: "user_metadata",
		noMetadata:    StatusNoUserMetadata,
		kind:          repository.KindUserPreference,
	})
}

// Playlist embeds producer-supplied playlist metadata text.
func (h *EmbeddingHandlers) Playlist(ctx context.Context, j *job.Job) job.Result {
	return h.embedMetadata(ctx, j, metadataSpec{
		idField:       "playlist_id",
		noID:          StatusNoPlaylistID,
		metadataField: "playlist_metadata",
		noMetadata:    StatusNoPlaylistMeta,
		kind:          repository.KindPlaylist,
	})
}

// SearchQuery embeds free search text and returns the vector without
// persisting anything; the caller reads it from the job result.
func (h *EmbeddingHandlers) SearchQuery(ctx context.Context, j *job.Job) job.Result {
	query, ok := j.StringField("query_text")
	if !ok {
		h.log.Error().Str("job_id", j.ID).Msg("search query job without query text")
		return job.Reject(StatusNoQueryText)
	}

	vec, err := h.embedder.EmbedText(ctx, query)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Msg("failed to embed search query")
		return job.Errorf("embed search query: %v", err)
	}

	return job.Done(vec)
}

// metadataSpec parameterizes the shared metadata-embedding flow: which
// payload fields to read, which statuses to report when they are missing,
// and which entity table receives the vector.
type metadataSpec struct {
	idField       string
	noID          string
	metadataField string
	noMetadata    string
	kind          repository.EntityKind
}

func (h *EmbeddingHandlers) embedMetadata(ctx context.Context, j *job.Job, spec metadataSpec) job.Result {
	id, ok := j.StringField(spec.idField)
	if !ok {
		h.log.Error().Str("job_id", j.ID).Str("entity", spec.kind.String()).
			Msgf("embedding job without %s", spec.idField)
		return job.Reject(spec.noID)
	}

	metadata, ok := j.StringField(spec.metadataField)
	if !ok {
		h.log.Error().Str("job_id", j.ID).Str("entity", spec.kind.String()).Str("id", id).
			Msgf("embedding job without %s", spec.metadataField)
		return job.Reject(spec.noMetadata)
	}

	vec, err := h.embedder.EmbedText(ctx, metadata)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("entity", spec.kind.String()).Str("id", id).
			Msg("failed to embed metadata")
		return job.Errorf("embed %s %s: %v", spec.kind, id, err)
	}

	if err := h.catalog.UpdateEmbedding(ctx, id, vec, spec.kind); err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("entity", spec.kind.String()).Str("id", id).
			Msg("failed to store embedding")
		return job.Errorf("store %s embedding %s: %v", spec.kind, id, err)
	}

	h.log.Info().Str("job_id", j.ID).Str("entity", spec.kind.String()).Str("id", id).
		Int("dim", len(vec)).Msg("metadata embedding updated")
	return job.Done(vec)
}
