// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package pgdb implements the repository contracts on PostgreSQL using
// pgx. Table and column names follow the platform schema (camelCase
// identifiers, one table per entity).
package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resonatefm/resonate/internal/repository"
	"github.com/resonatefm/resonate/internal/vector"
)

// CatalogRepo implements repository.Catalog.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

// NewCatalogRepo creates a catalog repository on the given pool.
func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// GetTrack returns the track row the audio pipeline needs.
func (r *CatalogRepo) GetTrack(ctx context.Context, id string) (*repository.Track, error) {
	const query = `
		SELECT id, title, COALESCE("audioUrl", '')
		FROM "Track"
		WHERE id = $1`

	var t repository.Track
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Title, &t.AudioURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get track %s: %w", id, err)
	}

	return &t, nil
}

// GetFullTrackDetails returns a track joined with its artist, album,
// genres and tags for embedding-text construction.
func (r *CatalogRepo) GetFullTrackDetails(ctx context.Context, id string) (*repository.TrackDetails, error) {
	const query = `
		SELECT t.id,
		       t.title,
		       COALESCE(ar.name, ''),
		       COALESCE(al.title, ''),
		       COALESCE(array_agg(DISTINCT g.name) FILTER (WHERE g.name IS NOT NULL), '{}'),
		       COALESCE(t.tags, '{}')
		FROM "Track" t
		LEFT JOIN "Artist" ar ON ar.id = t."artistId"
		LEFT JOIN "Album" al ON al.id = t."albumId"
		LEFT JOIN "TrackGenre" tg ON tg."trackId" = t.id
		LEFT JOIN "Genre" g ON g.id = tg."genreId"
		WHERE t.id = $1
		GROUP BY t.id, t.title, ar.name, al.title, t.tags`

	var d repository.TrackDetails
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Title, &d.ArtistName, &d.AlbumTitle, &d.Genres, &d.Tags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get track details %s: %w", id, err)
	}

	return &d, nil
}

// embeddingTarget maps an entity kind onto its table and key column.
func embeddingTarget(kind repository.EntityKind) (table, idColumn string, err error) {
	switch kind {
	case repository.KindTrack:
		return "Track", "id", nil
	case repository.KindAlbum:
		return "Album", "id", nil
	case repository.KindArtist:
		return "Artist", "id", nil
	case repository.KindUserPreference:
		return "UserPreference", "userId", nil
	case repository.KindPlaylist:
		return "Playlist", "id", nil
	default:
		return "", "", fmt.Errorf("unknown entity kind %d", kind)
	}
}

// UpdateEmbedding overwrites one entity's metadata-embedding vector.
// Last write wins; jobs re-delivered by the queue are safe to re-run.
func (r *CatalogRepo) UpdateEmbedding(ctx context.Context, id string, vec vector.Vector, kind repository.EntityKind) error {
	table, idColumn, err := embeddingTarget(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE %q SET "embeddingVector" = $2, "updatedAt" = now() WHERE %q = $1`,
		table, idColumn,
	)

	tag, err := r.pool.Exec(ctx, query, id, []float64(vec))
	if err != nil {
		return fmt.Errorf("update %s embedding %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s embedding %s: %w", kind, id, repository.ErrNotFound)
	}

	return nil
}

// UpdateEmbeddingAndDuration overwrites a track's sonic-embedding vector
// and duration in one statement.
func (r *CatalogRepo) UpdateEmbeddingAndDuration(ctx context.Context, trackID string, vec vector.Vector, durationSeconds float64) error {
	const query = `
		UPDATE "Track"
		SET "sonicEmbeddingVector" = $2, duration = $3, "updatedAt" = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, trackID, []float64(vec), durationSeconds)
	if err != nil {
		return fmt.Errorf("update track sonic embedding %s: %w", trackID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update track sonic embedding %s: %w", trackID, repository.ErrNotFound)
	}

	return nil
}
