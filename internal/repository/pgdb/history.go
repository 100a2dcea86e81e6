// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resonatefm/resonate/internal/repository"
)

// HistoryRepo implements repository.History.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo creates a history repository on the given pool.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// GetListeningHistory returns the user's most recent plays with the
// tracks' stored embedding vectors, most recent first.
func (r *HistoryRepo) GetListeningHistory(ctx context.Context, userID string, limit int) ([]repository.Signal, error) {
	if limit <= 0 {
		return nil, nil
	}

	const query = `
		SELECT t.id,
		       COALESCE(t."embeddingVector", '{}'),
		       COALESCE(t."sonicEmbeddingVector", '{}')
		FROM "PlayHistory" ph
		JOIN "Track" t ON t.id = ph."trackId"
		WHERE ph."userId" = $1
		ORDER BY ph."playedAt" DESC
		LIMIT $2`

	return r.querySignals(ctx, query, userID, limit)
}

// GetLikedSongs returns the user's most recently liked tracks with their
// stored embedding vectors.
func (r *HistoryRepo) GetLikedSongs(ctx context.Context, userID string, limit int) ([]repository.Signal, error) {
	if limit <= 0 {
		return nil, nil
	}

	const query = `
		SELECT t.id,
		       COALESCE(t."embeddingVector", '{}'),
		       COALESCE(t."sonicEmbeddingVector", '{}')
		FROM "TrackLike" tl
		JOIN "Track" t ON t.id = tl."trackId"
		WHERE tl."userId" = $1
		ORDER BY tl."createdAt" DESC
		LIMIT $2`

	return r.querySignals(ctx, query, userID, limit)
}

// GetUserPreference returns the user's stored preference vector, or nil
// when none exists.
func (r *HistoryRepo) GetUserPreference(ctx context.Context, userID string) (*repository.Preference, error) {
	const query = `
		SELECT "userId", COALESCE("embeddingVector", '{}')
		FROM "UserPreference"
		WHERE "userId" = $1`

	var p repository.Preference
	var meta []float64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user preference %s: %w", userID, err)
	}

	p.MetaVector = meta
	return &p, nil
}

func (r *HistoryRepo) querySignals(ctx context.Context, query, userID string, limit int) ([]repository.Signal, error) {
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals for user %s: %w", userID, err)
	}
	defer rows.Close()

	var signals []repository.Signal
	for rows.Next() {
		var s repository.Signal
		var meta, audio []float64
		if err := rows.Scan(&s.TrackID, &meta, &audio); err != nil {
			return nil, fmt.Errorf("scan signal for user %s: %w", userID, err)
		}
		s.MetaVector = meta
		s.AudioVector = audio
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals for user %s: %w", userID, err)
	}

	return signals, nil
}
