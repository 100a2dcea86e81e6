// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package repository defines the narrow data-access contracts the job
// handlers depend on, plus the domain records flowing through them. The
// production implementation (subpackage pgdb) runs on PostgreSQL; tests
// use in-package fakes.
package repository

import (
	"context"
	"errors"

	"github.com/resonatefm/resonate/internal/vector"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// EntityKind selects the table an embedding update targets. The set is
// closed; adding a kind means extending the enum and the pgdb switch.
type EntityKind int

const (
	KindTrack EntityKind = iota
	KindAlbum
	KindArtist
	KindUserPreference
	KindPlaylist
)

// String returns the entity kind name used in logs.
func (k EntityKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindAlbum:
		return "album"
	case KindArtist:
		return "artist"
	case KindUserPreference:
		return "user_preference"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// Track is the subset of a track record the audio pipeline needs.
type Track struct {
	ID       string
	Title    string
	AudioURL string
}

// TrackDetails carries the metadata used to build embedding text.
type TrackDetails struct {
	ID         string
	Title      string
	ArtistName string
	AlbumTitle string
	Genres     []string
	Tags       []string
}

// Signal is one user-taste data point: a listened or liked track with
// its stored embedding vectors. Either vector may be absent (empty);
// aggregation degrades gracefully.
type Signal struct {
	TrackID     string
	MetaVector  vector.Vector
	AudioVector vector.Vector
}

// Preference is a user's stored long-term preference vector.
type Preference struct {
	UserID     string
	MetaVector vector.Vector
}

// Catalog reads track records and persists embedding vectors. Updates
// are last-write-wins: concurrent jobs targeting the same entity race
// without ordering, which is acceptable for recomputable derived data.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (*Track, error)
	GetFullTrackDetails(ctx context.Context, id string) (*TrackDetails, error)

	// UpdateEmbedding overwrites the metadata-embedding vector of one
	// entity of the given kind.
	UpdateEmbedding(ctx context.Context, id string, vec vector.Vector, kind EntityKind) error

	// UpdateEmbeddingAndDuration overwrites a track's sonic-embedding
	// vector and duration as a single write.
	UpdateEmbeddingAndDuration(ctx context.Context, trackID string, vec vector.Vector, durationSeconds float64) error
}

// History reads the user signals personalization is derived from.
type History interface {
	// GetListeningHistory returns up to limit entries, most recent
	// first. A limit <= 0 returns no entries.
	GetListeningHistory(ctx context.Context, userID string, limit int) ([]Signal, error)

	// GetLikedSongs returns up to limit liked tracks, most recently
	// liked first. A limit <= 0 returns no entries.
	GetLikedSongs(ctx context.Context, userID string, limit int) ([]Signal, error)

	// GetUserPreference returns the user's stored preference, or nil
	// when none exists (absence is valid).
	GetUserPreference(ctx context.Context, userID string) (*Preference, error)
}
