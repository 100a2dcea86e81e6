// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/repository"
	"github.com/resonatefm/resonate/internal/vector"
)

func TestBuildTrackEmbeddingText(t *testing.T) {
	d := &repository.TrackDetails{
		ID:         "t1",
		Title:      "Midnight Run",
		ArtistName: "The Lanterns",
		AlbumTitle: "City Lights",
		Genres:     []string{"indie", "electronic"},
	}

	text := BuildTrackEmbeddingText(d)
	want := "Title: Midnight Run\nArtist: The Lanterns\nAlbum: City Lights\nGenres: indie, electronic"
	if text != want {
		t.Errorf("embedding text = %q, want %q", text, want)
	}
}

func TestBuildTrackEmbeddingTextSkipsEmptyFields(t *testing.T) {
	d := &repository.TrackDetails{ID: "t1", Title: "Solo"}

	text := BuildTrackEmbeddingText(d)
	if text != "Title: Solo" {
		t.Errorf("embedding text = %q, want %q", text, "Title: Solo")
	}
}

func TestTrackHandler(t *testing.T) {
	catalog := &fakeCatalog{
		details: &repository.TrackDetails{ID: "t1", Title: "Midnight Run", ArtistName: "The Lanterns"},
	}
	emb := &fakeEmbedder{textVec: vector.Vector{0.1, 0.2}}
	h := NewEmbeddingHandlers(catalog, emb, zerolog.Nop())

	res := h.Track(context.Background(), &job.Job{
		ID:      "j1",
		Type:    job.TypeTrack,
		Payload: map[string]any{"track_id": "t1"},
	})

	if res.Status != job.StatusDone {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
	}
	if len(catalog.updates) != 1 {
		t.Fatalf("got %d embedding updates, want 1", len(catalog.updates))
	}
	up := catalog.updates[0]
	if up.id != "t1" || up.kind != repository.KindTrack {
		t.Errorf("update = %+v, want id t1 kind track", up)
	}
	if len(emb.texts) != 1 || !strings.Contains(emb.texts[0], "Midnight Run") {
		t.Errorf("embedded text %q does not carry track title", emb.texts)
	}
}

func TestTrackHandlerMissingID(t *testing.T) {
	catalog := &fakeCatalog{}
	emb := &fakeEmbedder{}
	h := NewEmbeddingHandlers(catalog, emb, zerolog.Nop())

	res := h.Track(context.Background(), &job.Job{ID: "j1", Type: job.TypeTrack, Payload: map[string]any{}})

	if res.Status != StatusNoTrackID {
		t.Errorf("status = %q, want %q", res.Status, StatusNoTrackID)
	}
	if catalog.calls != 0 || emb.calls != 0 {
		t.Errorf("collaborators called on validation failure: catalog=%d embedder=%d", catalog.calls, emb.calls)
	}
}

func TestMetadataHandlers(t *testing.T) {
	tests := []struct {
		name       string
		handle     func(*EmbeddingHandlers) func(context.Context, *job.Job) job.Result
		payload    map[string]any
		wantStatus string
		wantID     string
		wantKind   repository.EntityKind
	}{
		{
			name:       "album ok",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Album },
			payload:    map[string]any{"album_id": "a1", "album_metadata": "Title: City Lights"},
			wantStatus: job.StatusDone,
			wantID:     "a1",
			wantKind:   repository.KindAlbum,
		},
		{
			name:       "album missing id",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Album },
			payload:    map[string]any{"album_metadata": "Title: City Lights"},
			wantStatus: StatusNoAlbumID,
		},
		{
			name:       "album missing metadata",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Album },
			payload:    map[string]any{"album_id": "a1"},
			wantStatus: StatusNoAlbumMetadata,
		},
		{
			name:       "artist ok",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Artist },
			payload:    map[string]any{"artist_id": "ar1", "artist_metadata": "Name: The Lanterns"},
			wantStatus: job.StatusDone,
			wantID:     "ar1",
			wantKind:   repository.KindArtist,
		},
		{
			name:       "artist missing metadata",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Artist },
			payload:    map[string]any{"artist_id": "ar1"},
			wantStatus: StatusNoArtistMetadata,
		},
		{
			name:       "user preference ok",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.UserPreference },
			payload:    map[string]any{"user_id": "u1", "user_metadata": "indie, electronic, upbeat"},
			wantStatus: job.StatusDone,
			wantID:     "u1",
			wantKind:   repository.KindUserPreference,
		},
		{
			name:       "user preference missing id",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.UserPreference },
			payload:    map[string]any{"user_metadata": "indie"},
			wantStatus: StatusNoUserID,
		},
		{
			name:       "playlist ok",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Playlist },
			payload:    map[string]any{"playlist_id": "p1", "playlist_metadata": "Title: Morning Mix"},
			wantStatus: job.StatusDone,
			wantID:     "p1",
			wantKind:   repository.KindPlaylist,
		},
		{
			name:       "playlist missing metadata",
			handle:     func(h *EmbeddingHandlers) func(context.Context, *job.Job) job.Result { return h.Playlist },
			payload:    map[string]any{"playlist_id": "p1"},
			wantStatus: StatusNoPlaylistMeta,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &fakeCatalog{}
			emb := &fakeEmbedder{textVec: vector.Vector{1, 2, 3}}
			h := NewEmbeddingHandlers(catalog, emb, zerolog.Nop())

			res := tt.handle(h)(context.Background(), &job.Job{ID: "j1", Payload: tt.payload})

			if res.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if tt.wantStatus != job.StatusDone {
				if catalog.calls != 0 {
					t.Errorf("catalog called %d times on validation failure", catalog.calls)
				}
				return
			}
			if len(catalog.updates) != 1 {
				t.Fatalf("got %d embedding updates, want 1", len(catalog.updates))
			}
			up := catalog.updates[0]
			if up.id != tt.wantID || up.kind != tt.wantKind {
				t.Errorf("update id=%q kind=%v, want id=%q kind=%v", up.id, up.kind, tt.wantID, tt.wantKind)
			}
		})
	}
}

func TestMetadataHandlerUpstreamError(t *testing.T) {
	catalog := &fakeCatalog{}
	emb := &fakeEmbedder{err: errors.New("inference service down")}
	h := NewEmbeddingHandlers(catalog, emb, zerolog.Nop())

	res := h.Album(context.Background(), &job.Job{
		ID:      "j1",
		Payload: map[string]any{"album_id": "a1", "album_metadata": "Title: City Lights"},
	})

	if res.Status != job.StatusError {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusError)
	}
	if res.Message == "" {
		t.Error("error result carries no message")
	}
	if len(catalog.updates) != 0 {
		t.Error("embedding persisted despite embed failure")
	}
}

func TestSearchQueryHandler(t *testing.T) {
	catalog := &fakeCatalog{}
	emb := &fakeEmbedder{textVec: vector.Vector{0.5, 0.5}}
	h := NewEmbeddingHandlers(catalog, emb, zerolog.Nop())

	res := h.SearchQuery(context.Background(), &job.Job{
		ID:      "j1",
		Payload: map[string]any{"query_text": "late night driving music"},
	})

	if res.Status != job.StatusDone {
		t.Fatalf("status = %q, want %q", res.Status, job.StatusDone)
	}
	if catalog.calls != 0 {
		t.Error("search query handler must not persist anything")
	}
	if len(emb.texts) != 1 || emb.texts[0] != "late night driving music" {
		t.Errorf("embedded texts = %q, want the raw query", emb.texts)
	}
}

func TestSearchQueryHandlerMissingText(t *testing.T) {
	emb := &fakeEmbedder{}
	h := NewEmbeddingHandlers(&fakeCatalog{}, emb, zerolog.Nop())

	res := h.SearchQuery(context.Background(), &job.Job{ID: "j1", Payload: map[string]any{"query_text": "  "}})

	if res.Status != StatusNoQueryText {
		t.Errorf("status = %q, want %q", res.Status, StatusNoQueryText)
	}
	if emb.calls != 0 {
		t.Error("embedder called despite missing query text")
	}
}
