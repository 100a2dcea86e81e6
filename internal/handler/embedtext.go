// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"strings"

	"github.com/resonatefm/resonate/internal/repository"
)

// BuildTrackEmbeddingText renders track metadata into the labeled text the
// embedding model consumes. The layout ("Label: value" lines, empty fields
// skipped) must stay in sync with the texts the catalog API produces for
// albums, artists and playlists, so that all metadata embeddings live in
// one comparable space.
func BuildTrackEmbeddingText(d *repository.TrackDetails) string {
	var lines []string

	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("Title", d.Title)
	add("Artist", d.ArtistName)
	add("Album", d.AlbumTitle)
	add("Genres", strings.Join(d.Genres, ", "))
	add("Tags", strings.Join(d.Tags, ", "))

	return strings.Join(lines, "\n")
}
