// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package job defines the queue job model shared by the dispatcher, the
// handlers, and the worker runtime: the job envelope, the closed set of
// job types, and the structured result every handler returns.
package job

import (
	"fmt"
	"strings"
)

// Type identifies the kind of work a job carries. The set of types is
// closed: new job types are added here and registered with a dispatcher,
// never matched by open-ended string comparison elsewhere.
type Type string

// Embedding queue job types.
const (
	TypeTrack       Type = "track"
	TypeTrackAudio  Type = "track_audio"
	TypeAlbum       Type = "album"
	TypeArtist      Type = "artist"
	TypeUserPref    Type = "user_pref"
	TypePlaylist    Type = "user_playlist"
	TypeSearchQuery Type = "search_query"
)

// Personalization queue job types. Only for_you and trending_now have
// handlers today; the rest are reserved by the producer contract.
const (
	TypeForYou            Type = "for_you"
	TypeTrendingNow       Type = "trending_now"
	TypeNewReleases       Type = "new_releases"
	TypeRecommendedForYou Type = "recommended_for_you"
	TypeNextPlaylist      Type = "next_playlist"
)

// Job is a unit of work fetched from a named queue. Payload is the raw
// producer-supplied field mapping; handlers extract and validate the
// fields they need. Delivery is at-least-once, so handlers must tolerate
// re-execution of the same logical job.
type Job struct {
	ID      string
	Type    Type
	Payload map[string]any
}

// StringField extracts a non-empty string field from the payload.
// Whitespace-only values count as absent.
func (j *Job) StringField(key string) (string, bool) {
	raw, ok := j.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// BoolField extracts a boolean field from the payload, defaulting to
// false when the field is absent or not a boolean.
func (j *Job) BoolField(key string) bool {
	b, _ := j.Payload[key].(bool)
	return b
}

// Result statuses. Handlers return exactly one structured Result; no
// error value crosses the handler boundary.
const (
	StatusDone           = "done"
	StatusError          = "error"
	StatusInvalidType    = "invalid embedding type"
	StatusNotImplemented = "not implemented"
)

// Result is the structured outcome of processing one job.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK reports whether the job produced its intended output.
func (r Result) OK() bool { return r.Status == StatusDone }

// Done returns a successful result carrying the handler's output.
func Done(data any) Result {
	return Result{Status: StatusDone, Data: data}
}

// Reject returns a validation result with the given status, e.g.
// "no track ID". Rejections are terminal: the queue must not retry them.
func Reject(status string) Result {
	return Result{Status: status}
}

// Errorf returns an error result with a formatted message. Error results
// report upstream failures; the job itself still completes and whether it
// is retried is the producer's decision, not this runtime's.
func Errorf(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}
