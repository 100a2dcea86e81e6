// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package handler

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/resonatefm/resonate/internal/cache"
	"github.com/resonatefm/resonate/internal/job"
	"github.com/resonatefm/resonate/internal/metrics"
	"github.com/resonatefm/resonate/internal/repository"
	"github.com/resonatefm/resonate/internal/vector"
)

// ForYouConfig tunes the personalization aggregation. The zero value is
// not usable; build configs through DefaultForYouConfig.
type ForYouConfig struct {
	// DecayBase is the geometric recency decay over listening history:
	// entry i gets weight DecayBase^i, most recent first.
	DecayBase float64 `koanf:"decay_base"`

	// HistoryLimit and LikedLimit bound the general signal fetch;
	// RecentHistoryLimit and RecentLikedLimit bound the is_recent variant,
	// which tracks the in-session signal and wants only the latest plays.
	HistoryLimit       int `koanf:"history_limit"`
	RecentHistoryLimit int `koanf:"recent_history_limit"`
	LikedLimit         int `koanf:"liked_limit"`
	RecentLikedLimit   int `koanf:"recent_liked_limit"`

	// Meta-vector blend weights: stored preference, listened average,
	// liked average.
	PrefWeight     float64 `koanf:"pref_weight"`
	ListenedWeight float64 `koanf:"listened_weight"`
	LikedWeight    float64 `koanf:"liked_weight"`

	// Audio-vector blend weights: listened average, liked average.
	AudioListenedWeight float64 `koanf:"audio_listened_weight"`
	AudioLikedWeight    float64 `koanf:"audio_liked_weight"`

	// CacheTTL and RecentCacheTTL bound how long derived vectors stay
	// cached. RecentCacheTTL must be strictly shorter than CacheTTL: the
	// recent variant captures a fast-changing in-session signal.
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	RecentCacheTTL time.Duration `koanf:"recent_cache_ttl"`
}

// DefaultForYouConfig returns the production aggregation defaults.
func DefaultForYouConfig() ForYouConfig {
	return ForYouConfig{
		DecayBase:           0.6,
		HistoryLimit:        10,
		RecentHistoryLimit:  1,
		LikedLimit:          4,
		RecentLikedLimit:    0,
		PrefWeight:          0.2,
		ListenedWeight:      0.6,
		LikedWeight:         0.2,
		AudioListenedWeight: 0.7,
		AudioLikedWeight:    0.3,
		CacheTTL:            10 * time.Second,
		RecentCacheTTL:      5 * time.Second,
	}
}

// PersonalizationResult is the derived per-user vector pair. It is
// ephemeral: always recomputable from source signals, never authoritative.
type PersonalizationResult struct {
	UserMetaVector  vector.Vector `json:"user_meta_vector"`
	UserAudioVector vector.Vector `json:"user_audio_vector"`
}

// PersonalizationHandler processes the personalization queue's job types.
type PersonalizationHandler struct {
	history repository.History
	cache   cache.Cache
	cfg     ForYouConfig
	log     zerolog.Logger
}

// NewPersonalizationHandler wires the personalization handlers.
func NewPersonalizationHandler(history repository.History, c cache.Cache, cfg ForYouConfig, log zerolog.Logger) *PersonalizationHandler {
	return &PersonalizationHandler{
		history: history,
		cache:   c,
		cfg:     cfg,
		log:     log.With().Str("component", "personalization_handler").Logger(),
	}
}

// CacheKey returns the cache key a for_you result is stored under.
func CacheKey(userID string, recent bool) string {
	if recent {
		return "recent:user_vectors:" + userID
	}
	return "user_vectors:" + userID
}

// ForYou derives a user's personalization vectors from listening history,
// liked tracks and the stored preference vector, caches them and returns
// them in the job result. The cache write is best-effort: its failure
// never downgrades a computed result.
func (h *PersonalizationHandler) ForYou(ctx context.Context, j *job.Job) job.Result {
	userID, ok := j.StringField("user_id")
	if !ok {
		h.log.Error().Str("job_id", j.ID).Msg("for_you job without user ID")
		return job.Reject(StatusNoUserID)
	}
	recent := j.BoolField("is_recent")

	historyLimit, likedLimit := h.cfg.HistoryLimit, h.cfg.LikedLimit
	if recent {
		historyLimit, likedLimit = h.cfg.RecentHistoryLimit, h.cfg.RecentLikedLimit
	}

	listened, err := h.history.GetListeningHistory(ctx, userID, historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("failed to load listening history")
		return job.Errorf("load listening history for user %s: %v", userID, err)
	}

	liked, err := h.history.GetLikedSongs(ctx, userID, likedLimit)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("failed to load liked songs")
		return job.Errorf("load liked songs for user %s: %v", userID, err)
	}

	pref, err := h.history.GetUserPreference(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("failed to load user preference")
		return job.Errorf("load preference for user %s: %v", userID, err)
	}

	result, err := h.aggregate(listened, liked, pref)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("vector aggregation failed")
		return job.Errorf("aggregate vectors for user %s: %v", userID, err)
	}

	h.writeCache(ctx, j, userID, recent, result)

	h.log.Info().Str("job_id", j.ID).Str("user_id", userID).Bool("recent", recent).
		Int("listened", len(listened)).Int("liked", len(liked)).
		Msg("personalization vectors derived")
	return job.Done(result)
}

// aggregate runs the pure math: recency-weighted history averages, plain
// liked averages, then one blend per vector space.
func (h *PersonalizationHandler) aggregate(listened, liked []repository.Signal, pref *repository.Preference) (*PersonalizationResult, error) {
	listenedMeta := make([]vector.Vector, len(listened))
	listenedAudio := make([]vector.Vector, len(listened))
	for i, s := range listened {
		listenedMeta[i] = s.MetaVector
		listenedAudio[i] = s.AudioVector
	}

	likedMeta := make([]vector.Vector, len(liked))
	likedAudio := make([]vector.Vector, len(liked))
	for i, s := range liked {
		likedMeta[i] = s.MetaVector
		likedAudio[i] = s.AudioVector
	}

	weights := vector.DecayWeights(len(listened), h.cfg.DecayBase)

	avgListenedMeta, err := vector.WeightedAverage(listenedMeta, weights)
	if err != nil {
		return nil, err
	}
	avgListenedAudio, err := vector.WeightedAverage(listenedAudio, weights)
	if err != nil {
		return nil, err
	}
	avgLikedMeta, err := vector.Average(likedMeta)
	if err != nil {
		return nil, err
	}
	avgLikedAudio, err := vector.Average(likedAudio)
	if err != nil {
		return nil, err
	}

	var prefMeta vector.Vector
	if pref != nil {
		prefMeta = pref.MetaVector
	}

	return &PersonalizationResult{
		UserMetaVector: vector.WeightedBlend(
			prefMeta, avgListenedMeta, avgLikedMeta,
			h.cfg.PrefWeight, h.cfg.ListenedWeight, h.cfg.LikedWeight,
		),
		UserAudioVector: vector.WeightedBlend(
			avgListenedAudio, avgLikedAudio, nil,
			h.cfg.AudioListenedWeight, h.cfg.AudioLikedWeight, 0,
		),
	}, nil
}

func (h *PersonalizationHandler) writeCache(ctx context.Context, j *job.Job, userID string, recent bool, result *PersonalizationResult) {
	value, err := json.Marshal(result)
	if err != nil {
		metrics.RecordCacheWrite("error")
		h.log.Warn().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("failed to serialize personalization result for cache")
		return
	}

	ttl := h.cfg.CacheTTL
	if recent {
		ttl = h.cfg.RecentCacheTTL
	}

	if err := h.cache.Set(ctx, CacheKey(userID, recent), value, ttl); err != nil {
		metrics.RecordCacheWrite("error")
		h.log.Warn().Err(err).Str("job_id", j.ID).Str("user_id", userID).
			Msg("personalization cache write failed")
		return
	}
	metrics.RecordCacheWrite("ok")
}

// Trending is a stub kept so the personalization queue's type enumeration
// stays exhaustive. Ranking runs in the analytics service today.
func (h *PersonalizationHandler) Trending(ctx context.Context, j *job.Job) job.Result {
	return job.Done([]any{})
}
