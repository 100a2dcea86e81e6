// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package embedder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/resonatefm/resonate/internal/metrics"
	"github.com/resonatefm/resonate/internal/vector"
)

// HTTPConfig holds the inference service client settings.
type HTTPConfig struct {
	// BaseURL is the inference service root, e.g. http://embeddings:8100.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds a single inference request. Audio extraction can
	// legitimately take tens of seconds for long tracks.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds retries for text embedding. Audio requests are
	// never retried because the request body is a consumed stream.
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the base delay between retries, doubled per attempt.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// RequestsPerSecond caps the client-side request rate. Zero disables
	// the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// BreakerFailureThreshold is the consecutive-failure count that
	// opens the circuit.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// DefaultHTTPConfig returns production defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:                 "http://127.0.0.1:8100",
		Timeout:                 60 * time.Second,
		MaxRetries:              3,
		RetryBackoff:            500 * time.Millisecond,
		RequestsPerSecond:       10,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// HTTPClient implements Embedder against the platform's inference service.
type HTTPClient struct {
	cfg     HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[vector.Vector]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewHTTPClient creates an inference client with breaker and rate limit.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPClient(cfg HTTPConfig, logger zerolog.Logger) *HTTPClient {
	def := DefaultHTTPConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[vector.Vector](gobreaker.Settings{
		Name:    "embedder",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("embedder circuit breaker state changed")
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}
}

// textRequest is the JSON body for text embedding.
type textRequest struct {
	Text string `json:"text"`
}

// embeddingResponse is the inference service's reply for both operations.
type embeddingResponse struct {
	Vector []float64 `json:"vector"`
	Model  string    `json:"model,omitempty"`
}

// EmbedText embeds a text with bounded retries behind the breaker.
func (c *HTTPClient) EmbedText(ctx context.Context, text string) (vector.Vector, error) {
	body, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrEmbedding, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff << (attempt - 1)
			c.logger.Warn().Err(lastErr).Dur("backoff", backoff).Int("attempt", attempt).
				Msg("text embedding failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrEmbedding, ctx.Err())
			}
		}

		vec, err := c.do(ctx, "text", "/v1/embeddings/text", "application/json", bytes.NewReader(body))
		if err == nil {
			return vec, nil
		}
		lastErr = err

		// An open breaker will not heal within this job's retry budget.
		if isBreakerOpen(err) {
			break
		}
	}

	return nil, lastErr
}

// ExtractAudioFeatures embeds an audio stream. The stream is consumed by
// the request, so a failure is returned to the caller instead of retried.
func (c *HTTPClient) ExtractAudioFeatures(ctx context.Context, audio io.Reader) (vector.Vector, error) {
	return c.do(ctx, "audio", "/v1/embeddings/audio", "application/octet-stream", audio)
}

// do runs one inference request through the limiter and breaker.
func (c *HTTPClient) do(ctx context.Context, operation, path, contentType string, body io.Reader) (vector.Vector, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
	}

	vec, err := c.breaker.Execute(func() (vector.Vector, error) {
		return c.request(ctx, path, contentType, body)
	})
	if err != nil {
		status := "error"
		if isBreakerOpen(err) {
			status = "rejected"
		}
		metrics.RecordEmbedderRequest(operation, status)
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	metrics.RecordEmbedderRequest(operation, "ok")
	return vec, nil
}

func (c *HTTPClient) request(ctx context.Context, path, contentType string, body io.Reader) (vector.Vector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, payload)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if len(decoded.Vector) == 0 {
		return nil, fmt.Errorf("inference service returned an empty vector")
	}

	return vector.Vector(decoded.Vector), nil
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
