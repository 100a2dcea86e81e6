// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the S3-compatible storage settings.
type MinioConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`

	// Bucket is the audio bucket name; it also serves as the marker used
	// to resolve object keys out of stored audio URLs.
	Bucket string `koanf:"bucket"`

	// FFProbePath overrides the ffprobe binary used for duration
	// probing. Empty means "ffprobe" on PATH.
	FFProbePath string `koanf:"ffprobe_path"`
}

// Minio implements Store on a MinIO (or AWS S3) endpoint.
type Minio struct {
	client      *minio.Client
	ffprobePath string
}

// NewMinio connects to the storage endpoint.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage at %s: %w", cfg.Endpoint, err)
	}

	return &Minio{client: client, ffprobePath: cfg.FFProbePath}, nil
}

// Download opens a streaming read on bucket/key. A missing object is
// reported as ErrNotFound.
func (m *Minio) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	// GetObject is lazy; Stat forces the request so missing objects fail
	// here rather than on the first Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return nil, fmt.Errorf("download %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	return obj, nil
}

// ProbeDuration shells out to ffprobe, feeding the stream on stdin.
func (m *Minio) ProbeDuration(ctx context.Context, audio io.Reader) (float64, error) {
	return ffprobeDuration(ctx, m.ffprobePath, audio)
}
