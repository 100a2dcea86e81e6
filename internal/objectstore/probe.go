// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// ffprobeDuration extracts the container-reported duration from an audio
// stream by piping it into ffprobe. ffprobe must be installed on the
// worker host; it handles every format the platform ingests (mp3, flac,
// ogg, wav) without pulling a decoder into this process.
func ffprobeDuration(ctx context.Context, ffprobePath string, audio io.Reader) (float64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0",
	)
	cmd.Stdin = audio

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("probe duration: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: unparseable ffprobe output %q: %w", raw, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("probe duration: negative duration %f", seconds)
	}

	return seconds, nil
}
