package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// probeTimeout bounds how long a single ffprobe/ffmpeg invocation may run.
// A corrupt file must not stall the rest of the sweep.
const probeTimeout = 30 * time.Second

// AVMetadata holds the stream properties extracted from a video or audio file.
type AVMetadata struct {
	Width           int
	Height          int
	DurationSeconds float64
}

// ProbeAV extracts dimensions and duration from a video or audio file using
// ffprobe. Audio files report zero dimensions.
func ProbeAV(ctx context.Context, path string) (*AVMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	meta := &AVMetadata{}
	if data.Format != nil {
		meta.DurationSeconds = data.Format.DurationSeconds
	}
	if stream := data.FirstVideoStream(); stream != nil {
		meta.Width = stream.Width
		meta.Height = stream.Height
	}
	return meta, nil
}

// MakeVideoThumbnail extracts a single representative frame from the video at
// src and writes it as a JPEG to dst, bounded to the thumbnail size.
func MakeVideoThumbnail(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	scale := fmt.Sprintf("thumbnail,scale='min(%d,iw)':-2", thumbnailBound)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-vf", scale,
		"-frames:v", "1",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail extraction failed: %w (output: %.200s)", err, string(out))
	}
	return nil
}
