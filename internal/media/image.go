package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// thumbnailBound is the maximum edge length of generated thumbnails.
const thumbnailBound = 300

// ImageDimensions returns the pixel dimensions of the image at path.
func ImageDimensions(path string) (width, height int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

// MakeImageThumbnail writes a JPEG thumbnail of the image at src to dst,
// scaled to fit within thumbnailBound on both edges while preserving the
// aspect ratio. dst should carry a .jpg extension.
func MakeImageThumbnail(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image for thumbnail: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailBound, thumbnailBound, imaging.Lanczos)
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}
