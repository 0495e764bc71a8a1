package media

import (
	"strings"

	"github.com/chatvault/chatvault/internal/models"
)

var imageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/bmp":     true,
	"image/tiff":    true,
	"image/svg+xml": true,
	"image/heic":    true,
	"image/heif":    true,
}

var videoTypes = map[string]bool{
	"video/mp4":        true,
	"video/mpeg":       true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/3gpp":       true,
}

var audioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/ogg":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/aac":   true,
	"audio/flac":  true,
	"audio/amr":   true,
}

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.google-apps.document":     true,
	"application/vnd.google-apps.spreadsheet":  true,
	"application/vnd.google-apps.presentation": true,
	"application/rtf": true,
	"text/plain":      true,
	"text/csv":        true,
	"text/html":       true,
}

var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-7z-compressed":  true,
	"application/x-rar-compressed": true,
	"application/vnd.rar":          true,
}

// Classify maps a content-type string to its semantic media category.
// It is total: unknown, malformed, or empty content types map to MediaOther.
func Classify(contentType string) models.MediaType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	// Strip parameters such as "; charset=utf-8".
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if ct == "" {
		return models.MediaOther
	}

	switch {
	case imageTypes[ct]:
		return models.MediaImage
	case videoTypes[ct]:
		return models.MediaVideo
	case audioTypes[ct]:
		return models.MediaAudio
	case documentTypes[ct]:
		return models.MediaDocument
	case archiveTypes[ct]:
		return models.MediaArchive
	}

	// Fall back on the major type for subtypes not in the tables.
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.MediaImage
	case strings.HasPrefix(ct, "video/"):
		return models.MediaVideo
	case strings.HasPrefix(ct, "audio/"):
		return models.MediaAudio
	}

	return models.MediaOther
}
