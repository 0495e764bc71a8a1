package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaType is the semantic category of an attachment's content type.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
	MediaArchive  MediaType = "archive"
	MediaOther    MediaType = "other"
)

// DownloadState tracks the lifecycle of an attachment download.
type DownloadState string

const (
	DownloadPending     DownloadState = "pending"
	DownloadDownloading DownloadState = "downloading"
	DownloadCompleted   DownloadState = "completed"
	DownloadFailed      DownloadState = "failed"
	DownloadSkipped     DownloadState = "skipped"
)

// Attachment is one binary payload referenced by a Message. SourceID
// de-duplicates the attachment across repeated syncs; once a row reaches
// DownloadCompleted with a LocalStoragePath it is never overwritten by an
// entry lacking one.
type Attachment struct {
	ID               string        `json:"id"`
	MessageID        string        `json:"message_id"`
	SourceID         string        `json:"source_id"`
	ContentType      string        `json:"content_type"`
	MediaType        MediaType     `json:"media_type"`
	DisplayName      string        `json:"display_name"`
	FileSizeBytes    int64         `json:"file_size_bytes"`
	LocalStoragePath string        `json:"local_storage_path,omitempty"`
	DownloadState    DownloadState `json:"download_state"`
	DownloadError    string        `json:"download_error,omitempty"`
	Width            int           `json:"width,omitempty"`
	Height           int           `json:"height,omitempty"`
	DurationSeconds  float64       `json:"duration_seconds,omitempty"`
	ThumbnailPath    string        `json:"thumbnail_path,omitempty"`
	DownloadedAt     *time.Time    `json:"downloaded_at,omitempty"`
}

// AttachmentDescriptor is the normalized form of a remote attachment
// reference. The remote API exposes several shapes (Drive-backed files,
// opaque media resource names, direct download URLs); they are folded into
// this one tagged type at the ingestion boundary before any business logic
// runs. At most one of DriveFileID / ResourceName / DownloadURI is expected
// to be set, but the fetcher tolerates any combination.
type AttachmentDescriptor struct {
	// Name is the remote attachment resource identifier, e.g.
	// "spaces/AAA/messages/BBB/attachments/CCC".
	Name        string
	ContentName string
	ContentType string

	DriveFileID  string
	ResourceName string
	DownloadURI  string
	ThumbnailURI string

	DeclaredSizeBytes int64
}

// DeriveSourceID computes the stable-enough de-duplication key for the
// descriptor: the remote resource identifier when present, then the content
// name, then a random fallback.
func (d AttachmentDescriptor) DeriveSourceID() string {
	if d.DriveFileID != "" {
		return "drive:" + d.DriveFileID
	}
	if d.Name != "" {
		// Only the trailing segment is stable across list/get responses.
		if idx := strings.LastIndex(d.Name, "/"); idx >= 0 {
			return d.Name[idx+1:]
		}
		return d.Name
	}
	if d.ContentName != "" {
		return d.ContentName
	}
	return "rand:" + uuid.NewString()
}

// FileMetadata describes a remote-store (Drive-like) file.
type FileMetadata struct {
	Name         string
	MimeType     string
	Size         int64
	ContentURL   string
	ThumbnailURL string
}
