// Package fetch downloads attachment binaries and derives their media
// metadata. Failures here are strictly per-attachment: Fetch always returns
// a usable record, never an error, so one bad payload cannot take down a
// message or a sweep.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chatvault/chatvault/internal/media"
	"github.com/chatvault/chatvault/internal/models"
)

// MediaDownloader streams bytes for an opaque chat attachment resource.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, resourceName string) (io.ReadCloser, error)
}

// FileStore looks up and streams remote-store (Drive-like) files.
type FileStore interface {
	GetFileMetadata(ctx context.Context, fileID string) (*models.FileMetadata, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// errTooLarge aborts a download whose payload exceeds the size ceiling. It
// maps to the skipped state, not failed.
var errTooLarge = errors.New("attachment exceeds size ceiling")

// Fetcher downloads attachments into local storage.
type Fetcher struct {
	media      MediaDownloader
	files      FileStore
	httpClient *http.Client

	storageRoot     string
	maxBytes        int64
	downloadTimeout time.Duration

	now func() time.Time
}

// Options configures a Fetcher.
type Options struct {
	StorageRoot     string
	MaxBytes        int64
	DownloadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = 50 * 1024 * 1024
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 60 * time.Second
	}
	if o.StorageRoot == "" {
		o.StorageRoot = "./media"
	}
	return o
}

// NewFetcher creates a fetcher. httpClient must be authenticated for the
// account being synced; it is used for direct download URLs.
func NewFetcher(mediaDownloader MediaDownloader, files FileStore, httpClient *http.Client, opts Options) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		media:           mediaDownloader,
		files:           files,
		httpClient:      httpClient,
		storageRoot:     opts.StorageRoot,
		maxBytes:        opts.MaxBytes,
		downloadTimeout: opts.DownloadTimeout,
		now:             time.Now,
	}
}

// Fetch downloads one attachment, trying each available retrieval strategy in
// order until one yields bytes: remote-store file, chat media resource,
// direct download URL. The returned record always carries a terminal
// download state (completed, skipped, or failed).
func (f *Fetcher) Fetch(ctx context.Context, descriptor models.AttachmentDescriptor, conversationRemoteID string) *models.Attachment {
	att := &models.Attachment{
		SourceID:      descriptor.DeriveSourceID(),
		ContentType:   descriptor.ContentType,
		MediaType:     media.Classify(descriptor.ContentType),
		DisplayName:   displayName(descriptor),
		FileSizeBytes: descriptor.DeclaredSizeBytes,
		DownloadState: models.DownloadDownloading,
	}

	if descriptor.DeclaredSizeBytes > f.maxBytes {
		att.DownloadState = models.DownloadSkipped
		att.DownloadError = fmt.Sprintf("declared size %d exceeds ceiling %d", descriptor.DeclaredSizeBytes, f.maxBytes)
		return att
	}

	strategies := f.strategies(descriptor)
	if len(strategies) == 0 {
		att.DownloadState = models.DownloadFailed
		att.DownloadError = "no usable retrieval strategy for attachment"
		return att
	}

	var lastErr error
	for _, strategy := range strategies {
		downloadCtx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
		path, size, err := f.downloadToStorage(downloadCtx, strategy, att.DisplayName, conversationRemoteID)
		cancel()

		if err == nil {
			att.LocalStoragePath = path
			att.FileSizeBytes = size
			att.DownloadState = models.DownloadCompleted
			att.DownloadError = ""
			downloadedAt := f.now()
			att.DownloadedAt = &downloadedAt
			f.enrichMetadata(ctx, att)
			return att
		}

		if errors.Is(err, errTooLarge) {
			att.DownloadState = models.DownloadSkipped
			att.DownloadError = fmt.Sprintf("payload exceeds ceiling of %d bytes", f.maxBytes)
			return att
		}

		lastErr = err
	}

	att.DownloadState = models.DownloadFailed
	att.DownloadError = lastErr.Error()
	return att
}

type strategy struct {
	name string
	open func(ctx context.Context) (io.ReadCloser, error)
}

// strategies returns the retrieval strategies the descriptor supports, in
// preference order.
func (f *Fetcher) strategies(descriptor models.AttachmentDescriptor) []strategy {
	var out []strategy

	if descriptor.DriveFileID != "" && f.files != nil {
		fileID := descriptor.DriveFileID
		out = append(out, strategy{
			name: "drive",
			open: func(ctx context.Context) (io.ReadCloser, error) {
				meta, err := f.files.GetFileMetadata(ctx, fileID)
				if err != nil {
					return nil, err
				}
				if meta.Size > f.maxBytes {
					return nil, errTooLarge
				}
				return f.files.DownloadFile(ctx, fileID)
			},
		})
	}

	if descriptor.ResourceName != "" && f.media != nil {
		resourceName := descriptor.ResourceName
		out = append(out, strategy{
			name: "media",
			open: func(ctx context.Context) (io.ReadCloser, error) {
				return f.media.DownloadMedia(ctx, resourceName)
			},
		})
	}

	if descriptor.DownloadURI != "" && f.httpClient != nil {
		uri := descriptor.DownloadURI
		out = append(out, strategy{
			name: "url",
			open: func(ctx context.Context) (io.ReadCloser, error) {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
				if err != nil {
					return nil, err
				}
				resp, err := f.httpClient.Do(req)
				if err != nil {
					return nil, err
				}
				if resp.StatusCode != http.StatusOK {
					_ = resp.Body.Close()
					return nil, fmt.Errorf("download URL returned status %d", resp.StatusCode)
				}
				return resp.Body, nil
			},
		})
	}

	return out
}

// downloadToStorage streams one strategy's payload into local storage and
// returns the path and authoritative on-disk size.
func (f *Fetcher) downloadToStorage(ctx context.Context, s strategy, name, conversationRemoteID string) (string, int64, error) {
	reader, err := s.open(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("%s strategy failed: %w", s.name, err)
	}
	defer func() { _ = reader.Close() }()

	dir := filepath.Join(f.storageRoot, media.SanitizeFileName(conversationRemoteID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(dir, media.StorageFileName(name, f.now()))
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create storage file: %w", err)
	}

	written, err := io.Copy(file, io.LimitReader(reader, f.maxBytes+1))
	closeErr := file.Close()

	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("%s strategy download failed: %w", s.name, err)
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to close storage file: %w", closeErr)
	}
	if written > f.maxBytes {
		_ = os.Remove(path)
		return "", 0, errTooLarge
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat downloaded file: %w", err)
	}

	return path, info.Size(), nil
}

// enrichMetadata derives dimensions, duration, and a thumbnail for media
// attachments. Failures here downgrade metadata richness only; the download
// stays completed.
func (f *Fetcher) enrichMetadata(ctx context.Context, att *models.Attachment) {
	switch att.MediaType {
	case models.MediaImage:
		width, height, err := media.ImageDimensions(att.LocalStoragePath)
		if err != nil {
			log.Printf("Warning: failed to read image dimensions for %s: %v", att.LocalStoragePath, err)
			return
		}
		att.Width = width
		att.Height = height

		thumbPath := f.thumbnailPath(att.LocalStoragePath)
		if err := media.MakeImageThumbnail(att.LocalStoragePath, thumbPath); err != nil {
			log.Printf("Warning: failed to generate image thumbnail for %s: %v", att.LocalStoragePath, err)
			return
		}
		att.ThumbnailPath = thumbPath

	case models.MediaVideo:
		meta, err := media.ProbeAV(ctx, att.LocalStoragePath)
		if err != nil {
			log.Printf("Warning: failed to probe video %s: %v", att.LocalStoragePath, err)
			return
		}
		att.Width = meta.Width
		att.Height = meta.Height
		att.DurationSeconds = meta.DurationSeconds

		thumbPath := f.thumbnailPath(att.LocalStoragePath)
		if err := media.MakeVideoThumbnail(ctx, att.LocalStoragePath, thumbPath); err != nil {
			log.Printf("Warning: failed to extract video thumbnail for %s: %v", att.LocalStoragePath, err)
			return
		}
		att.ThumbnailPath = thumbPath

	case models.MediaAudio:
		meta, err := media.ProbeAV(ctx, att.LocalStoragePath)
		if err != nil {
			log.Printf("Warning: failed to probe audio %s: %v", att.LocalStoragePath, err)
			return
		}
		att.DurationSeconds = meta.DurationSeconds
	}
}

// thumbnailPath maps a stored file path to its thumbnail location.
func (f *Fetcher) thumbnailPath(storagePath string) string {
	base := filepath.Base(storagePath)
	ext := filepath.Ext(base)
	return filepath.Join(f.storageRoot, "thumbnails", base[:len(base)-len(ext)]+".jpg")
}

func displayName(descriptor models.AttachmentDescriptor) string {
	if descriptor.ContentName != "" {
		return descriptor.ContentName
	}
	if descriptor.Name != "" {
		return filepath.Base(descriptor.Name)
	}
	return "attachment"
}
