// Package drive wraps the Drive API for attachments whose bytes live in the
// remote file store rather than the chat service itself.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/chatvault/chatvault/internal/models"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Client talks to the Drive API for one impersonated account.
type Client struct {
	svc *drive.Service
}

// NewClient creates a Drive API client over an already-authenticated HTTP
// client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// GetFileMetadata returns size and content/thumbnail URLs for a stored file.
func (c *Client) GetFileMetadata(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	file, err := c.svc.Files.Get(fileID).
		Fields("id", "name", "mimeType", "size", "webContentLink", "thumbnailLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file metadata for %s: %w", fileID, err)
	}

	return &models.FileMetadata{
		Name:         file.Name,
		MimeType:     file.MimeType,
		Size:         file.Size,
		ContentURL:   file.WebContentLink,
		ThumbnailURL: file.ThumbnailLink,
	}, nil
}

// DownloadFile streams a stored file's content. The caller owns closing the
// returned reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return resp.Body, nil
}
