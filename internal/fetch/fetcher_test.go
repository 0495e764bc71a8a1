package fetch

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/models"
)

type fakeMediaDownloader struct {
	content []byte
	err     error
	calls   int
}

func (d *fakeMediaDownloader) DownloadMedia(_ context.Context, _ string) (io.ReadCloser, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return io.NopCloser(bytes.NewReader(d.content)), nil
}

type fakeFileStore struct {
	meta    *models.FileMetadata
	content []byte
	metaErr error
	dlErr   error
	calls   int
}

func (s *fakeFileStore) GetFileMetadata(_ context.Context, _ string) (*models.FileMetadata, error) {
	if s.metaErr != nil {
		return nil, s.metaErr
	}
	return s.meta, nil
}

func (s *fakeFileStore) DownloadFile(_ context.Context, _ string) (io.ReadCloser, error) {
	s.calls++
	if s.dlErr != nil {
		return nil, s.dlErr
	}
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func newTestFetcher(t *testing.T, media *fakeMediaDownloader, files *fakeFileStore, maxBytes int64) *Fetcher {
	t.Helper()
	return NewFetcher(media, files, http.DefaultClient, Options{
		StorageRoot: t.TempDir(),
		MaxBytes:    maxBytes,
	})
}

func TestFetchMediaResource(t *testing.T) {
	payload := []byte("hello attachment")
	media := &fakeMediaDownloader{content: payload}
	fetcher := newTestFetcher(t, media, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		Name:         "spaces/AAA/messages/BBB/attachments/CCC",
		ContentName:  "notes.txt",
		ContentType:  "text/plain",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.Empty(t, att.DownloadError)
	assert.Equal(t, int64(len(payload)), att.FileSizeBytes)
	assert.Equal(t, "CCC", att.SourceID)
	assert.Equal(t, models.MediaDocument, att.MediaType)
	require.NotNil(t, att.DownloadedAt)

	data, err := os.ReadFile(att.LocalStoragePath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchDirectURL(t *testing.T) {
	payload := []byte("url payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, nil, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName: "img.png",
		ContentType: "image/png",
		DownloadURI: server.URL + "/img.png",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.Equal(t, int64(len(payload)), att.FileSizeBytes)
}

func TestFetchDeclaredSizeOverCeilingIsSkipped(t *testing.T) {
	media := &fakeMediaDownloader{content: []byte("x")}
	fetcher := newTestFetcher(t, media, nil, 100)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:       "huge.bin",
		ResourceName:      "media-resource-1",
		DeclaredSizeBytes: 101,
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadSkipped, att.DownloadState)
	assert.Contains(t, att.DownloadError, "exceeds ceiling")
	assert.Zero(t, media.calls, "no download should be attempted when declared size is over the ceiling")
	assert.Empty(t, att.LocalStoragePath)
}

func TestFetchStreamedSizeOverCeilingIsSkipped(t *testing.T) {
	// Payload is over the ceiling but the descriptor does not declare a size.
	media := &fakeMediaDownloader{content: bytes.Repeat([]byte("a"), 200)}
	fetcher := newTestFetcher(t, media, nil, 100)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:  "sneaky.bin",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadSkipped, att.DownloadState)
	assert.Empty(t, att.LocalStoragePath)

	// The partial file must not be left behind.
	entries, err := os.ReadDir(filepath.Join(fetcher.storageRoot, "AAA"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestFetchDriveSizeGate(t *testing.T) {
	files := &fakeFileStore{meta: &models.FileMetadata{Name: "big.mov", Size: 500}}
	fetcher := newTestFetcher(t, nil, files, 100)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName: "big.mov",
		DriveFileID: "drive-file-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadSkipped, att.DownloadState)
	assert.Zero(t, files.calls, "file content should not be requested when metadata size is over the ceiling")
}

func TestFetchFallsBackToNextStrategy(t *testing.T) {
	payload := []byte("fallback worked")
	files := &fakeFileStore{metaErr: errors.New("drive unavailable")}
	media := &fakeMediaDownloader{content: payload}
	fetcher := newTestFetcher(t, media, files, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:  "doc.pdf",
		ContentType:  "application/pdf",
		DriveFileID:  "drive-file-1",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.Equal(t, 1, media.calls)
	assert.Equal(t, "drive:drive-file-1", att.SourceID)
}

func TestFetchAllStrategiesFail(t *testing.T) {
	files := &fakeFileStore{metaErr: errors.New("drive unavailable")}
	media := &fakeMediaDownloader{err: errors.New("media gone")}
	fetcher := newTestFetcher(t, media, files, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:  "doc.pdf",
		DriveFileID:  "drive-file-1",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadFailed, att.DownloadState)
	assert.Contains(t, att.DownloadError, "media gone")
	assert.Empty(t, att.LocalStoragePath)
}

func TestFetchNoUsableReference(t *testing.T) {
	fetcher := newTestFetcher(t, nil, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName: "orphan.bin",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadFailed, att.DownloadState)
	assert.Contains(t, att.DownloadError, "no usable retrieval strategy")
	assert.Equal(t, "orphan.bin", att.SourceID)
}

func TestFetchDirectURLNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, nil, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName: "gone.png",
		DownloadURI: server.URL + "/gone.png",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadFailed, att.DownloadState)
	assert.Contains(t, att.DownloadError, "status 404")
}

func TestFetchImageGetsDimensionsAndThumbnail(t *testing.T) {
	img := imaging.New(600, 400, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	media := &fakeMediaDownloader{content: buf.Bytes()}
	fetcher := newTestFetcher(t, media, nil, int64(buf.Len())+1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		Name:         "spaces/AAA/messages/BBB/attachments/IMG1",
		ContentName:  "photo.png",
		ContentType:  "image/png",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	require.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.Equal(t, 600, att.Width)
	assert.Equal(t, 400, att.Height)

	require.NotEmpty(t, att.ThumbnailPath, "a decodable image must get a thumbnail")
	thumb, err := imaging.Open(att.ThumbnailPath)
	require.NoError(t, err, "thumbnail must exist and decode")
	bounds := thumb.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 300)
	assert.LessOrEqual(t, bounds.Dy(), 300)
}

func TestFetchUndecodableImageStaysCompleted(t *testing.T) {
	// Mislabeled payload: decoding fails, metadata is dropped, but the
	// download itself must not be downgraded.
	media := &fakeMediaDownloader{content: []byte("definitely not a png")}
	fetcher := newTestFetcher(t, media, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:  "broken.png",
		ContentType:  "image/png",
		ResourceName: "media-resource-1",
	}, "spaces/AAA")

	assert.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.Zero(t, att.Width)
	assert.Zero(t, att.Height)
	assert.Empty(t, att.ThumbnailPath)
}

func TestFetchStoresUnderConversationDirectory(t *testing.T) {
	media := &fakeMediaDownloader{content: []byte("x")}
	fetcher := newTestFetcher(t, media, nil, 1024)

	att := fetcher.Fetch(context.Background(), models.AttachmentDescriptor{
		ContentName:  "a file with spaces.txt",
		ResourceName: "media-resource-1",
	}, "spaces/ABCDEF")

	require.Equal(t, models.DownloadCompleted, att.DownloadState)
	assert.True(t, strings.HasPrefix(att.LocalStoragePath, filepath.Join(fetcher.storageRoot, "ABCDEF")),
		"expected path under conversation directory, got %q", att.LocalStoragePath)
	assert.Contains(t, att.LocalStoragePath, "a_file_with_spaces.txt")
}
