package db

import (
	"context"
	"testing"
	"time"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/chatvault/chatvault/internal/testutil"
)

func TestSaveAndGetAttachment(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	accountID, err := GetOrCreateAccount(ctx, pool, "owner@corp.example")
	if err != nil {
		t.Fatalf("GetOrCreateAccount failed: %v", err)
	}
	conversation := &models.Conversation{AccountID: accountID, RemoteID: "spaces/AAA", Kind: models.KindSpace}
	if err := SaveConversation(ctx, pool, conversation); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	message := &models.Message{ConversationID: conversation.ID, RemoteID: "spaces/AAA/messages/m1", Text: "photo"}
	if err := SaveMessage(ctx, pool, message); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	t.Run("saves and retrieves attachment", func(t *testing.T) {
		downloadedAt := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
		attachment := &models.Attachment{
			MessageID:        message.ID,
			SourceID:         "src-1",
			ContentType:      "image/jpeg",
			MediaType:        models.MediaImage,
			DisplayName:      "photo.jpg",
			FileSizeBytes:    12345,
			LocalStoragePath: "/media/AAA/1-photo.jpg",
			DownloadState:    models.DownloadCompleted,
			Width:            800,
			Height:           600,
			DownloadedAt:     &downloadedAt,
		}

		if err := SaveAttachment(ctx, pool, attachment); err != nil {
			t.Fatalf("SaveAttachment failed: %v", err)
		}
		if attachment.ID == "" {
			t.Error("Expected attachment ID to be set")
		}

		retrieved, err := GetAttachmentBySourceID(ctx, pool, message.ID, "src-1")
		if err != nil {
			t.Fatalf("GetAttachmentBySourceID failed: %v", err)
		}
		if retrieved.LocalStoragePath != "/media/AAA/1-photo.jpg" {
			t.Errorf("Expected storage path to round-trip, got %q", retrieved.LocalStoragePath)
		}
		if retrieved.Width != 800 || retrieved.Height != 600 {
			t.Errorf("Expected dimensions 800x600, got %dx%d", retrieved.Width, retrieved.Height)
		}
	})

	t.Run("completed download is never overwritten", func(t *testing.T) {
		downloadedAt := time.Now().UTC()
		completed := &models.Attachment{
			MessageID:        message.ID,
			SourceID:         "src-2",
			ContentType:      "image/png",
			MediaType:        models.MediaImage,
			DisplayName:      "diagram.png",
			FileSizeBytes:    999,
			LocalStoragePath: "/media/AAA/2-diagram.png",
			DownloadState:    models.DownloadCompleted,
			DownloadedAt:     &downloadedAt,
		}
		if err := SaveAttachment(ctx, pool, completed); err != nil {
			t.Fatalf("SaveAttachment failed: %v", err)
		}

		failed := &models.Attachment{
			MessageID:     message.ID,
			SourceID:      "src-2",
			ContentType:   "image/png",
			MediaType:     models.MediaImage,
			DownloadState: models.DownloadFailed,
			DownloadError: "network error on re-sync",
		}
		if err := SaveAttachment(ctx, pool, failed); err != nil {
			t.Fatalf("SaveAttachment with failed state returned error: %v", err)
		}
		if failed.ID != completed.ID {
			t.Errorf("Expected preserved row's ID %s, got %s", completed.ID, failed.ID)
		}

		retrieved, err := GetAttachmentBySourceID(ctx, pool, message.ID, "src-2")
		if err != nil {
			t.Fatalf("GetAttachmentBySourceID failed: %v", err)
		}
		if retrieved.DownloadState != models.DownloadCompleted {
			t.Errorf("Expected download state to stay completed, got %s", retrieved.DownloadState)
		}
		if retrieved.LocalStoragePath != "/media/AAA/2-diagram.png" {
			t.Errorf("Expected storage path preserved, got %q", retrieved.LocalStoragePath)
		}
	})

	t.Run("failed download is retried and can complete", func(t *testing.T) {
		failed := &models.Attachment{
			MessageID:     message.ID,
			SourceID:      "src-3",
			ContentType:   "application/pdf",
			MediaType:     models.MediaDocument,
			DownloadState: models.DownloadFailed,
			DownloadError: "timeout",
		}
		if err := SaveAttachment(ctx, pool, failed); err != nil {
			t.Fatalf("SaveAttachment failed: %v", err)
		}

		downloadedAt := time.Now().UTC()
		completed := &models.Attachment{
			MessageID:        message.ID,
			SourceID:         "src-3",
			ContentType:      "application/pdf",
			MediaType:        models.MediaDocument,
			FileSizeBytes:    4242,
			LocalStoragePath: "/media/AAA/3-doc.pdf",
			DownloadState:    models.DownloadCompleted,
			DownloadedAt:     &downloadedAt,
		}
		if err := SaveAttachment(ctx, pool, completed); err != nil {
			t.Fatalf("SaveAttachment failed on retry: %v", err)
		}

		retrieved, err := GetAttachmentBySourceID(ctx, pool, message.ID, "src-3")
		if err != nil {
			t.Fatalf("GetAttachmentBySourceID failed: %v", err)
		}
		if retrieved.DownloadState != models.DownloadCompleted {
			t.Errorf("Expected download state completed after retry, got %s", retrieved.DownloadState)
		}
		if retrieved.DownloadError != "" {
			t.Errorf("Expected download error cleared, got %q", retrieved.DownloadError)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := GetAttachmentBySourceID(ctx, pool, message.ID, "src-nope")
		if err != ErrAttachmentNotFound {
			t.Errorf("Expected ErrAttachmentNotFound, got %v", err)
		}
	})
}

func TestGetAttachmentsForMessage(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	accountID, err := GetOrCreateAccount(ctx, pool, "owner@corp.example")
	if err != nil {
		t.Fatalf("GetOrCreateAccount failed: %v", err)
	}
	conversation := &models.Conversation{AccountID: accountID, RemoteID: "spaces/BBB", Kind: models.KindSpace}
	if err := SaveConversation(ctx, pool, conversation); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	message := &models.Message{ConversationID: conversation.ID, RemoteID: "spaces/BBB/messages/m1", Text: "files"}
	if err := SaveMessage(ctx, pool, message); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	for _, sourceID := range []string{"b", "a", "c"} {
		att := &models.Attachment{
			MessageID:     message.ID,
			SourceID:      sourceID,
			ContentType:   "application/pdf",
			MediaType:     models.MediaDocument,
			DownloadState: models.DownloadPending,
		}
		if err := SaveAttachment(ctx, pool, att); err != nil {
			t.Fatalf("SaveAttachment failed: %v", err)
		}
	}

	attachments, err := GetAttachmentsForMessage(ctx, pool, message.ID)
	if err != nil {
		t.Fatalf("GetAttachmentsForMessage failed: %v", err)
	}

	if len(attachments) != 3 {
		t.Fatalf("Expected 3 attachments, got %d", len(attachments))
	}
	for i, want := range []string{"a", "b", "c"} {
		if attachments[i].SourceID != want {
			t.Errorf("Expected attachment %d to have SourceID %s, got %s", i, want, attachments[i].SourceID)
		}
	}
}
