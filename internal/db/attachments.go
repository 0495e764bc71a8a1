package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SaveAttachment saves or updates an attachment, keyed by (message_id,
// source_id). The WHERE guard on the upsert is the preservation invariant: a
// row whose download already completed is never replaced, no matter what the
// incoming row carries. In that case the existing row is left untouched and
// the attachment's ID is populated from it.
func SaveAttachment(ctx context.Context, pool *pgxpool.Pool, attachment *models.Attachment) error {
	var attachmentID string

	err := pool.QueryRow(ctx, `
		INSERT INTO attachments (
			message_id,
			source_id,
			content_type,
			media_type,
			display_name,
			file_size_bytes,
			local_storage_path,
			download_state,
			download_error,
			width,
			height,
			duration_seconds,
			thumbnail_path,
			downloaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (message_id, source_id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			media_type = EXCLUDED.media_type,
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), attachments.display_name),
			file_size_bytes = EXCLUDED.file_size_bytes,
			local_storage_path = EXCLUDED.local_storage_path,
			download_state = EXCLUDED.download_state,
			download_error = EXCLUDED.download_error,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			duration_seconds = EXCLUDED.duration_seconds,
			thumbnail_path = EXCLUDED.thumbnail_path,
			downloaded_at = EXCLUDED.downloaded_at
		WHERE attachments.download_state <> 'completed'
		RETURNING id
	`,
		attachment.MessageID,
		attachment.SourceID,
		attachment.ContentType,
		attachment.MediaType,
		attachment.DisplayName,
		attachment.FileSizeBytes,
		attachment.LocalStoragePath,
		attachment.DownloadState,
		attachment.DownloadError,
		attachment.Width,
		attachment.Height,
		attachment.DurationSeconds,
		attachment.ThumbnailPath,
		attachment.DownloadedAt,
	).Scan(&attachmentID)

	if errors.Is(err, pgx.ErrNoRows) {
		// The guard refused the update: a completed download already exists
		// for this source_id. Keep it.
		existing, getErr := GetAttachmentBySourceID(ctx, pool, attachment.MessageID, attachment.SourceID)
		if getErr != nil {
			return fmt.Errorf("failed to load preserved attachment: %w", getErr)
		}
		attachment.ID = existing.ID
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	attachment.ID = attachmentID
	return nil
}

// ErrAttachmentNotFound is returned when a requested attachment cannot be found.
var ErrAttachmentNotFound = errors.New("attachment not found")

// GetAttachmentBySourceID returns an attachment by its message and source id.
func GetAttachmentBySourceID(ctx context.Context, pool *pgxpool.Pool, messageID, sourceID string) (*models.Attachment, error) {
	var att models.Attachment

	err := pool.QueryRow(ctx, `
		SELECT
			id, message_id, source_id, content_type, media_type, display_name,
			file_size_bytes, local_storage_path, download_state, download_error,
			width, height, duration_seconds, thumbnail_path, downloaded_at
		FROM attachments
		WHERE message_id = $1 AND source_id = $2
	`, messageID, sourceID).Scan(
		&att.ID,
		&att.MessageID,
		&att.SourceID,
		&att.ContentType,
		&att.MediaType,
		&att.DisplayName,
		&att.FileSizeBytes,
		&att.LocalStoragePath,
		&att.DownloadState,
		&att.DownloadError,
		&att.Width,
		&att.Height,
		&att.DurationSeconds,
		&att.ThumbnailPath,
		&att.DownloadedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	return &att, nil
}

// GetAttachmentsForMessage returns all attachments for a message.
func GetAttachmentsForMessage(ctx context.Context, pool *pgxpool.Pool, messageID string) ([]*models.Attachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			id, message_id, source_id, content_type, media_type, display_name,
			file_size_bytes, local_storage_path, download_state, download_error,
			width, height, duration_seconds, thumbnail_path, downloaded_at
		FROM attachments
		WHERE message_id = $1
		ORDER BY source_id
	`, messageID)

	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.SourceID,
			&att.ContentType,
			&att.MediaType,
			&att.DisplayName,
			&att.FileSizeBytes,
			&att.LocalStoragePath,
			&att.DownloadState,
			&att.DownloadError,
			&att.Width,
			&att.Height,
			&att.DurationSeconds,
			&att.ThumbnailPath,
			&att.DownloadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
