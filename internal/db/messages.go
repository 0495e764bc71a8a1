package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// SaveMessage saves or updates a message. remote_id is the sole merge key
// within a conversation: an existing message is updated in place, never
// duplicated. Previously captured text survives an incoming empty value.
func SaveMessage(ctx context.Context, pool *pgxpool.Pool, message *models.Message) error {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO messages (
			conversation_id,
			remote_id,
			text,
			sender_remote_id,
			sender_email,
			sender_display_name,
			sender_domain,
			is_sent_by_account,
			is_external_sender,
			create_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (conversation_id, remote_id) DO UPDATE SET
			text = COALESCE(NULLIF(EXCLUDED.text, ''), messages.text),
			sender_remote_id = EXCLUDED.sender_remote_id,
			sender_email = EXCLUDED.sender_email,
			sender_display_name = EXCLUDED.sender_display_name,
			sender_domain = EXCLUDED.sender_domain,
			is_sent_by_account = EXCLUDED.is_sent_by_account,
			is_external_sender = EXCLUDED.is_external_sender,
			create_time = COALESCE(EXCLUDED.create_time, messages.create_time)
		RETURNING id
	`,
		message.ConversationID,
		message.RemoteID,
		message.Text,
		message.SenderRemoteID,
		message.SenderEmail,
		message.SenderDisplayName,
		message.SenderDomain,
		message.IsSentByAccount,
		message.IsExternalSender,
		message.CreateTime,
	).Scan(&id)

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if id != "" {
		message.ID = id
	}

	return nil
}

// GetMessageByRemoteID returns a message by its conversation and remote id.
func GetMessageByRemoteID(ctx context.Context, pool *pgxpool.Pool, conversationID, remoteID string) (*models.Message, error) {
	var msg models.Message

	err := pool.QueryRow(ctx, `
		SELECT
			id,
			conversation_id,
			remote_id,
			text,
			sender_remote_id,
			sender_email,
			sender_display_name,
			sender_domain,
			is_sent_by_account,
			is_external_sender,
			create_time,
			has_attachments,
			has_media,
			has_documents
		FROM messages
		WHERE conversation_id = $1 AND remote_id = $2
	`, conversationID, remoteID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.RemoteID,
		&msg.Text,
		&msg.SenderRemoteID,
		&msg.SenderEmail,
		&msg.SenderDisplayName,
		&msg.SenderDomain,
		&msg.IsSentByAccount,
		&msg.IsExternalSender,
		&msg.CreateTime,
		&msg.HasAttachments,
		&msg.HasMedia,
		&msg.HasDocuments,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// GetMessagesForConversation returns all messages for a conversation in
// create-time order.
func GetMessagesForConversation(ctx context.Context, pool *pgxpool.Pool, conversationID string) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			id,
			conversation_id,
			remote_id,
			text,
			sender_remote_id,
			sender_email,
			sender_display_name,
			sender_domain,
			is_sent_by_account,
			is_external_sender,
			create_time,
			has_attachments,
			has_media,
			has_documents
		FROM messages
		WHERE conversation_id = $1
		ORDER BY create_time NULLS LAST, remote_id
	`, conversationID)

	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.RemoteID,
			&msg.Text,
			&msg.SenderRemoteID,
			&msg.SenderEmail,
			&msg.SenderDisplayName,
			&msg.SenderDomain,
			&msg.IsSentByAccount,
			&msg.IsExternalSender,
			&msg.CreateTime,
			&msg.HasAttachments,
			&msg.HasMedia,
			&msg.HasDocuments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// UpdateMessageAttachmentFlags recomputes the derived has_attachments,
// has_media, and has_documents flags from the message's attachment rows.
func UpdateMessageAttachmentFlags(ctx context.Context, pool *pgxpool.Pool, messageID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE messages m SET
			has_attachments = EXISTS (
				SELECT 1 FROM attachments a WHERE a.message_id = m.id
			),
			has_media = EXISTS (
				SELECT 1 FROM attachments a
				WHERE a.message_id = m.id AND a.media_type IN ('image', 'video', 'audio')
			),
			has_documents = EXISTS (
				SELECT 1 FROM attachments a
				WHERE a.message_id = m.id AND a.media_type IN ('document', 'archive')
			)
		WHERE m.id = $1
	`, messageID)

	if err != nil {
		return fmt.Errorf("failed to update message attachment flags: %w", err)
	}

	return nil
}
