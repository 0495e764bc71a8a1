package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConversationNotFound is returned when a requested conversation cannot be found.
var ErrConversationNotFound = errors.New("conversation not found")

// SaveConversation saves or updates a conversation. The (account_id,
// remote_id) pair is the natural key: re-saving an existing conversation
// updates its display name, kind, and participants in place. An empty
// incoming display name never clobbers a previously captured one.
func SaveConversation(ctx context.Context, pool *pgxpool.Pool, conversation *models.Conversation) error {
	participants, err := json.Marshal(conversation.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	var conversationID string
	err = pool.QueryRow(ctx, `
		INSERT INTO conversations (account_id, remote_id, display_name, kind, participants)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, remote_id) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), conversations.display_name),
			kind = EXCLUDED.kind,
			participants = EXCLUDED.participants
		RETURNING id
	`,
		conversation.AccountID,
		conversation.RemoteID,
		conversation.DisplayName,
		conversation.Kind,
		participants,
	).Scan(&conversationID)

	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	conversation.ID = conversationID
	return nil
}

// GetConversationByRemoteID returns a conversation by its owning account and
// remote identifier.
func GetConversationByRemoteID(ctx context.Context, pool *pgxpool.Pool, accountID, remoteID string) (*models.Conversation, error) {
	var conversation models.Conversation
	var participants []byte

	err := pool.QueryRow(ctx, `
		SELECT id, account_id, remote_id, display_name, kind, participants, message_count, last_message_time
		FROM conversations
		WHERE account_id = $1 AND remote_id = $2
	`, accountID, remoteID).Scan(
		&conversation.ID,
		&conversation.AccountID,
		&conversation.RemoteID,
		&conversation.DisplayName,
		&conversation.Kind,
		&participants,
		&conversation.MessageCount,
		&conversation.LastMessageTime,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &conversation.Participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}

	return &conversation, nil
}

// GetConversationsForAccount returns all conversations owned by the account.
func GetConversationsForAccount(ctx context.Context, pool *pgxpool.Pool, accountID string) ([]*models.Conversation, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, account_id, remote_id, display_name, kind, participants, message_count, last_message_time
		FROM conversations
		WHERE account_id = $1
		ORDER BY last_message_time DESC NULLS LAST
	`, accountID)

	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var conversation models.Conversation
		var participants []byte
		if err := rows.Scan(
			&conversation.ID,
			&conversation.AccountID,
			&conversation.RemoteID,
			&conversation.DisplayName,
			&conversation.Kind,
			&participants,
			&conversation.MessageCount,
			&conversation.LastMessageTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if len(participants) > 0 {
			if err := json.Unmarshal(participants, &conversation.Participants); err != nil {
				return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
			}
		}
		conversations = append(conversations, &conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// RefreshConversationDerived recomputes message_count and last_message_time
// from the conversation's stored messages. Called after a merge so the
// derived fields always agree with the message rows.
func RefreshConversationDerived(ctx context.Context, pool *pgxpool.Pool, conversationID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE conversations c SET
			message_count = (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
			last_message_time = (SELECT MAX(m.create_time) FROM messages m WHERE m.conversation_id = c.id)
		WHERE c.id = $1
	`, conversationID)

	if err != nil {
		return fmt.Errorf("failed to refresh conversation derived fields: %w", err)
	}

	return nil
}
