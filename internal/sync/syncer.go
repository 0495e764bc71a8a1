// Package sync drives the full mirror sweep: for each configured account,
// enumerate its conversations, merge every message, and fetch every
// attachment that does not already have a completed download.
package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chatvault/chatvault/internal/db"
	"github.com/chatvault/chatvault/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatAPI is the remote chat surface the syncer consumes. Satisfied by
// chat.Client; tests substitute fakes.
type ChatAPI interface {
	ListConversations(ctx context.Context) ([]*models.RemoteConversation, error)
	ListMessages(ctx context.Context, conversationRemoteID, pageToken string) ([]*models.RemoteMessage, string, error)
	GetMessage(ctx context.Context, messageRemoteID string) (*models.RemoteMessage, error)
	ListParticipants(ctx context.Context, conversationRemoteID string) ([]models.Participant, error)
}

// AttachmentFetcher downloads one attachment and always returns a record with
// a terminal download state. Satisfied by fetch.Fetcher.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, descriptor models.AttachmentDescriptor, conversationRemoteID string) *models.Attachment
}

// IdentityResolver maps remote user ids to display identities. Satisfied by
// identity.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, accountEmail, remoteUserID string) models.Identity
}

// ClientFactory builds the per-account remote clients. Credentials impersonate
// one subject at a time, so clients cannot be shared across accounts.
type ClientFactory func(ctx context.Context, accountEmail string) (ChatAPI, AttachmentFetcher, error)

// Syncer mirrors remote conversations into the local store.
type Syncer struct {
	pool         *pgxpool.Pool
	resolver     IdentityResolver
	clients      ClientFactory
	accountDelay time.Duration
}

// NewSyncer creates a syncer. accountDelay is the pause inserted between
// consecutive accounts to stay clear of per-identity rate limits.
func NewSyncer(pool *pgxpool.Pool, resolver IdentityResolver, clients ClientFactory, accountDelay time.Duration) *Syncer {
	return &Syncer{
		pool:         pool,
		resolver:     resolver,
		clients:      clients,
		accountDelay: accountDelay,
	}
}

// Run sweeps every account in order, one at a time. A failing account is
// logged and skipped; it never stops the remaining accounts.
func (s *Syncer) Run(ctx context.Context, accounts []string) error {
	for i, accountEmail := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 && s.accountDelay > 0 {
			log.Printf("Waiting %s before next account", s.accountDelay)
			select {
			case <-time.After(s.accountDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		log.Printf("Starting sweep for account %s", accountEmail)

		chatAPI, fetcher, err := s.clients(ctx, accountEmail)
		if err != nil {
			log.Printf("Warning: failed to build clients for account %s: %v", accountEmail, err)
			continue
		}

		if err := s.SweepAccount(ctx, accountEmail, chatAPI, fetcher); err != nil {
			log.Printf("Warning: sweep failed for account %s: %v", accountEmail, err)
			continue
		}

		log.Printf("Finished sweep for account %s", accountEmail)
	}

	return ctx.Err()
}

// SweepAccount mirrors all conversations visible to one account. A failing
// conversation is logged and skipped so the rest of the account still syncs.
func (s *Syncer) SweepAccount(ctx context.Context, accountEmail string, chatAPI ChatAPI, fetcher AttachmentFetcher) error {
	accountID, err := db.GetOrCreateAccount(ctx, s.pool, accountEmail)
	if err != nil {
		return fmt.Errorf("failed to resolve account %s: %w", accountEmail, err)
	}

	conversations, err := chatAPI.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	log.Printf("Account %s has %d conversations", accountEmail, len(conversations))

	for _, remote := range conversations {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.syncConversation(ctx, accountID, accountEmail, remote, chatAPI, fetcher); err != nil {
			log.Printf("Warning: failed to sync conversation %s: %v", remote.RemoteID, err)
			continue
		}
	}

	if err := db.SetAccountLastSynced(ctx, s.pool, accountID); err != nil {
		return fmt.Errorf("failed to record sweep completion: %w", err)
	}

	return nil
}

// syncConversation merges one conversation: participants, every page of
// messages, and each message's attachments.
func (s *Syncer) syncConversation(ctx context.Context, accountID, accountEmail string, remote *models.RemoteConversation, chatAPI ChatAPI, fetcher AttachmentFetcher) error {
	participants, err := chatAPI.ListParticipants(ctx, remote.RemoteID)
	if err != nil {
		// Membership listing is not available for every conversation kind.
		log.Printf("Warning: failed to list participants for %s: %v", remote.RemoteID, err)
		participants = remote.Participants
	}

	for i := range participants {
		if participants[i].Email != "" {
			continue
		}
		id := s.resolver.Resolve(ctx, accountEmail, participants[i].RemoteUserID)
		participants[i].Email = id.Email
		if participants[i].DisplayName == "" {
			participants[i].DisplayName = id.DisplayName
		}
	}

	conversation := &models.Conversation{
		AccountID:    accountID,
		RemoteID:     remote.RemoteID,
		DisplayName:  remote.DisplayName,
		Kind:         remote.Kind,
		Participants: participants,
	}
	if err := db.SaveConversation(ctx, s.pool, conversation); err != nil {
		return err
	}

	pageToken := ""
	for {
		messages, nextToken, err := chatAPI.ListMessages(ctx, remote.RemoteID, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range messages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.syncMessage(ctx, accountEmail, conversation, msg, chatAPI, fetcher); err != nil {
				log.Printf("Warning: failed to sync message %s: %v", msg.RemoteID, err)
				continue
			}
		}

		if nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	if err := db.RefreshConversationDerived(ctx, s.pool, conversation.ID); err != nil {
		return err
	}

	return nil
}

// syncMessage merges one message and its attachments. The listing response
// omits attachment payloads, so the single-message detail fetch is mandatory;
// if it fails the listing copy is merged instead so the text still lands.
func (s *Syncer) syncMessage(ctx context.Context, accountEmail string, conversation *models.Conversation, listed *models.RemoteMessage, chatAPI ChatAPI, fetcher AttachmentFetcher) error {
	remote := listed
	if detail, err := chatAPI.GetMessage(ctx, listed.RemoteID); err != nil {
		log.Printf("Warning: failed to fetch detail for message %s, using listing copy: %v", listed.RemoteID, err)
	} else {
		remote = detail
	}

	sender := s.resolver.Resolve(ctx, accountEmail, remote.SenderRemoteID)

	displayName := remote.SenderDisplayName
	if displayName == "" {
		displayName = sender.DisplayName
	}

	message := &models.Message{
		ConversationID:    conversation.ID,
		RemoteID:          remote.RemoteID,
		Text:              remote.Text,
		SenderRemoteID:    remote.SenderRemoteID,
		SenderEmail:       sender.Email,
		SenderDisplayName: displayName,
		SenderDomain:      sender.Domain,
		IsSentByAccount:   strings.EqualFold(sender.Email, accountEmail),
		IsExternalSender:  sender.Domain != "" && !strings.EqualFold(sender.Domain, emailDomain(accountEmail)),
	}
	if !remote.CreateTime.IsZero() {
		createTime := remote.CreateTime
		message.CreateTime = &createTime
	}

	if err := db.SaveMessage(ctx, s.pool, message); err != nil {
		return err
	}

	return s.syncAttachments(ctx, conversation.RemoteID, message, remote.Attachments, fetcher)
}

// syncAttachments fetches the message's attachments, skipping any whose
// download already completed in a previous sweep.
func (s *Syncer) syncAttachments(ctx context.Context, conversationRemoteID string, message *models.Message, descriptors []models.AttachmentDescriptor, fetcher AttachmentFetcher) error {
	if len(descriptors) == 0 {
		return db.UpdateMessageAttachmentFlags(ctx, s.pool, message.ID)
	}

	existing, err := db.GetAttachmentsForMessage(ctx, s.pool, message.ID)
	if err != nil {
		return fmt.Errorf("failed to load existing attachments: %w", err)
	}
	completed := make(map[string]bool, len(existing))
	for _, att := range existing {
		if att.DownloadState == models.DownloadCompleted {
			completed[att.SourceID] = true
		}
	}

	for _, descriptor := range descriptors {
		sourceID := descriptor.DeriveSourceID()
		if completed[sourceID] {
			continue
		}

		attachment := fetcher.Fetch(ctx, descriptor, conversationRemoteID)
		attachment.MessageID = message.ID
		// Keep the id the skip check ran against; DeriveSourceID is not
		// stable for descriptors with no usable reference.
		attachment.SourceID = sourceID

		if err := db.SaveAttachment(ctx, s.pool, attachment); err != nil {
			log.Printf("Warning: failed to save attachment %s for message %s: %v", sourceID, message.RemoteID, err)
			continue
		}
	}

	return db.UpdateMessageAttachmentFlags(ctx, s.pool, message.ID)
}

func emailDomain(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[idx+1:]
	}
	return ""
}
