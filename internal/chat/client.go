// Package chat wraps the Google Chat API behind the narrow surface the
// synchronizer needs: enumerate spaces, page through messages, fetch full
// message detail, and download attachment media.
package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/sony/gobreaker"
	"google.golang.org/api/chat/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const listPageSize = 100

// Client talks to the Google Chat API for one impersonated account.
type Client struct {
	svc *chat.Service
	cb  *gobreaker.CircuitBreaker
}

// NewClient creates a Chat API client over an already-authenticated HTTP
// client (see NewImpersonatedHTTPClient).
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := chat.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}

	cbSettings := gobreaker.Settings{
		Name:     "chat-api",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Client{
		svc: svc,
		cb:  gobreaker.NewCircuitBreaker(cbSettings),
	}, nil
}

// ListConversations enumerates all spaces visible to the account, paginating
// to exhaustion.
func (c *Client) ListConversations(ctx context.Context) ([]*models.RemoteConversation, error) {
	var conversations []*models.RemoteConversation
	pageToken := ""

	for {
		var resp *chat.ListSpacesResponse
		err := c.execute(ctx, "ListSpaces", func() error {
			var apiErr error
			call := c.svc.Spaces.List().PageSize(listPageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, apiErr = call.Do()
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list spaces: %w", err)
		}

		for _, space := range resp.Spaces {
			conversations = append(conversations, convertSpace(space))
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return conversations, nil
}

// ListMessages returns one page of messages for a conversation plus the next
// page token. Callers must keep calling until the token comes back empty.
func (c *Client) ListMessages(ctx context.Context, conversationRemoteID, pageToken string) ([]*models.RemoteMessage, string, error) {
	var resp *chat.ListMessagesResponse
	err := c.execute(ctx, "ListMessages", func() error {
		var apiErr error
		call := c.svc.Spaces.Messages.List(conversationRemoteID).PageSize(listPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, apiErr = call.Do()
		return apiErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages for %s: %w", conversationRemoteID, err)
	}

	messages := make([]*models.RemoteMessage, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		messages = append(messages, convertMessage(msg))
	}

	return messages, resp.NextPageToken, nil
}

// GetMessage fetches the full detail of a single message. The listing
// response omits attachment payloads, so this call is the only authoritative
// source for them.
func (c *Client) GetMessage(ctx context.Context, messageRemoteID string) (*models.RemoteMessage, error) {
	var msg *chat.Message
	err := c.execute(ctx, "GetMessage", func() error {
		var apiErr error
		msg, apiErr = c.svc.Spaces.Messages.Get(messageRemoteID).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageRemoteID, err)
	}

	return convertMessage(msg), nil
}

// ListParticipants returns the members of a conversation. Emails are not
// exposed by the API here; the identity resolver fills them in later.
func (c *Client) ListParticipants(ctx context.Context, conversationRemoteID string) ([]models.Participant, error) {
	var participants []models.Participant
	pageToken := ""

	for {
		var resp *chat.ListMembershipsResponse
		err := c.execute(ctx, "ListMemberships", func() error {
			var apiErr error
			call := c.svc.Spaces.Members.List(conversationRemoteID).PageSize(listPageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, apiErr = call.Do()
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list members for %s: %w", conversationRemoteID, err)
		}

		for _, membership := range resp.Memberships {
			if membership.Member == nil {
				continue
			}
			participants = append(participants, models.Participant{
				RemoteUserID: membership.Member.Name,
				DisplayName:  membership.Member.DisplayName,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return participants, nil
}

// DownloadMedia streams the binary payload behind an opaque attachment
// resource reference. The caller owns closing the returned reader.
func (c *Client) DownloadMedia(ctx context.Context, resourceName string) (io.ReadCloser, error) {
	resp, err := c.svc.Media.Download(resourceName).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download media %s: %w", resourceName, err)
	}
	return resp.Body, nil
}

// execute wraps an API call with circuit breaker protection. Server-side
// errors (5xx, 429) trip the breaker; client errors do not.
func (c *Client) execute(ctx context.Context, operation string, fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				default:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		log.Printf("Warning: %s failed (breaker state %s): %v", operation, c.cb.State().String(), err)
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}
