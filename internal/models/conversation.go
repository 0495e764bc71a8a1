package models

import "time"

// ConversationKind describes what kind of remote conversation this is.
type ConversationKind string

const (
	KindDirectMessage ConversationKind = "DIRECT_MESSAGE"
	KindSpace         ConversationKind = "SPACE"
	KindGroupChat     ConversationKind = "GROUP_CHAT"
)

// Participant is one member of a conversation.
type Participant struct {
	RemoteUserID string `json:"remote_user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
}

// Conversation is one remote space or direct-message thread mirrored locally.
// Exactly one Conversation exists per (AccountID, RemoteID) pair.
type Conversation struct {
	ID              string           `json:"id"`
	AccountID       string           `json:"account_id"`
	RemoteID        string           `json:"remote_id"`
	DisplayName     string           `json:"display_name"`
	Kind            ConversationKind `json:"kind"`
	Participants    []Participant    `json:"participants,omitempty"`
	MessageCount    int              `json:"message_count"`
	LastMessageTime *time.Time       `json:"last_message_time,omitempty"`
	Messages        []Message        `json:"messages,omitempty"`
}

// Message is one chat message within a Conversation. RemoteID is the sole
// merge key: a message already present is updated, never duplicated.
type Message struct {
	ID                string       `json:"id"`
	ConversationID    string       `json:"conversation_id"`
	RemoteID          string       `json:"remote_id"`
	Text              string       `json:"text"`
	SenderRemoteID    string       `json:"sender_remote_id"`
	SenderEmail       string       `json:"sender_email"`
	SenderDisplayName string       `json:"sender_display_name"`
	SenderDomain      string       `json:"sender_domain"`
	IsSentByAccount   bool         `json:"is_sent_by_account"`
	IsExternalSender  bool         `json:"is_external_sender"`
	CreateTime        *time.Time   `json:"create_time,omitempty"`
	HasAttachments    bool         `json:"has_attachments"`
	HasMedia          bool         `json:"has_media"`
	HasDocuments      bool         `json:"has_documents"`
	Attachments       []Attachment `json:"attachments,omitempty"`
}
