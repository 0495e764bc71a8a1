package models

import "time"

// RemoteConversation is a conversation as enumerated by the remote chat API,
// already normalized by the client layer.
type RemoteConversation struct {
	RemoteID     string
	DisplayName  string
	Kind         ConversationKind
	Participants []Participant
}

// RemoteMessage is a message as returned by the remote chat API. Listing
// responses omit attachment payloads; only the single-item detail fetch
// carries a complete Attachments slice.
type RemoteMessage struct {
	RemoteID          string
	ConversationID    string
	Text              string
	SenderRemoteID    string
	SenderDisplayName string
	CreateTime        time.Time
	Attachments       []AttachmentDescriptor
}
