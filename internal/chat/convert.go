package chat

import (
	"time"

	"github.com/chatvault/chatvault/internal/models"
	"google.golang.org/api/chat/v1"
)

// convertSpace maps an API space onto the normalized conversation shape.
func convertSpace(space *chat.Space) *models.RemoteConversation {
	return &models.RemoteConversation{
		RemoteID:    space.Name,
		DisplayName: space.DisplayName,
		Kind:        convertSpaceKind(space),
	}
}

func convertSpaceKind(space *chat.Space) models.ConversationKind {
	switch space.SpaceType {
	case "DIRECT_MESSAGE":
		return models.KindDirectMessage
	case "GROUP_CHAT":
		return models.KindGroupChat
	case "SPACE":
		return models.KindSpace
	}

	// Older responses carry the legacy type field instead.
	switch space.Type {
	case "DM":
		return models.KindDirectMessage
	case "ROOM":
		return models.KindSpace
	}

	return models.KindSpace
}

// convertMessage maps an API message onto the normalized message shape,
// folding all attachment reference variants into descriptors.
func convertMessage(msg *chat.Message) *models.RemoteMessage {
	out := &models.RemoteMessage{
		RemoteID:    msg.Name,
		Text:        msg.Text,
		Attachments: NormalizeAttachments(msg),
	}

	if msg.Sender != nil {
		out.SenderRemoteID = msg.Sender.Name
		out.SenderDisplayName = msg.Sender.DisplayName
	}

	if msg.CreateTime != "" {
		if t, err := time.Parse(time.RFC3339, msg.CreateTime); err == nil {
			out.CreateTime = t
		}
	}

	return out
}

// NormalizeAttachments folds the message's attachment references, whatever
// shape each one takes (Drive-backed file, opaque media resource, direct
// download URL), into the single tagged descriptor type business logic runs
// on. Descriptors with no usable reference at all are still kept; the
// fetcher records them as failed rather than dropping them silently.
func NormalizeAttachments(msg *chat.Message) []models.AttachmentDescriptor {
	if len(msg.Attachment) == 0 {
		return nil
	}

	descriptors := make([]models.AttachmentDescriptor, 0, len(msg.Attachment))
	for _, att := range msg.Attachment {
		if att == nil {
			continue
		}

		descriptor := models.AttachmentDescriptor{
			Name:         att.Name,
			ContentName:  att.ContentName,
			ContentType:  att.ContentType,
			DownloadURI:  att.DownloadUri,
			ThumbnailURI: att.ThumbnailUri,
		}
		if att.DriveDataRef != nil {
			descriptor.DriveFileID = att.DriveDataRef.DriveFileId
		}
		if att.AttachmentDataRef != nil {
			descriptor.ResourceName = att.AttachmentDataRef.ResourceName
		}

		descriptors = append(descriptors, descriptor)
	}

	return descriptors
}
