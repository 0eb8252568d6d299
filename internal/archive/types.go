package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// ConversationRow is a chat row with its aggregate message count and
// last-activity timestamp.
type ConversationRow struct {
	RowID           int64
	GUID            string
	Style           int64
	ChatIdentifier  string
	ServiceName     string
	DisplayName     string
	MessageCount    int
	LastMessageDate int64
}

// IsGroup reports whether the chat is a group conversation.
func (c ConversationRow) IsGroup() bool { return c.Style == groupChatStyle }

const groupChatStyle = 43

// HandleRow is one archive-local identity record. RowID is not stable
// across archives; ID is the raw phone or email string.
type HandleRow struct {
	RowID   int64
	ID      string
	Service string
	Country string
}

// Association codes partition messages into plain content (zero), reaction
// additions and reaction removals.
const (
	ReactionAddMin    = 2000
	ReactionAddMax    = 2006
	ReactionRemoveMin = 3000
	ReactionRemoveMax = 3006
)

// MessageRow mirrors the documented message column set. Timestamps are
// archive-native offsets; a value <= 0 means absent.
type MessageRow struct {
	RowID                int64
	GUID                 string
	Text                 string
	Body                 []byte
	HandleID             int64
	Service              string
	Date                 int64
	DateRead             int64
	DateDelivered        int64
	IsFromMe             bool
	IsDelivered          bool
	IsRead               bool
	IsSent               bool
	IsSystemMessage      bool
	CacheHasAttachments  bool
	AssociatedGUID       string
	AssociatedType       int64
	AssociatedEmoji      string
	AssociatedRangeLoc   int64
	ReplyToGUID          string
	ThreadOriginatorGUID string
	ThreadOriginatorPart string
	GroupTitle           string
	GroupActionType      int64
	DateRetracted        int64
	DateEdited           int64
}

// IsReactionAdd reports whether the row is a reaction-add event.
func (m MessageRow) IsReactionAdd() bool {
	return m.AssociatedType >= ReactionAddMin && m.AssociatedType <= ReactionAddMax
}

// IsReactionRemoval reports whether the row is a reaction-remove event.
func (m MessageRow) IsReactionRemoval() bool {
	return m.AssociatedType >= ReactionRemoveMin && m.AssociatedType <= ReactionRemoveMax
}

// IsReaction reports whether the row is a reaction event of either kind.
func (m MessageRow) IsReaction() bool {
	return m.IsReactionAdd() || m.IsReactionRemoval()
}

// IsEdited reports whether the message carries an edit timestamp.
func (m MessageRow) IsEdited() bool { return m.DateEdited > 0 }

// IsRetracted reports whether the message was unsent.
func (m MessageRow) IsRetracted() bool { return m.DateRetracted > 0 }

// PreviewRow is the text/blob pair of a conversation's most recent content
// message, undecoded.
type PreviewRow struct {
	Text string
	Body []byte
}

// AttachmentRow is one attachment joined to a single message.
type AttachmentRow struct {
	RowID         int64
	GUID          string
	Filename      string
	MIMEType      string
	UTI           string
	TransferName  string
	TotalBytes    int64
	TransferState int64
	IsOutgoing    bool
}

// IsImage reports whether the attachment is an image by MIME class.
func (a AttachmentRow) IsImage() bool { return strings.HasPrefix(a.MIMEType, "image/") }

// IsVideo reports whether the attachment is a video by MIME class.
func (a AttachmentRow) IsVideo() bool { return strings.HasPrefix(a.MIMEType, "video/") }

// IsDownloaded reports whether the attachment payload is locally present.
func (a AttachmentRow) IsDownloaded() bool {
	return a.TransferState == 5 || a.TransferState == 0
}

// ResolvedPath expands a leading ~ in the stored filename to the user's
// home directory. Empty if no filename is stored.
func (a AttachmentRow) ResolvedPath() string {
	if a.Filename == "" {
		return ""
	}
	if strings.HasPrefix(a.Filename, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(a.Filename, "~"))
		}
	}
	return a.Filename
}
