package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcoelho/imarchive/internal/reactions"
)

// Conversation is a fully-resolved chat ready for display.
type Conversation struct {
	ChatID           int64
	GUID             string
	DisplayName      string
	Participants     []string
	ParticipantNames []string
	MessageCount     int
	LastMessageDate  *time.Time
	Preview          string
	IsGroup          bool
	Service          string
}

// Attachment is a fully-resolved attachment of one message.
type Attachment struct {
	ID           int64
	Filename     string
	TransferName string
	MIMEType     string
	TotalBytes   int64
	IsImage      bool
	IsVideo      bool
	Downloaded   bool
	Path         string
}

// FormattedSize renders the byte size for display.
func (a Attachment) FormattedSize() string {
	const unit = 1000
	if a.TotalBytes < unit {
		return fmt.Sprintf("%d B", a.TotalBytes)
	}
	div, exp := int64(unit), 0
	for n := a.TotalBytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(a.TotalBytes)/float64(div), "kMGTP"[exp])
}

// Message is a fully-resolved message ready for display.
type Message struct {
	ID                   int64
	GUID                 string
	Text                 string
	SenderName           string
	SenderID             string
	FromMe               bool
	Date                 *time.Time
	DateRead             *time.Time
	DateDelivered        *time.Time
	Service              string
	Delivered            bool
	Read                 bool
	Sent                 bool
	System               bool
	Edited               bool
	Retracted            bool
	ReplyToGUID          string
	ThreadOriginatorGUID string
	GroupTitle           string
	GroupActionType      int64
	Reactions            []reactions.Reaction
	Attachments          []Attachment
}

// HasContent reports whether the message carries anything worth rendering.
func (m Message) HasContent() bool {
	return m.Text != "" || len(m.Attachments) > 0 || m.System || m.GroupTitle != ""
}

// TranscriptLine renders the message as one transcript line.
func (m Message) TranscriptLine() string {
	ts := formatStamp(m.Date)

	if m.GroupTitle != "" && m.GroupActionType != 0 {
		return fmt.Sprintf("[%s] ** Group renamed to %q **", ts, m.GroupTitle)
	}
	if m.System {
		text := m.Text
		if text == "" {
			text = "System message"
		}
		return fmt.Sprintf("[%s] ** %s **", ts, text)
	}

	sender := m.SenderName
	detail := ""
	if m.FromMe {
		sender = "Me"
	} else {
		detail = fmt.Sprintf(" (%s)", m.SenderID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s%s [%s]: %s", ts, sender, detail, m.Service, m.Text)
	if m.Edited {
		b.WriteString(" (edited)")
	}
	if m.Retracted {
		b.WriteString(" (unsent)")
	}
	return b.String()
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
