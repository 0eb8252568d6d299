// Package archivetest builds throwaway Messages archives for tests. The
// schema matches the documented column set the query layer depends on.
package archivetest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rcoelho/imarchive/internal/archive/archivetest/migrations"
)

// Archive is a writable fixture archive. Tests populate it through the
// insert helpers, then open Path read-only through the query layer.
type Archive struct {
	t    *testing.T
	db   *sql.DB
	Path string
}

// New creates an empty fixture archive in a temp directory and applies the
// schema migrations.
func New(t *testing.T) *Archive {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture archive: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := applySchema(db); err != nil {
		t.Fatalf("apply fixture schema: %v", err)
	}
	return &Archive{t: t, db: db, Path: path}
}

func applySchema(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// AddChat inserts a chat row and returns its ROWID.
func (a *Archive) AddChat(guid string, style int64, identifier, service, displayName string) int64 {
	a.t.Helper()
	res, err := a.db.Exec(`
		INSERT INTO chat (guid, style, chat_identifier, service_name, display_name)
		VALUES (?, ?, ?, ?, ?)`,
		guid, style, identifier, service, displayName)
	if err != nil {
		a.t.Fatalf("insert chat: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// AddHandle inserts a handle row and returns its ROWID.
func (a *Archive) AddHandle(id, service, country string) int64 {
	a.t.Helper()
	res, err := a.db.Exec(`
		INSERT INTO handle (id, service, country) VALUES (?, ?, ?)`,
		id, service, country)
	if err != nil {
		a.t.Fatalf("insert handle: %v", err)
	}
	rowID, _ := res.LastInsertId()
	return rowID
}

// LinkHandle joins a handle to a chat as a participant.
func (a *Archive) LinkHandle(chatID, handleID int64) {
	a.t.Helper()
	if _, err := a.db.Exec(`
		INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`,
		chatID, handleID); err != nil {
		a.t.Fatalf("link handle: %v", err)
	}
}

// Message holds the insertable fields of a message row. Zero values match
// the archive's column defaults.
type Message struct {
	GUID            string
	Text            string
	Body            []byte
	HandleID        int64
	Service         string
	Date            int64
	DateRead        int64
	DateDelivered   int64
	FromMe          bool
	Delivered       bool
	Read            bool
	Sent            bool
	System          bool
	HasAttachments  bool
	AssociatedGUID  string
	AssociatedType  int64
	AssociatedEmoji string
	GroupTitle      string
	GroupActionType int64
	DateRetracted   int64
	DateEdited      int64
}

// AddMessage inserts a message row joined to the given chat and returns its
// ROWID. The join row's message_date mirrors the message date.
func (a *Archive) AddMessage(chatID int64, m Message) int64 {
	a.t.Helper()
	res, err := a.db.Exec(`
		INSERT INTO message (guid, text, attributedBody, handle_id, service,
			date, date_read, date_delivered,
			is_from_me, is_delivered, is_read, is_sent, is_system_message,
			cache_has_attachments,
			associated_message_guid, associated_message_type, associated_message_emoji,
			group_title, group_action_type, date_retracted, date_edited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GUID, m.Text, m.Body, m.HandleID, m.Service,
		m.Date, m.DateRead, m.DateDelivered,
		m.FromMe, m.Delivered, m.Read, m.Sent, m.System,
		m.HasAttachments,
		m.AssociatedGUID, m.AssociatedType, m.AssociatedEmoji,
		m.GroupTitle, m.GroupActionType, m.DateRetracted, m.DateEdited)
	if err != nil {
		a.t.Fatalf("insert message: %v", err)
	}
	msgID, _ := res.LastInsertId()
	if _, err := a.db.Exec(`
		INSERT INTO chat_message_join (chat_id, message_id, message_date)
		VALUES (?, ?, ?)`, chatID, msgID, m.Date); err != nil {
		a.t.Fatalf("join message: %v", err)
	}
	return msgID
}

// Attachment holds the insertable fields of an attachment row.
type Attachment struct {
	GUID          string
	Filename      string
	MIMEType      string
	UTI           string
	TransferName  string
	TotalBytes    int64
	TransferState int64
	Outgoing      bool
}

// AddAttachment inserts an attachment joined to the given message and
// returns its ROWID.
func (a *Archive) AddAttachment(messageID int64, att Attachment) int64 {
	a.t.Helper()
	res, err := a.db.Exec(`
		INSERT INTO attachment (guid, filename, mime_type, uti, transfer_name,
			total_bytes, transfer_state, is_outgoing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		att.GUID, att.Filename, att.MIMEType, att.UTI, att.TransferName,
		att.TotalBytes, att.TransferState, att.Outgoing)
	if err != nil {
		a.t.Fatalf("insert attachment: %v", err)
	}
	attID, _ := res.LastInsertId()
	if _, err := a.db.Exec(`
		INSERT INTO message_attachment_join (message_id, attachment_id)
		VALUES (?, ?)`, messageID, attID); err != nil {
		a.t.Fatalf("join attachment: %v", err)
	}
	return attID
}
