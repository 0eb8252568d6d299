package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/rcoelho/imarchive/internal/archive"
	"github.com/rcoelho/imarchive/internal/archive/archivetest"
	"github.com/rcoelho/imarchive/internal/config"
	"github.com/rcoelho/imarchive/internal/contacts"
)

// ns converts seconds past the archive epoch to the stored nanosecond form.
func ns(sec int64) int64 { return sec * 1_000_000_000 }

// fallbackBlob builds a body blob the structured tier rejects but the scan
// tier recovers text from.
func fallbackBlob(text string) []byte {
	blob := []byte("garbageNSString")
	blob = append(blob, 0x84, byte(len(text)))
	return append(blob, text...)
}

func writeContacts(t *testing.T, ids []contacts.Identity) string {
	t.Helper()
	raw, err := json.Marshal(ids)
	if err != nil {
		t.Fatalf("marshal contacts: %v", err)
	}
	path := filepath.Join(t.TempDir(), "contacts.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write contacts: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, archivePath, contactsPath string, convBatch, msgBatch int) *Pipeline {
	t.Helper()
	db, err := archive.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	resolver := contacts.NewResolver(contacts.NewFileSource(contactsPath), zap.NewNop())
	cfg := &config.Config{ConversationBatchSize: convBatch, MessageBatchSize: msgBatch}
	return New(db, resolver, cfg, zap.NewNop())
}

// collector records everything a load delivers.
type collector[T any] struct {
	total     int
	batches   [][]T
	loaded    []int
	outcome   Outcome
	ended     bool
	onDeliver func(batchIndex int)
}

func (c *collector[T]) consumer() Consumer[T] {
	return ConsumerFuncs[T]{
		OnBegin: func(total int) { c.total = total },
		OnDeliver: func(batch []T, loaded int) {
			c.batches = append(c.batches, batch)
			c.loaded = append(c.loaded, loaded)
			if c.onDeliver != nil {
				c.onDeliver(len(c.batches))
			}
		},
		OnEnd: func(outcome Outcome) {
			c.outcome = outcome
			c.ended = true
		},
	}
}

func (c *collector[T]) flat() []T {
	var all []T
	for _, b := range c.batches {
		all = append(all, b...)
	}
	return all
}

func TestLoadConversationsResolves(t *testing.T) {
	ark := archivetest.New(t)

	group := ark.AddChat("g1", 43, "chat-g1", "iMessage", "Family")
	alice := ark.AddHandle("+15551234567", "iMessage", "us")
	carol := ark.AddHandle("+15559876543", "iMessage", "us")
	ark.LinkHandle(group, alice)
	ark.LinkHandle(group, carol)
	ark.AddMessage(group, archivetest.Message{GUID: "g1-m1", Text: "hi all", Date: ns(400)})

	direct := ark.AddChat("d1", 45, "+15551234567", "iMessage", "")
	ark.LinkHandle(direct, alice)
	ark.AddMessage(direct, archivetest.Message{GUID: "d1-m1", Text: "see you soon", Date: ns(300)})
	ark.AddMessage(direct, archivetest.Message{
		GUID: "d1-r1", Date: ns(350),
		AssociatedGUID: "p:0/d1-m1", AssociatedType: 2000,
	})

	unmatched := ark.AddChat("d2", 45, "+15559876543", "iMessage", "")
	ark.LinkHandle(unmatched, carol)
	ark.AddMessage(unmatched, archivetest.Message{GUID: "d2-m1", Body: fallbackBlob("from the blob"), Date: ns(200)})

	ark.AddChat("d3", 45, "chat-d3", "SMS", "")
	ark.AddChat("d4", 45, "", "", "")

	cpath := writeContacts(t, []contacts.Identity{
		{GivenName: "Alice", FamilyName: "Lee", Phones: []string{"+15551234567"}},
	})
	p := newTestPipeline(t, ark.Path, cpath, 50, 200)

	var c collector[Conversation]
	p.LoadConversations(context.Background(), c.consumer())

	if !c.ended || c.outcome.State != LoadCompleted {
		t.Fatalf("outcome = %v, ended = %v, want completed", c.outcome, c.ended)
	}
	convs := c.flat()
	if c.total != 5 || len(convs) != 5 {
		t.Fatalf("total = %d, got %d conversations, want 5", c.total, len(convs))
	}

	// Most recent message first.
	if convs[0].GUID != "g1" || convs[1].GUID != "d1" || convs[2].GUID != "d2" {
		t.Errorf("order = %q %q %q, want g1 d1 d2", convs[0].GUID, convs[1].GUID, convs[2].GUID)
	}

	byGUID := make(map[string]Conversation)
	for _, cv := range convs {
		byGUID[cv.GUID] = cv
	}

	g := byGUID["g1"]
	if g.DisplayName != "Family" || !g.IsGroup {
		t.Errorf("group = %+v, want stored title and IsGroup", g)
	}
	if len(g.Participants) != 2 || len(g.ParticipantNames) != 2 {
		t.Errorf("group participants = %v / %v, want 2 each", g.Participants, g.ParticipantNames)
	}

	d1 := byGUID["d1"]
	if d1.DisplayName != "Alice Lee" {
		t.Errorf("d1 display name = %q, want resolved contact name", d1.DisplayName)
	}
	if d1.Preview != "see you soon" {
		t.Errorf("d1 preview = %q, want content text, not the later reaction", d1.Preview)
	}
	if d1.MessageCount != 2 {
		t.Errorf("d1 message count = %d, want 2", d1.MessageCount)
	}
	if d1.LastMessageDate == nil {
		t.Error("d1 last message date = nil, want set")
	}

	d2 := byGUID["d2"]
	if d2.DisplayName != "+1-555-987-6543" {
		t.Errorf("d2 display name = %q, want formatted identifier", d2.DisplayName)
	}
	if d2.Preview != "from the blob" {
		t.Errorf("d2 preview = %q, want blob-decoded text", d2.Preview)
	}

	if got := byGUID["d3"].DisplayName; got != "chat-d3" {
		t.Errorf("d3 display name = %q, want chat identifier fallback", got)
	}
	if got := byGUID["d3"].Service; got != "SMS" {
		t.Errorf("d3 service = %q, want SMS", got)
	}
	if got := byGUID["d4"].DisplayName; got != "Unknown" {
		t.Errorf("d4 display name = %q, want Unknown", got)
	}
	if got := byGUID["d4"].Service; got != "iMessage" {
		t.Errorf("d4 service = %q, want default label", got)
	}
}

func TestLoadConversationsBatching(t *testing.T) {
	ark := archivetest.New(t)
	for i := 0; i < 5; i++ {
		id := ark.AddChat(string(rune('a'+i)), 45, "", "iMessage", "")
		ark.AddMessage(id, archivetest.Message{GUID: string(rune('a' + i)), Text: "x", Date: ns(int64(100 - i))})
	}
	p := newTestPipeline(t, ark.Path, "", 2, 200)

	var c collector[Conversation]
	p.LoadConversations(context.Background(), c.consumer())

	if c.outcome.State != LoadCompleted {
		t.Fatalf("outcome = %v, want completed", c.outcome)
	}
	sizes := []int{}
	for _, b := range c.batches {
		sizes = append(sizes, len(b))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
	want := []int{2, 4, 5}
	for i, l := range c.loaded {
		if l != want[i] {
			t.Errorf("loaded[%d] = %d, want %d", i, l, want[i])
		}
	}
}

func TestLoadConversationsCancelled(t *testing.T) {
	ark := archivetest.New(t)
	ark.AddChat("c1", 45, "x", "iMessage", "")
	p := newTestPipeline(t, ark.Path, "", 50, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var c collector[Conversation]
	p.LoadConversations(ctx, c.consumer())

	if c.outcome.State != LoadCancelled {
		t.Fatalf("outcome = %v, want cancelled", c.outcome)
	}
	if len(c.batches) != 0 {
		t.Errorf("got %d batches after pre-cancelled load, want 0", len(c.batches))
	}
}

func TestLoadConversationsFailure(t *testing.T) {
	// A zero-byte file opens as a valid empty database, so the failure
	// surfaces at query time, not open time.
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write empty db: %v", err)
	}
	p := newTestPipeline(t, path, "", 50, 200)

	var c collector[Conversation]
	p.LoadConversations(context.Background(), c.consumer())

	if c.outcome.State != LoadFailed {
		t.Fatalf("outcome = %v, want failed", c.outcome)
	}
	if !errors.Is(c.outcome.Err, archive.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", c.outcome.Err)
	}
}

func TestLoadMessagesResolves(t *testing.T) {
	ark := archivetest.New(t)
	chat := ark.AddChat("c1", 45, "+15551234567", "iMessage", "")
	alice := ark.AddHandle("+15551234567", "iMessage", "us")
	ark.LinkHandle(chat, alice)

	ark.AddMessage(chat, archivetest.Message{
		GUID: "m1", Text: "morning", HandleID: alice, Date: ns(100), Delivered: true, Read: true,
	})
	ark.AddMessage(chat, archivetest.Message{
		GUID: "m2", Body: fallbackBlob("decoded text"), FromMe: true, Sent: true, Date: ns(200),
	})
	ark.AddMessage(chat, archivetest.Message{
		GUID: "r1", HandleID: alice, Date: ns(300),
		AssociatedGUID: "p:0/m1", AssociatedType: 2000,
	})
	withAtt := ark.AddMessage(chat, archivetest.Message{
		GUID: "m3", Text: "photo", FromMe: true, Date: ns(400), HasAttachments: true,
	})
	ark.AddAttachment(withAtt, archivetest.Attachment{
		GUID: "a1", Filename: "~/Library/IMG.heic", MIMEType: "image/heic",
		TransferName: "IMG.heic", TotalBytes: 2048, TransferState: 5,
	})

	cpath := writeContacts(t, []contacts.Identity{
		{Nickname: "Alice", Phones: []string{"+15551234567"}},
	})
	p := newTestPipeline(t, ark.Path, cpath, 50, 200)

	var c collector[Message]
	p.LoadMessages(context.Background(), chat, c.consumer())

	if c.outcome.State != LoadCompleted {
		t.Fatalf("outcome = %v, want completed", c.outcome)
	}
	// Total counts every source row, reaction events included.
	if c.total != 4 {
		t.Errorf("total = %d, want 4", c.total)
	}
	msgs := c.flat()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (reaction rows folded in)", len(msgs))
	}
	if msgs[0].GUID != "m1" || msgs[1].GUID != "m2" || msgs[2].GUID != "m3" {
		t.Fatalf("order = %q %q %q, want m1 m2 m3", msgs[0].GUID, msgs[1].GUID, msgs[2].GUID)
	}

	m1 := msgs[0]
	if m1.SenderName != "Alice" || m1.SenderID != "+15551234567" {
		t.Errorf("m1 sender = %q (%q), want Alice (+15551234567)", m1.SenderName, m1.SenderID)
	}
	if len(m1.Reactions) != 1 || m1.Reactions[0].Glyph != "❤️" || m1.Reactions[0].Sender != "Alice" {
		t.Errorf("m1 reactions = %v, want one heart by Alice", m1.Reactions)
	}
	if !m1.Delivered || !m1.Read {
		t.Errorf("m1 flags = %+v, want delivered and read", m1)
	}

	m2 := msgs[1]
	if m2.Text != "decoded text" {
		t.Errorf("m2 text = %q, want blob-decoded text", m2.Text)
	}
	if !m2.FromMe || m2.SenderName != "Me" || m2.SenderID != "Me" {
		t.Errorf("m2 sender = %q (%q), want Me", m2.SenderName, m2.SenderID)
	}

	m3 := msgs[2]
	if len(m3.Attachments) != 1 {
		t.Fatalf("m3 attachments = %v, want 1", m3.Attachments)
	}
	att := m3.Attachments[0]
	if !att.IsImage || !att.Downloaded || att.TransferName != "IMG.heic" {
		t.Errorf("attachment = %+v, want downloaded image IMG.heic", att)
	}
	if att.Path == att.Filename {
		t.Errorf("path = %q, want tilde expanded", att.Path)
	}
}

func TestLoadMessagesBatchingCountsReactions(t *testing.T) {
	ark := archivetest.New(t)
	chat := ark.AddChat("c1", 45, "x", "iMessage", "")
	ark.AddMessage(chat, archivetest.Message{GUID: "m1", Text: "one", Date: ns(100)})
	ark.AddMessage(chat, archivetest.Message{GUID: "m2", Text: "two", Date: ns(200)})
	ark.AddMessage(chat, archivetest.Message{
		GUID: "r1", Date: ns(250), AssociatedGUID: "p:0/m1", AssociatedType: 2001,
	})
	ark.AddMessage(chat, archivetest.Message{GUID: "m3", Text: "three", Date: ns(300)})

	p := newTestPipeline(t, ark.Path, "", 50, 2)

	var c collector[Message]
	p.LoadMessages(context.Background(), chat, c.consumer())

	if c.outcome.State != LoadCompleted {
		t.Fatalf("outcome = %v, want completed", c.outcome)
	}
	if len(c.batches) != 2 || len(c.batches[0]) != 2 || len(c.batches[1]) != 1 {
		t.Fatalf("batch sizes = %v, want [2 1]", c.batches)
	}
	// The loaded counter tracks source rows processed, so the skipped
	// reaction row advances it.
	if c.loaded[0] != 2 || c.loaded[1] != 4 {
		t.Errorf("loaded = %v, want [2 4]", c.loaded)
	}
}

func TestLoadMessagesCancelAfterFirstBatch(t *testing.T) {
	ark := archivetest.New(t)
	chat := ark.AddChat("c1", 45, "x", "iMessage", "")
	for i := int64(1); i <= 3; i++ {
		ark.AddMessage(chat, archivetest.Message{GUID: string(rune('m' + i)), Text: "x", Date: ns(i * 100)})
	}
	p := newTestPipeline(t, ark.Path, "", 50, 1)

	ctx, cancel := context.WithCancel(context.Background())
	var c collector[Message]
	c.onDeliver = func(batchIndex int) {
		if batchIndex == 1 {
			cancel()
		}
	}
	p.LoadMessages(ctx, chat, c.consumer())

	if c.outcome.State != LoadCancelled {
		t.Fatalf("outcome = %v, want cancelled, never a failure", c.outcome)
	}
	if len(c.batches) != 1 {
		t.Errorf("got %d batches, want exactly the one delivered before cancel", len(c.batches))
	}
}

func TestLoadMessagesSupersede(t *testing.T) {
	ark := archivetest.New(t)
	chat := ark.AddChat("c1", 45, "x", "iMessage", "")
	ark.AddMessage(chat, archivetest.Message{GUID: "m1", Text: "x", Date: ns(100)})

	p := newTestPipeline(t, ark.Path, "", 50, 200)

	started := make(chan struct{})
	proceed := make(chan struct{})
	done1 := make(chan Outcome, 1)
	first := ConsumerFuncs[Message]{
		OnBegin: func(int) {
			close(started)
			<-proceed
		},
		OnEnd: func(o Outcome) { done1 <- o },
	}
	go p.LoadMessages(context.Background(), chat, first)
	<-started

	started2 := make(chan struct{})
	done2 := make(chan Outcome, 1)
	second := ConsumerFuncs[Message]{
		OnBegin: func(int) { close(started2) },
		OnEnd:   func(o Outcome) { done2 <- o },
	}
	go p.LoadMessages(context.Background(), chat, second)

	// The second load begins only after it has superseded the first, so the
	// first load's context is guaranteed cancelled here.
	<-started2
	close(proceed)
	if out := <-done1; out.State != LoadCancelled {
		t.Errorf("first load outcome = %v, want cancelled by the newer load", out)
	}
	if out := <-done2; out.State != LoadCompleted {
		t.Errorf("second load outcome = %v, want completed", out)
	}
}

func TestLoadMessagesFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write empty db: %v", err)
	}
	p := newTestPipeline(t, path, "", 50, 200)

	var c collector[Message]
	p.LoadMessages(context.Background(), 1, c.consumer())

	if c.outcome.State != LoadFailed || !errors.Is(c.outcome.Err, archive.ErrUnavailable) {
		t.Fatalf("outcome = %v, want failed with ErrUnavailable", c.outcome)
	}
}
