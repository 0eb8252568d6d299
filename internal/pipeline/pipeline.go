// Package pipeline orchestrates the archive query layer, the blob decoder,
// the identity resolver and the reaction reconciler into incremental,
// cancellable loads delivered to a consumer in fixed-size batches.
package pipeline

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rcoelho/imarchive/internal/archive"
	"github.com/rcoelho/imarchive/internal/config"
	"github.com/rcoelho/imarchive/internal/contacts"
	"github.com/rcoelho/imarchive/internal/reactions"
	"github.com/rcoelho/imarchive/internal/typedstream"
)

// Pipeline drives the load operations. It owns no entities beyond one load;
// the resolver's cache is the only state that outlives a load.
type Pipeline struct {
	db        *archive.DB
	resolver  *contacts.Resolver
	logger    *zap.Logger
	convBatch int
	msgBatch  int

	mu     sync.Mutex
	active *loadHandle // in-flight message load, if any
}

type loadHandle struct {
	cancel context.CancelFunc
}

// New creates a pipeline with the configured batch sizes.
func New(db *archive.DB, resolver *contacts.Resolver, cfg *config.Config, logger *zap.Logger) *Pipeline {
	convBatch := cfg.ConversationBatchSize
	if convBatch <= 0 {
		convBatch = config.DefaultConversationBatchSize
	}
	msgBatch := cfg.MessageBatchSize
	if msgBatch <= 0 {
		msgBatch = config.DefaultMessageBatchSize
	}
	return &Pipeline{
		db:        db,
		resolver:  resolver,
		logger:    logger,
		convBatch: convBatch,
		msgBatch:  msgBatch,
	}
}

// LoadConversations streams the conversation list to the consumer in fetch
// order. It blocks until the load reaches a terminal state; run it on its
// own goroutine for background loading.
func (p *Pipeline) LoadConversations(ctx context.Context, consumer Consumer[Conversation]) {
	p.resolver.EnsureAccess(ctx)

	raws, err := p.db.Conversations()
	if err != nil {
		p.logger.Error("conversation load failed", zap.Error(err))
		consumer.End(failed(err))
		return
	}
	consumer.Begin(len(raws))

	batch := make([]Conversation, 0, p.convBatch)
	for i, raw := range raws {
		if ctx.Err() != nil {
			consumer.End(cancelled())
			return
		}

		handles, err := p.db.ConversationHandles(raw.RowID)
		if err != nil {
			p.logger.Error("conversation load failed", zap.Error(err), zap.Int64("chat_id", raw.RowID))
			consumer.End(failed(err))
			return
		}
		participants := make([]string, 0, len(handles))
		names := make([]string, 0, len(handles))
		for _, h := range handles {
			participants = append(participants, h.ID)
			names = append(names, p.resolver.DisplayName(h.ID))
		}

		preview, err := p.loadPreview(raw.RowID)
		if err != nil {
			p.logger.Error("conversation load failed", zap.Error(err), zap.Int64("chat_id", raw.RowID))
			consumer.End(failed(err))
			return
		}

		batch = append(batch, Conversation{
			ChatID:           raw.RowID,
			GUID:             raw.GUID,
			DisplayName:      displayName(raw, names),
			Participants:     participants,
			ParticipantNames: names,
			MessageCount:     raw.MessageCount,
			LastMessageDate:  archive.TimeFromArchive(raw.LastMessageDate),
			Preview:          preview,
			IsGroup:          raw.IsGroup(),
			Service:          serviceLabel(raw.ServiceName),
		})

		if len(batch) >= p.convBatch {
			consumer.Deliver(batch, i+1)
			batch = make([]Conversation, 0, p.convBatch)
		}
	}
	if len(batch) > 0 {
		consumer.Deliver(batch, len(raws))
	}
	consumer.End(completed())
}

// displayName derives the conversation title: stored title, then the single
// participant's name, then comma-joined names, then the raw chat
// identifier, then Unknown.
func displayName(raw archive.ConversationRow, names []string) string {
	switch {
	case raw.DisplayName != "":
		return raw.DisplayName
	case len(names) == 1:
		return names[0]
	case len(names) > 1:
		return strings.Join(names, ", ")
	case raw.ChatIdentifier != "":
		return raw.ChatIdentifier
	}
	return "Unknown"
}

func serviceLabel(s string) string {
	if s == "" {
		return "iMessage"
	}
	return s
}

// loadPreview resolves a conversation's preview text, decoding the blob
// when inline text is absent. A preview that fails to decode is simply
// empty, never an error.
func (p *Pipeline) loadPreview(chatID int64) (string, error) {
	row, err := p.db.LastMessagePreview(chatID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	if row.Text != "" {
		return row.Text, nil
	}
	if len(row.Body) > 0 {
		if text, ok := typedstream.ExtractText(row.Body); ok {
			return text, nil
		}
	}
	return "", nil
}

// LoadMessages streams one conversation's messages to the consumer in
// ascending timestamp order. Starting a new message load cancels any
// in-flight one; at most one is active at a time. Blocks until terminal.
func (p *Pipeline) LoadMessages(ctx context.Context, chatID int64, consumer Consumer[Message]) {
	ctx, handle := p.supersede(ctx)
	defer p.release(handle)

	p.resolver.EnsureAccess(ctx)

	handles, err := p.db.Handles()
	if err != nil {
		p.logger.Error("message load failed", zap.Error(err), zap.Int64("chat_id", chatID))
		consumer.End(failed(err))
		return
	}
	rows, err := p.db.Messages(chatID)
	if err != nil {
		p.logger.Error("message load failed", zap.Error(err), zap.Int64("chat_id", chatID))
		consumer.End(failed(err))
		return
	}
	if ctx.Err() != nil {
		consumer.End(cancelled())
		return
	}
	consumer.Begin(len(rows))

	senderName := func(m archive.MessageRow) string {
		if m.IsFromMe {
			return "Me"
		}
		if h, ok := handles[m.HandleID]; ok {
			return p.resolver.DisplayName(h.ID)
		}
		return "Unknown"
	}
	reactionMap := reactions.Resolve(rows, senderName)

	batch := make([]Message, 0, p.msgBatch)
	processed := 0
	for _, row := range rows {
		// Cancellation is advisory: checked once per row, never mid-row.
		if ctx.Err() != nil {
			consumer.End(cancelled())
			return
		}
		processed++

		if row.IsReaction() {
			continue
		}

		msg, err := p.resolveMessage(row, handles, senderName, reactionMap)
		if err != nil {
			p.logger.Error("message load failed", zap.Error(err), zap.Int64("message_id", row.RowID))
			consumer.End(failed(err))
			return
		}
		batch = append(batch, msg)

		if len(batch) >= p.msgBatch {
			consumer.Deliver(batch, processed)
			batch = make([]Message, 0, p.msgBatch)
		}
	}
	if len(batch) > 0 {
		consumer.Deliver(batch, processed)
	}
	consumer.End(completed())
}

// supersede cancels any in-flight message load and registers this one.
func (p *Pipeline) supersede(ctx context.Context) (context.Context, *loadHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		p.active.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	handle := &loadHandle{cancel: cancel}
	p.active = handle
	return ctx, handle
}

// release clears the active slot if it still belongs to this load.
func (p *Pipeline) release(handle *loadHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handle.cancel()
	if p.active == handle {
		p.active = nil
	}
}

func (p *Pipeline) resolveMessage(row archive.MessageRow, handles map[int64]archive.HandleRow,
	senderName func(archive.MessageRow) string, reactionMap map[string][]reactions.Reaction) (Message, error) {

	text := row.Text
	if text == "" && len(row.Body) > 0 {
		decoded, ok := typedstream.ExtractText(row.Body)
		if ok {
			text = decoded
		} else {
			// Decode failures are common and recover to no text.
			p.logger.Debug("blob decode yielded no text", zap.Int64("message_id", row.RowID))
		}
	}

	senderID := "Me"
	if !row.IsFromMe {
		if h, ok := handles[row.HandleID]; ok {
			senderID = h.ID
		} else {
			senderID = "Unknown"
		}
	}

	var atts []Attachment
	if row.CacheHasAttachments {
		raws, err := p.db.Attachments(row.RowID)
		if err != nil {
			return Message{}, err
		}
		for _, a := range raws {
			atts = append(atts, Attachment{
				ID:           a.RowID,
				Filename:     a.Filename,
				TransferName: a.TransferName,
				MIMEType:     a.MIMEType,
				TotalBytes:   a.TotalBytes,
				IsImage:      a.IsImage(),
				IsVideo:      a.IsVideo(),
				Downloaded:   a.IsDownloaded(),
				Path:         a.ResolvedPath(),
			})
		}
	}

	return Message{
		ID:                   row.RowID,
		GUID:                 row.GUID,
		Text:                 text,
		SenderName:           senderName(row),
		SenderID:             senderID,
		FromMe:               row.IsFromMe,
		Date:                 archive.TimeFromArchive(row.Date),
		DateRead:             archive.TimeFromArchive(row.DateRead),
		DateDelivered:        archive.TimeFromArchive(row.DateDelivered),
		Service:              serviceLabel(row.Service),
		Delivered:            row.IsDelivered,
		Read:                 row.IsRead,
		Sent:                 row.IsSent,
		System:               row.IsSystemMessage,
		Edited:               row.IsEdited(),
		Retracted:            row.IsRetracted(),
		ReplyToGUID:          row.ReplyToGUID,
		ThreadOriginatorGUID: row.ThreadOriginatorGUID,
		GroupTitle:           row.GroupTitle,
		GroupActionType:      row.GroupActionType,
		Reactions:            reactionMap[row.GUID],
		Attachments:          atts,
	}, nil
}
