package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/rcoelho/imarchive/internal/app"
	"github.com/rcoelho/imarchive/internal/bus"
	"github.com/rcoelho/imarchive/internal/pipeline"
)

func main() {
	archiveFlag := flag.String("archive", "", "path to the Messages archive (overrides config)")
	contactsFlag := flag.String("contacts", "", "path to the contacts export (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var (
		p *pipeline.Pipeline
		b *bus.Bus
	)
	fxApp := fx.New(
		app.Module(app.Params{ArchivePath: *archiveFlag, ContactsPath: *contactsFlag}),
		fx.NopLogger,
		fx.Populate(&p, &b),
	)

	ctx := context.Background()
	if err := fxApp.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = fxApp.Stop(ctx) }()

	var ok bool
	switch args[0] {
	case "conversations":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		ok = cmdConversations(ctx, p, b, query, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: imarchive messages <chat-id>")
			os.Exit(1)
		}
		chatID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid chat id %q\n", args[1])
			os.Exit(1)
		}
		ok = cmdMessages(ctx, p, b, chatID, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if !ok {
		_ = fxApp.Stop(ctx)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: imarchive [--archive <path>] [--contacts <path>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations [query]   List conversations, optionally filtered")
	fmt.Fprintln(os.Stderr, "  messages <chat-id>      Print one conversation's transcript")
}

// cmdConversations streams the conversation list over the bus and renders
// batches as they arrive. Returns false on a failed load.
func cmdConversations(ctx context.Context, p *pipeline.Pipeline, b *bus.Bus, query string, jsonOut bool) bool {
	events, unsub := b.Subscribe("load.conversations.", 64)
	defer unsub()

	loadID := uuid.NewString()
	go p.LoadConversations(ctx, pipeline.NewConversationBusConsumer(b, loadID))

	var all []pipeline.Conversation
	for evt := range events {
		if evt.LoadID != loadID {
			continue
		}
		switch evt.Kind {
		case bus.KindConversationsBatch:
			payload := evt.Payload.(pipeline.BatchPayload[pipeline.Conversation])
			all = append(all, payload.Batch...)
		case bus.KindConversationsEnd:
			outcome := evt.Payload.(pipeline.Outcome)
			if outcome.State != pipeline.LoadCompleted {
				fmt.Fprintf(os.Stderr, "error: load %s\n", outcome)
				return false
			}
			renderConversations(pipeline.FilterConversations(all, query), jsonOut)
			return true
		}
	}
	return false
}

func renderConversations(convs []pipeline.Conversation, jsonOut bool) {
	if jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return
	}
	for _, c := range convs {
		marker := " "
		if c.IsGroup {
			marker = "*"
		}
		last := ""
		if c.LastMessageDate != nil {
			last = c.LastMessageDate.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%6d %s %-30s %5d msgs  %16s  %s\n",
			c.ChatID, marker, c.DisplayName, c.MessageCount, last, c.Preview)
	}
}

// cmdMessages prints one conversation's transcript. Returns false on a
// failed load.
func cmdMessages(ctx context.Context, p *pipeline.Pipeline, b *bus.Bus, chatID int64, jsonOut bool) bool {
	events, unsub := b.Subscribe("load.messages.", 64)
	defer unsub()

	loadID := uuid.NewString()
	go p.LoadMessages(ctx, chatID, pipeline.NewMessageBusConsumer(b, loadID))

	var all []pipeline.Message
	for evt := range events {
		if evt.LoadID != loadID {
			continue
		}
		switch evt.Kind {
		case bus.KindMessagesBatch:
			payload := evt.Payload.(pipeline.BatchPayload[pipeline.Message])
			if jsonOut {
				all = append(all, payload.Batch...)
				continue
			}
			for _, m := range payload.Batch {
				renderMessage(m)
			}
		case bus.KindMessagesEnd:
			outcome := evt.Payload.(pipeline.Outcome)
			if outcome.State != pipeline.LoadCompleted {
				fmt.Fprintf(os.Stderr, "error: load %s\n", outcome)
				return false
			}
			if jsonOut {
				outputJSON(all)
			}
			return true
		}
	}
	return false
}

func renderMessage(m pipeline.Message) {
	if !m.HasContent() {
		return
	}
	fmt.Println(m.TranscriptLine())
	for _, att := range m.Attachments {
		status := "missing"
		if att.Downloaded {
			status = att.FormattedSize()
		}
		fmt.Printf("    [attachment] %s (%s, %s)\n", att.TransferName, att.MIMEType, status)
	}
	for _, r := range m.Reactions {
		fmt.Printf("    %s %s\n", r.Glyph, r.Sender)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
