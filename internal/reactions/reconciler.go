// Package reactions reconciles the archive's flat stream of reaction
// pseudo-messages into the current reaction set per content message.
package reactions

import (
	"sort"
	"strings"

	"github.com/rcoelho/imarchive/internal/archive"
)

// Reaction is one (glyph, sender) pair still present on a message after all
// add and remove events are applied.
type Reaction struct {
	Glyph  string
	Sender string
}

// Default glyphs for association codes carrying no explicit emoji. Add and
// remove codes for the same reaction type share a glyph. Codes 2006/3006
// are custom-emoji events and always carry the glyph explicitly.
var glyphByCode = map[int64]string{
	2000: "❤️", // heart
	3000: "❤️",
	2001: "\U0001f44d", // thumbs-up
	3001: "\U0001f44d",
	2002: "\U0001f44e", // thumbs-down
	3002: "\U0001f44e",
	2003: "\U0001f602", // laughing
	3003: "\U0001f602",
	2004: "‼️", // double-exclamation
	3004: "‼️",
	2005: "❓", // question-mark
	3005: "❓",
}

// TargetGUID extracts the target message GUID from the composite
// associated-target reference (observed shape "p:N/GUID"). The target is
// the substring after the last slash, or the whole string without one.
func TargetGUID(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Glyph resolves the reaction glyph for an event row: the explicit emoji
// when present, else the fixed glyph for its association code. Empty when
// neither yields one.
func Glyph(m archive.MessageRow) string {
	if m.AssociatedEmoji != "" {
		return m.AssociatedEmoji
	}
	return glyphByCode[m.AssociatedType]
}

// Resolve applies every reaction event in the given rows, in their given
// order, and returns the final deduplicated reaction list per content
// message GUID. Events whose target matches no content row are dropped.
// senderName attributes each event to a display name.
//
// Events are applied in storage order, not timestamp order; the archive
// delivers them in logical order and the last action for a (glyph, sender)
// pair wins.
func Resolve(rows []archive.MessageRow, senderName func(archive.MessageRow) string) map[string][]Reaction {
	content := make(map[string]bool)
	for _, m := range rows {
		if !m.IsReaction() {
			content[m.GUID] = true
		}
	}

	// target GUID -> glyph -> set of senders currently reacting
	active := make(map[string]map[string]map[string]bool)
	for _, m := range rows {
		if !m.IsReaction() || m.AssociatedGUID == "" {
			continue
		}
		target := TargetGUID(m.AssociatedGUID)
		if !content[target] {
			continue
		}
		glyph := Glyph(m)
		if glyph == "" {
			continue
		}
		sender := senderName(m)

		byGlyph := active[target]
		if byGlyph == nil {
			byGlyph = make(map[string]map[string]bool)
			active[target] = byGlyph
		}
		if m.IsReactionRemoval() {
			delete(byGlyph[glyph], sender)
			continue
		}
		if byGlyph[glyph] == nil {
			byGlyph[glyph] = make(map[string]bool)
		}
		byGlyph[glyph][sender] = true
	}

	result := make(map[string][]Reaction)
	for target, byGlyph := range active {
		var list []Reaction
		for glyph, senders := range byGlyph {
			for sender := range senders {
				list = append(list, Reaction{Glyph: glyph, Sender: sender})
			}
		}
		if len(list) == 0 {
			continue
		}
		// Presentation contract: glyph text first, sender name second.
		sort.Slice(list, func(i, j int) bool {
			if list[i].Glyph != list[j].Glyph {
				return list[i].Glyph < list[j].Glyph
			}
			return list[i].Sender < list[j].Sender
		})
		result[target] = list
	}
	return result
}
