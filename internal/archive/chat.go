package archive

import "database/sql"

// Conversations returns all chats ordered by most recent activity
// descending, each with its aggregate message count and last-activity
// timestamp from the chat_message_join table.
func (db *DB) Conversations() ([]ConversationRow, error) {
	rows, err := db.Query(`
		SELECT c.ROWID, c.guid, c.style,
			COALESCE(c.chat_identifier, ''),
			COALESCE(c.service_name, ''),
			COALESCE(c.display_name, ''),
			COUNT(cmj.message_id) AS message_count,
			COALESCE(MAX(cmj.message_date), 0) AS last_message_date
		FROM chat c
		LEFT JOIN chat_message_join cmj ON cmj.chat_id = c.ROWID
		GROUP BY c.ROWID
		ORDER BY last_message_date DESC`)
	if err != nil {
		return nil, unavailable("query conversations", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []ConversationRow
	for rows.Next() {
		var c ConversationRow
		if err := rows.Scan(&c.RowID, &c.GUID, &c.Style, &c.ChatIdentifier,
			&c.ServiceName, &c.DisplayName, &c.MessageCount, &c.LastMessageDate); err != nil {
			return nil, unavailable("scan conversation", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read conversations", err)
	}
	return convs, nil
}

// ConversationHandles returns the participant handles for one chat.
func (db *DB) ConversationHandles(chatID int64) ([]HandleRow, error) {
	rows, err := db.Query(`
		SELECT h.ROWID, h.id, COALESCE(h.service, ''), COALESCE(h.country, '')
		FROM handle h
		JOIN chat_handle_join chj ON chj.handle_id = h.ROWID
		WHERE chj.chat_id = ?
		ORDER BY h.ROWID`, chatID)
	if err != nil {
		return nil, unavailable("query chat handles", err)
	}
	defer func() { _ = rows.Close() }()

	var handles []HandleRow
	for rows.Next() {
		var h HandleRow
		if err := rows.Scan(&h.RowID, &h.ID, &h.Service, &h.Country); err != nil {
			return nil, unavailable("scan handle", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read chat handles", err)
	}
	return handles, nil
}

// LastMessagePreview returns the most recent non-reaction message's text and
// blob for a chat, undecoded. Returns nil if the chat has no content rows.
func (db *DB) LastMessagePreview(chatID int64) (*PreviewRow, error) {
	var p PreviewRow
	err := db.QueryRow(`
		SELECT COALESCE(m.text, ''), m.attributedBody
		FROM message m
		JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
		WHERE cmj.chat_id = ?
		  AND m.associated_message_type = 0
		ORDER BY m.date DESC
		LIMIT 1`, chatID).Scan(&p.Text, &p.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("query preview", err)
	}
	return &p, nil
}
