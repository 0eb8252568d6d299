package archive

// Messages returns all rows for one chat, content and reaction events
// alike, ordered by timestamp ascending with stored order breaking ties.
func (db *DB) Messages(chatID int64) ([]MessageRow, error) {
	rows, err := db.Query(`
		SELECT m.ROWID, m.guid,
			COALESCE(m.text, ''), m.attributedBody,
			COALESCE(m.handle_id, 0), COALESCE(m.service, ''),
			COALESCE(m.date, 0), COALESCE(m.date_read, 0), COALESCE(m.date_delivered, 0),
			COALESCE(m.is_from_me, 0), COALESCE(m.is_delivered, 0),
			COALESCE(m.is_read, 0), COALESCE(m.is_sent, 0),
			COALESCE(m.is_system_message, 0), COALESCE(m.cache_has_attachments, 0),
			COALESCE(m.associated_message_guid, ''), COALESCE(m.associated_message_type, 0),
			COALESCE(m.associated_message_emoji, ''), COALESCE(m.associated_message_range_location, 0),
			COALESCE(m.reply_to_guid, ''), COALESCE(m.thread_originator_guid, ''),
			COALESCE(m.thread_originator_part, ''),
			COALESCE(m.group_title, ''), COALESCE(m.group_action_type, 0),
			COALESCE(m.date_retracted, 0), COALESCE(m.date_edited, 0)
		FROM message m
		JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
		WHERE cmj.chat_id = ?
		ORDER BY m.date ASC, m.ROWID ASC`, chatID)
	if err != nil {
		return nil, unavailable("query messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.RowID, &m.GUID,
			&m.Text, &m.Body,
			&m.HandleID, &m.Service,
			&m.Date, &m.DateRead, &m.DateDelivered,
			&m.IsFromMe, &m.IsDelivered,
			&m.IsRead, &m.IsSent,
			&m.IsSystemMessage, &m.CacheHasAttachments,
			&m.AssociatedGUID, &m.AssociatedType,
			&m.AssociatedEmoji, &m.AssociatedRangeLoc,
			&m.ReplyToGUID, &m.ThreadOriginatorGUID,
			&m.ThreadOriginatorPart,
			&m.GroupTitle, &m.GroupActionType,
			&m.DateRetracted, &m.DateEdited); err != nil {
			return nil, unavailable("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read messages", err)
	}
	return msgs, nil
}
