package archive

// Attachments returns the attachments joined to a single message. Callers
// only invoke this for rows flagged with cache_has_attachments.
func (db *DB) Attachments(messageID int64) ([]AttachmentRow, error) {
	rows, err := db.Query(`
		SELECT a.ROWID, a.guid,
			COALESCE(a.filename, ''), COALESCE(a.mime_type, ''), COALESCE(a.uti, ''),
			COALESCE(a.transfer_name, ''), COALESCE(a.total_bytes, 0),
			COALESCE(a.transfer_state, 0), COALESCE(a.is_outgoing, 0)
		FROM attachment a
		JOIN message_attachment_join maj ON maj.attachment_id = a.ROWID
		WHERE maj.message_id = ?
		ORDER BY a.ROWID`, messageID)
	if err != nil {
		return nil, unavailable("query attachments", err)
	}
	defer func() { _ = rows.Close() }()

	var atts []AttachmentRow
	for rows.Next() {
		var a AttachmentRow
		if err := rows.Scan(&a.RowID, &a.GUID,
			&a.Filename, &a.MIMEType, &a.UTI,
			&a.TransferName, &a.TotalBytes,
			&a.TransferState, &a.IsOutgoing); err != nil {
			return nil, unavailable("scan attachment", err)
		}
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read attachments", err)
	}
	return atts, nil
}
