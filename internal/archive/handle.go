package archive

// Handles returns every handle in the archive keyed by its numeric id.
// Fetched once per load for O(1) lookup during message resolution.
func (db *DB) Handles() (map[int64]HandleRow, error) {
	rows, err := db.Query(`
		SELECT ROWID, id, COALESCE(service, ''), COALESCE(country, '')
		FROM handle`)
	if err != nil {
		return nil, unavailable("query handles", err)
	}
	defer func() { _ = rows.Close() }()

	handles := make(map[int64]HandleRow)
	for rows.Next() {
		var h HandleRow
		if err := rows.Scan(&h.RowID, &h.ID, &h.Service, &h.Country); err != nil {
			return nil, unavailable("scan handle", err)
		}
		handles[h.RowID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read handles", err)
	}
	return handles, nil
}
