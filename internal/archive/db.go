package archive

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnavailable reports that the archive cannot be opened or read. Every
// failed query wraps it, so callers classify with errors.Is and never see
// partial results.
var ErrUnavailable = errors.New("archive unavailable")

// DB wraps a strictly read-only SQLite connection to the Messages archive.
type DB struct {
	*sql.DB
}

// Open opens the archive read-only. The connection never mutates the store;
// query_only is enforced at the engine level on top of the ro open mode.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_query_only=true&_busy_timeout=5000")
	if err != nil {
		return nil, unavailable("open archive", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, unavailable("ping archive", err)
	}
	return &DB{db}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
