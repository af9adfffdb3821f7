package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Pure-Go SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

// SQLiteLookup reads metadata from a table with columns id, url, title, records.
type SQLiteLookup struct {
	db    *sql.DB
	query string
	owned bool
}

// OpenSQLite opens the database at path read-only and looks up rows in table.
func OpenSQLite(ctx context.Context, path, table string) (*SQLiteLookup, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: ping %s: %w", path, err)
	}
	l := NewSQLiteLookup(db, table)
	l.owned = true
	return l, nil
}

// NewSQLiteLookup uses an already open database. Close does not close db.
func NewSQLiteLookup(db *sql.DB, table string) *SQLiteLookup {
	if table == "" {
		table = "dataset"
	}
	return &SQLiteLookup{
		db:    db,
		query: fmt.Sprintf(`SELECT id, url, title, records FROM %q WHERE id = ?`, table),
	}
}

// Lookup implements Lookup.
func (l *SQLiteLookup) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	var (
		d          Dataset
		url, title sql.NullString
		records    sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx, l.query, id).Scan(&d.ID, &url, &title, &records)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, false, nil
	}
	if err != nil {
		return Dataset{}, false, fmt.Errorf("metadata: sqlite lookup %s: %w", id, err)
	}
	d.URL = url.String
	d.Title = title.String
	d.RecordCount = records.Int64
	return d, true, nil
}

// Close closes the database if OpenSQLite opened it.
func (l *SQLiteLookup) Close() error {
	if l.owned {
		return l.db.Close()
	}
	return nil
}
