package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas are applied by the driver to every pooled connection. _txlock makes
// every BeginTx a BEGIN IMMEDIATE, so a write transaction holds the write lock
// from its first read and check-then-act sequences cannot interleave.
var pragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
}

// DSN builds the driver connection string for a database file. A "file:" URI
// keeps its own parameters and gets every pragma it does not set itself.
func DSN(path string) string {
	if !strings.HasPrefix(path, "file:") {
		return "file:" + path + "?" + strings.Join(pragmas, "&")
	}

	base, query, _ := strings.Cut(path, "?")
	params := make([]string, 0, len(pragmas)+1)
	if query != "" {
		params = append(params, query)
	}
	for _, p := range pragmas {
		if !strings.Contains(query, pragmaKey(p)) {
			params = append(params, p)
		}
	}
	return base + "?" + strings.Join(params, "&")
}

// pragmaKey is the part of a parameter that names what it sets, e.g.
// "busy_timeout(" or "_txlock=".
func pragmaKey(p string) string {
	if name, ok := strings.CutPrefix(p, "_pragma="); ok {
		i := strings.IndexByte(name, '(')
		return name[:i+1]
	}
	key, _, _ := strings.Cut(p, "=")
	return key + "="
}

// Open opens a SQLite database connection and configures pragmas.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, nil
}
