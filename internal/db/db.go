// Package db implements the embedded SQLite store (via modernc.org/sqlite,
// pure Go and cgo-free) holding the notes table, the FTS5 virtual table,
// and the link graph's edge table.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/RamXX/memory-mcp/internal/errs"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = "1"

// Stats reports note/link counts, file size, and vacuum bookkeeping.
type Stats struct {
	NoteCount  int64
	LinkCount  int64
	FileSizeB  int64
	LastVacuum time.Time
}

// DB wraps the embedded SQLite connection and bootstraps its schema.
type DB struct {
	conn *sql.DB
	path string
}

// Options configures Open's pragmas.
type Options struct {
	PageSize  int
	CacheSize int
}

// Open opens (creating if absent) the database at path, applies its
// pragmas, and bootstraps the schema.
func Open(path string, opts Options) (*DB, error) {
	const op = "db.Open"

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.Wrap(errs.DatabaseError, op, err)
		}
	}

	escaped := strings.ReplaceAll(path, " ", "%20")
	conn, err := sql.Open("sqlite", "file:"+escaped+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errs.Wrap(errs.DatabaseError, op, err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	if opts.PageSize > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA page_size=%d", opts.PageSize))
	}
	if opts.CacheSize > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size=%d", opts.CacheSize))
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, errs.Wrap(errs.DatabaseError, op, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.DatabaseError, op, err)
	}

	d := &DB{conn: conn, path: path}
	if err := d.bootstrapVersion(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) bootstrapVersion() error {
	const op = "db.DB.bootstrapVersion"
	_, err := d.conn.Exec(
		`INSERT INTO index_metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`, schemaVersion)
	if err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if err := d.conn.Close(); err != nil {
		return errs.Wrap(errs.DatabaseError, "db.DB.Close", err)
	}
	return nil
}

// Conn exposes the raw *sql.DB for packages that run their own queries
// (index, graph) against the shared schema.
func (d *DB) Conn() *sql.DB { return d.conn }

// Transaction runs fn inside a transaction, rolling back on any error fn
// returns (or panics) and committing otherwise.
func (d *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const op = "db.DB.Transaction"

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	return nil
}

// Optimize runs a VACUUM and ANALYZE, recording last_vacuum in
// index_metadata.
func (d *DB) Optimize(ctx context.Context) error {
	const op = "db.DB.Optimize"

	if _, err := d.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	if _, err := d.conn.ExecContext(ctx, "ANALYZE"); err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO index_metadata(key, value) VALUES ('last_vacuum', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, now)
	if err != nil {
		return errs.Wrap(errs.DatabaseError, op, err)
	}
	return nil
}

// CheckIntegrity runs SQLite's own integrity check.
func (d *DB) CheckIntegrity(ctx context.Context) (bool, error) {
	const op = "db.DB.CheckIntegrity"
	var result string
	if err := d.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return false, errs.Wrap(errs.DatabaseError, op, err)
	}
	return result == "ok", nil
}

// Stats reports note and link counts, on-disk file size, and the last
// recorded vacuum time.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	const op = "db.DB.Stats"
	var s Stats

	if err := d.conn.QueryRowContext(ctx, "SELECT count(*) FROM notes").Scan(&s.NoteCount); err != nil {
		return Stats{}, errs.Wrap(errs.DatabaseError, op, err)
	}
	if err := d.conn.QueryRowContext(ctx, "SELECT count(*) FROM links").Scan(&s.LinkCount); err != nil {
		return Stats{}, errs.Wrap(errs.DatabaseError, op, err)
	}

	if d.path != ":memory:" {
		if info, err := os.Stat(d.path); err == nil {
			s.FileSizeB = info.Size()
		}
	}

	var lastVacuum string
	err := d.conn.QueryRowContext(ctx, "SELECT value FROM index_metadata WHERE key = 'last_vacuum'").Scan(&lastVacuum)
	if err == nil {
		if t, perr := time.Parse(time.RFC3339, lastVacuum); perr == nil {
			s.LastVacuum = t
		}
	} else if err != sql.ErrNoRows {
		return Stats{}, errs.Wrap(errs.DatabaseError, op, err)
	}

	return s, nil
}

// SchemaVersion returns the integer schema_version recorded at bootstrap.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	const op = "db.DB.SchemaVersion"
	var v string
	err := d.conn.QueryRowContext(ctx, "SELECT value FROM index_metadata WHERE key = 'schema_version'").Scan(&v)
	if err != nil {
		return 0, errs.Wrap(errs.DatabaseError, op, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.Wrap(errs.DatabaseError, op, err)
	}
	return n, nil
}
