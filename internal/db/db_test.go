package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	d, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenBootstrapsSchemaVersion(t *testing.T) {
	d := openTestDB(t)
	v, err := d.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected schema version 1, got %d", v)
	}
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notes(uid, title, category, file_path, tags_json, content_hash, created_at, updated_at, indexed_at)
			 VALUES ('u1','T','Resources','/vault/t.md','[]','h1','2026-01-01T00:00:00Z','2026-01-01T00:00:00Z','2026-01-01T00:00:00Z')`)
		return err
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NoteCount != 1 {
		t.Fatalf("expected 1 note, got %d", stats.NoteCount)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	wantErr := sql.ErrNoRows
	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes(uid, title, category, file_path, tags_json, content_hash, created_at, updated_at, indexed_at)
			 VALUES ('u2','T','Resources','/vault/t2.md','[]','h2','2026-01-01T00:00:00Z','2026-01-01T00:00:00Z','2026-01-01T00:00:00Z')`); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the sentinel error to propagate, got %v", err)
	}

	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NoteCount != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", stats.NoteCount)
	}
}

func TestCheckIntegrity(t *testing.T) {
	d := openTestDB(t)
	ok, err := d.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if !ok {
		t.Fatalf("expected a freshly bootstrapped database to pass integrity check")
	}
}

func TestOptimizeRecordsLastVacuum(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	if err := d.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.LastVacuum.IsZero() {
		t.Fatalf("expected LastVacuum to be recorded")
	}
}
