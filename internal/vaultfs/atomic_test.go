package vaultfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RamXX/memory-mcp/internal/errs"
)

func TestAtomicWriteCreatesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	if err := AtomicWrite(path, []byte("first"), false); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "first" {
		t.Fatalf("unexpected content: %q, err %v", data, err)
	}

	if err := AtomicWrite(path, []byte("second"), false); err != nil {
		t.Fatalf("AtomicWrite overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("expected overwrite, got %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestAtomicWriteCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "note.md")

	if err := AtomicWrite(path, []byte("x"), true); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestAtomicWriteFailsWithoutCreateDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "note.md")

	if err := AtomicWrite(path, []byte("x"), false); err == nil {
		t.Fatalf("expected failure when parent dir is missing")
	}
}

func TestSafeReadNotFound(t *testing.T) {
	_, err := SafeRead(filepath.Join(t.TempDir(), "absent.md"))
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListMarkdownRecursiveAndFilters(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.md"), "a")
	mustWrite(t, filepath.Join(dir, ".hidden.md"), "h")
	mustWrite(t, filepath.Join(dir, "notes.tmp"), "t")
	mustWrite(t, filepath.Join(dir, "sub", "b.md"), "b")
	mustWrite(t, filepath.Join(dir, ".git", "c.md"), "c")

	got, err := ListMarkdown(dir, ListOptions{Recursive: true})
	if err != nil {
		t.Fatalf("ListMarkdown: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 markdown files, got %v", got)
	}
}

func TestListMarkdownNonRecursive(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.md"), "a")
	mustWrite(t, filepath.Join(dir, "sub", "b.md"), "b")

	got, err := ListMarkdown(dir, ListOptions{Recursive: false})
	if err != nil {
		t.Fatalf("ListMarkdown: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the top-level file, got %v", got)
	}
}

func TestCreateBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	mustWrite(t, path, "content")

	backupPath, err := CreateBackup(path)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected original path to be gone after backup")
	}
	data, err := os.ReadFile(backupPath)
	if err != nil || string(data) != "content" {
		t.Fatalf("unexpected backup content: %q, err %v", data, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
