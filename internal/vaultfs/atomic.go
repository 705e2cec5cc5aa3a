// Package vaultfs implements atomic-write Markdown I/O: temp-write plus
// rename, recursive enumeration, and pre-destructive backups, all scoped to
// a vault directory tree.
package vaultfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RamXX/memory-mcp/internal/errs"
)

// AtomicWrite writes data to path by first writing to a temp file in the
// same directory, fsyncing it, then renaming it over path. This never
// leaves a partially written file at path: either the rename succeeds and
// path now holds exactly data, or it fails and path's prior content (if any)
// is untouched. When createDirs is true, parent directories are created
// first.
func AtomicWrite(path string, data []byte, createDirs bool) error {
	const op = "vaultfs.AtomicWrite"

	dir := filepath.Dir(path)
	if createDirs {
		if err := EnsureDir(dir); err != nil {
			return errs.Wrap(errs.WriteError, op, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errs.Wrap(errs.WriteError, op, err)
	}
	tmpPath := tmp.Name()
	// If anything below fails before the rename, remove the stray temp file
	// rather than leaving debris in the vault.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.WriteError, op, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Wrap(errs.WriteError, op, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.WriteError, op, err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		os.Chmod(tmpPath, info.Mode())
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(errs.WriteError, op, err)
	}
	succeeded = true
	return nil
}

// SafeRead returns the contents of path, failing NotFound when it is absent.
func SafeRead(path string) ([]byte, error) {
	const op = "vaultfs.SafeRead"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, op, err)
		}
		return nil, errs.Wrap(errs.WriteError, op, err)
	}
	return data, nil
}

// EnsureDir idempotently creates path and any missing parents.
func EnsureDir(path string) error {
	const op = "vaultfs.EnsureDir"
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errs.Wrap(errs.WriteError, op, err)
	}
	return nil
}

// ListOptions controls ListMarkdown's traversal.
type ListOptions struct {
	// Recursive descends into subdirectories. When false, only root's
	// direct children are listed.
	Recursive bool
	// Pattern is an optional filepath.Match glob applied to the file's
	// base name, in addition to the implicit "*.md" filter.
	Pattern string
}

// ListMarkdown enumerates Markdown files under root. Dotfiles, ".git",
// "node_modules", and "*.tmp" files are always skipped; symlinks are not
// followed, which also prevents symlink cycles.
func ListMarkdown(root string, opts ListOptions) ([]string, error) {
	const op = "vaultfs.ListMarkdown"
	var out []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if shouldSkipDir(name) {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}
		if !strings.HasSuffix(name, ".md") {
			return nil
		}
		if opts.Pattern != "" {
			if ok, _ := filepath.Match(opts.Pattern, name); !ok {
				return nil
			}
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, op, err)
	}
	return out, nil
}

func shouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", ".git", ".trash":
		return true
	}
	return false
}

// CreateBackup renames path to path.bak.<unix-nano-timestamp> before a
// destructive operation, returning the backup path.
func CreateBackup(path string) (string, error) {
	const op = "vaultfs.CreateBackup"

	backupPath := fmt.Sprintf("%s.bak.%d", path, time.Now().UnixNano())
	if err := os.Rename(path, backupPath); err != nil {
		if os.IsNotExist(err) {
			return "", errs.Wrap(errs.NotFound, op, err)
		}
		return "", errs.Wrap(errs.WriteError, op, err)
	}
	return backupPath, nil
}
