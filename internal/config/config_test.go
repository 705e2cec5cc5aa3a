package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/RamXX/memory-mcp/internal/errs"
)

func TestLoadAppliesBuiltinDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)
	if err := fs.Set("vault-path", "/tmp/vault"); err != nil {
		t.Fatalf("fs.Set: %v", err)
	}

	opts, err := Load(fs, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Policy.TimeoutMs != Defaults.Policy.TimeoutMs {
		t.Fatalf("expected default timeout, got %d", opts.Policy.TimeoutMs)
	}
	if opts.Mode != "prod" {
		t.Fatalf("expected default mode prod, got %s", opts.Mode)
	}
}

func TestLoadMissingVaultPathIsInvalidRequest(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)

	_, err := Load(fs, "")
	if !errs.Is(err, errs.InvalidRequest) {
		t.Fatalf("expected InvalidRequest for a missing vault_path, got %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "vault_path: /from/file\npolicy:\n  timeout_ms: 9000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)

	opts, err := Load(fs, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.VaultPath != "/from/file" {
		t.Fatalf("expected vault_path from file, got %s", opts.VaultPath)
	}
	if opts.Policy.TimeoutMs != 9000 {
		t.Fatalf("expected overridden timeout_ms, got %d", opts.Policy.TimeoutMs)
	}
}

func TestLoadFlagOverridesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("vault_path: /from/file\nmode: dev\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("MEMORY_VAULT_PATH", "/from/env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)
	if err := fs.Set("vault-path", "/from/flag"); err != nil {
		t.Fatalf("fs.Set: %v", err)
	}

	opts, err := Load(fs, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.VaultPath != "/from/flag" {
		t.Fatalf("expected the flag to win over env and file, got %s", opts.VaultPath)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("vault_path: /from/file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("MEMORY_VAULT_PATH", "/from/env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)

	opts, err := Load(fs, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.VaultPath != "/from/env" {
		t.Fatalf("expected env to win over file, got %s", opts.VaultPath)
	}
}

func TestLoadUnknownModeIsInvalidRequest(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, Defaults)
	if err := fs.Set("vault-path", "/tmp/vault"); err != nil {
		t.Fatalf("fs.Set: %v", err)
	}
	if err := fs.Set("mode", "bogus"); err != nil {
		t.Fatalf("fs.Set: %v", err)
	}

	_, err := Load(fs, "")
	if !errs.Is(err, errs.InvalidRequest) {
		t.Fatalf("expected InvalidRequest for an unknown mode, got %v", err)
	}
}

func TestResolvedIndexPathDefaultsUnderVaultRoot(t *testing.T) {
	o := Defaults
	o.VaultPath = "/vault"
	got := o.ResolvedIndexPath()
	want := filepath.Join("/vault", ".memory-index.db")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestResolvedIndexPathHonorsExplicitPath(t *testing.T) {
	o := Defaults
	o.VaultPath = "/vault"
	o.IndexPath = "/elsewhere/index.db"
	if got := o.ResolvedIndexPath(); got != "/elsewhere/index.db" {
		t.Fatalf("expected explicit index path honored, got %s", got)
	}
}
