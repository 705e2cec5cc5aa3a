// Command memoryd is the memory-mcp server: it watches a vault, keeps its
// search index and backlinks current, and serves the agent tool protocol
// over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RamXX/memory-mcp/internal/association"
	"github.com/RamXX/memory-mcp/internal/backlink"
	"github.com/RamXX/memory-mcp/internal/config"
	"github.com/RamXX/memory-mcp/internal/db"
	"github.com/RamXX/memory-mcp/internal/mcpadapter"
	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/obslog"
	"github.com/RamXX/memory-mcp/internal/para"
	"github.com/RamXX/memory-mcp/internal/search"
	"github.com/RamXX/memory-mcp/internal/tools"
	"github.com/RamXX/memory-mcp/internal/watcher"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "memoryd",
	Short: "Run the memory-mcp server over stdio",
	RunE:  runDaemon,
}

func init() {
	config.RegisterFlags(rootCmd.Flags(), config.Defaults)
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	opts, err := config.Load(cmd.Flags(), configPath)
	if err != nil {
		return err
	}

	log := obslog.New(obslog.Config{
		Level:      obslog.Level(opts.LogLevel),
		JSONOutput: opts.Mode == "prod",
		Output:     os.Stderr,
	})

	database, err := db.Open(opts.ResolvedIndexPath(), db.Options{})
	if err != nil {
		return err
	}
	defer database.Close()

	repo := note.NewRepository(opts.VaultPath)
	engine := search.New(database)

	dirNames := make(map[note.Category]string, len(opts.PARA.CategoryDirNames))
	for k, v := range opts.PARA.CategoryDirNames {
		dirNames[note.Category(k)] = v
	}
	organizer := para.New(para.Config{
		VaultRoot:        opts.VaultPath,
		Repo:             repo,
		ArchiveThreshold: time.Duration(opts.PARA.ArchiveThresholdDays) * 24 * time.Hour,
		AutoMove:         opts.PARA.AutoMove,
		CategoryDirNames: dirNames,
	})

	syncer := backlink.New(backlink.Config{
		Repo:          repo,
		BatchSize:     opts.Backlink.BatchSize,
		Concurrency:   opts.Backlink.Concurrency,
		DebounceDelay: time.Duration(opts.Backlink.DebounceDelayMs) * time.Millisecond,
		Logger:        log,
	})

	w, err := watcher.New(watcher.Config{
		Root:          opts.VaultPath,
		DebounceDelay: time.Duration(opts.Watcher.DebounceDelayMs) * time.Millisecond,
		Repo:          repo,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	sub := &vaultSubscriber{engine: engine, repo: repo, backlinks: syncer, log: log.With("indexer")}
	w.Subscribe(syncer)
	w.Subscribe(sub)
	organizer.Subscribe(sub)

	sessions := association.New(engine, opts.SessionCap)

	registry := tools.New(tools.Policy{TimeoutMs: opts.Policy.TimeoutMs, MaxRetries: opts.Policy.MaxRetries}, log)
	if err := tools.RegisterBuiltins(registry, tools.Dependencies{
		VaultRoot: opts.VaultPath,
		Notes:     repo,
		Engine:    engine,
		Backlinks: syncer,
		Sessions:  sessions,
	}); err != nil {
		return err
	}

	server := mcpadapter.New(registry, "memory-mcp", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("memoryd starting", "vault", opts.VaultPath, "index", opts.ResolvedIndexPath(), "mode", opts.Mode)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(gctx) })
	group.Go(func() error {
		syncer.RunDebouncer(gctx)
		return nil
	})
	if opts.PARA.AutoMove {
		group.Go(func() error { return runArchiveSweep(gctx, organizer, log) })
	}
	group.Go(func() error { return server.Run(gctx) })

	err = group.Wait()
	w.Stop()
	if err != nil && gctx.Err() == nil {
		return err
	}
	log.Info("memoryd shutting down")
	return nil
}

// runArchiveSweep periodically reconciles stale notes into Archives until
// ctx is cancelled.
func runArchiveSweep(ctx context.Context, organizer *para.Organizer, log obslog.Logger) error {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if moved, err := organizer.ArchiveOld(); err != nil {
				log.Warn("archive sweep failed", "error", err.Error())
			} else if len(moved) > 0 {
				log.Info("archive sweep moved notes", "count", len(moved))
			}
		}
	}
}
