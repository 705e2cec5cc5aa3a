package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RamXX/memory-mcp/internal/backlink"
	"github.com/RamXX/memory-mcp/internal/obslog"
	"github.com/RamXX/memory-mcp/internal/search"
	"github.com/RamXX/memory-mcp/internal/vaultfs"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index and backlinks from every note on disk",
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	opts, engine, repo, closeDB, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	log := obslog.New(obslog.Config{Level: obslog.Level(opts.LogLevel)})

	paths, err := vaultfs.ListMarkdown(repo.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return err
	}

	inputs := make([]search.NoteInput, 0, len(paths))
	for _, p := range paths {
		n, err := repo.LoadLenient(p)
		if err != nil {
			log.Warn("skipping unreadable note", "path", p, "error", err.Error())
			continue
		}
		inputs = append(inputs, search.NoteInputFromHeader(n))
	}

	report := engine.BatchIndex(context.Background(), inputs)
	fmt.Printf("indexed %d notes, %d failed, %dms\n", report.Successful, report.Failed, report.TotalMs)
	for _, f := range report.Failures {
		fmt.Printf("  failed: %s: %s\n", f.UID, f.Error)
	}

	syncer := backlink.New(backlink.Config{
		Repo:        repo,
		BatchSize:   opts.Backlink.BatchSize,
		Concurrency: opts.Backlink.Concurrency,
		Logger:      log,
	})
	if err := syncer.BulkRebuild(context.Background()); err != nil {
		return err
	}
	fmt.Println("backlinks rebuilt")
	return nil
}
