// Package commands implements memoryctl's offline maintenance operations:
// reindexing, integrity checks, and index statistics over a vault's
// database without starting the daemon's watcher or protocol server.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/RamXX/memory-mcp/internal/config"
	"github.com/RamXX/memory-mcp/internal/db"
	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/search"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Offline maintenance for a memory-mcp vault",
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags(), config.Defaults)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

// Execute runs the memoryctl command tree.
func Execute() error {
	return rootCmd.Execute()
}

// openEngine loads configuration from cmd's flags, opens the vault's
// index database, and returns the resolved Options alongside an Engine
// and Repository over it. Callers are responsible for closing the
// returned database via the returned closer.
func openEngine(cmd *cobra.Command) (config.Options, *search.Engine, *note.Repository, func() error, error) {
	opts, err := config.Load(cmd.Flags(), configPath)
	if err != nil {
		return config.Options{}, nil, nil, nil, err
	}
	database, err := db.Open(opts.ResolvedIndexPath(), db.Options{})
	if err != nil {
		return config.Options{}, nil, nil, nil, err
	}
	repo := note.NewRepository(opts.VaultPath)
	return opts, search.New(database), repo, database.Close, nil
}
