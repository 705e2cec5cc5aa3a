package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print note, link, and index size statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	_, engine, _, closeDB, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	s, err := engine.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("notes:        %d\n", s.DB.NoteCount)
	fmt.Printf("links:        %d\n", s.DB.LinkCount)
	fmt.Printf("db size:      %d bytes\n", s.DB.FileSizeB)
	fmt.Printf("graph edges:  %d\n", s.Graph.TotalEdges)
	fmt.Printf("source nodes: %d\n", s.Graph.TotalSourceNodes)
	return nil
}
