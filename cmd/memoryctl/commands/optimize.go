package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Vacuum the database and optimize the FTS index",
	RunE:  runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	_, engine, _, closeDB, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := engine.Optimize(context.Background()); err != nil {
		return err
	}
	fmt.Println("optimize complete")
	return nil
}
