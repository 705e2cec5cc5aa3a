package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a SQLite integrity check over the index database",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, engine, _, closeDB, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	ok, err := engine.CheckIntegrity(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("integrity check FAILED")
		os.Exit(1)
	}
	fmt.Println("integrity check OK")
	return nil
}
