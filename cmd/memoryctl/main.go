// Command memoryctl performs offline maintenance on a memory-mcp vault's
// index: reindexing, integrity checks, optimization, and stats, without
// starting the daemon's watcher or protocol server.
package main

import (
	"fmt"
	"os"

	"github.com/RamXX/memory-mcp/cmd/memoryctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
