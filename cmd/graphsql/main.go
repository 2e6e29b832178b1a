// Command graphsql compiles graph expressions into query plans and SQL,
// manages stored graph keys and serves both over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/bitsmind/graphsql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
