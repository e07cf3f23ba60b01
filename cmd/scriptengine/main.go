// Command scriptengine serves sandboxed script requests on stdin.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scriptengine/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scriptengine: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
