package main

import (
	"fmt"
	"os"

	"github.com/pixperk/flockq/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flockq: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
