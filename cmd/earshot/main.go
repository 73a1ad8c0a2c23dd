package main

import (
	"os"

	"github.com/earshot-dev/earshot/cmd/earshot/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(cli.ExitCode())
}
