package main

import (
	"os"

	"github.com/thermaquote/thermaquote/cmd/thermaquote/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
