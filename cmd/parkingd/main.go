package main

import (
	"os"

	"github.com/iliyamo/parking-reservation/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
