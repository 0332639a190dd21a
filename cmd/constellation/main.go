package main

import (
	"os"

	"github.com/quietfire/constellation/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
