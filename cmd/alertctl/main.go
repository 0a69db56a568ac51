package main

import (
	"os"

	"github.com/hamed0406/alertdebounce/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
