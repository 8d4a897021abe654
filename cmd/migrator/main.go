package main

import (
	"os"

	"github.com/mnlt/filemigrator/internal/cli"
	"github.com/mnlt/filemigrator/internal/logger"
)

func main() {
	defer logger.Sync()

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
