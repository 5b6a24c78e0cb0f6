package main

import (
	"fmt"
	"os"

	"github.com/fiacre/fswatch/cmd/fswatch/cli"
	"github.com/fiacre/fswatch/cmd/fswatch/cli/server"
)

var (
	version = "0.1.0-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(server.NewWatchCommand())
	root.AddCommand(server.NewScanCommand())
	root.AddCommand(server.NewSchemaCommand())
	root.AddCommand(server.NewDatabaseCommand())
	root.AddCommand(server.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
