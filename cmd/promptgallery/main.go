package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/mwantia/promptgallery/cmd/promptgallery/cli"
	"github.com/mwantia/promptgallery/cmd/promptgallery/cli/client"
	"github.com/mwantia/promptgallery/cmd/promptgallery/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewServeCommand(info.String()))
	root.AddCommand(server.NewConfigCommand())
	root.AddCommand(server.NewDatabaseCommand())

	root.AddCommand(client.NewPromptCommand())
	root.AddCommand(client.NewCategoryCommand())
	root.AddCommand(client.NewStatsCommand())

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(info.String()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
