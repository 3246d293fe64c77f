// Package main is the entry of the application.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmdhelper"
	"github.com/wuxler/filecache/pkg/commands"
)

func main() {
	app := cli.Command{
		Name:                  "filecache",
		Usage:                 "filecache stores digest-addressed files with a local disk cache",
		Suggest:               true,
		EnableShellCompletion: true,
		HideVersion:           true,
		HideHelpCommand:       true,
		Commands: []*cli.Command{
			commands.NewVersionCommand().ToCLI(),
			commands.NewPutCommand().ToCLI(),
			commands.NewGetCommand().ToCLI(),
			commands.NewStatCommand().ToCLI(),
			commands.NewListCommand().ToCLI(),
			commands.NewRemoveCommand().ToCLI(),
			commands.NewCheckCommand().ToCLI(),
		},
		ExitErrHandler: func(ctx context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(1)
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}
