package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmd"
	"github.com/wuxler/filecache/pkg/commands/internal/options"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// NewListCommand returns a list command with default values.
func NewListCommand() *ListCommand {
	return &ListCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
	}
}

// ListCommand lists the files the backend holds.
type ListCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions

	Quiet bool
}

// ToCLI transforms to a *cli.Command.
func (c *ListCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the stored files",
		Flags:   c.Flags(),
		Before:  cli.BeforeFunc(cmd.NoArgs()),
		Action:  c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *ListCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "only print digests",
			Destination: &c.Quiet,
		},
	}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *ListCommand) Run(ctx context.Context, cmd *cli.Command) error {
	c.Common.Apply()
	cache, err := c.Cache.OpenCache()
	if err != nil {
		return err
	}
	defer xio.CloseAndLogError(cache)

	infos, err := cache.List(ctx)
	if err != nil {
		return err
	}
	if c.Quiet {
		for _, info := range infos {
			fmt.Fprintln(cmd.Writer, info.Digest)
		}
		return nil
	}
	tw := tabwriter.NewWriter(cmd.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIGEST\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", info.Digest, info.Description)
	}
	return tw.Flush()
}
