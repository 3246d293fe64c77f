package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmd"
	"github.com/wuxler/filecache/pkg/cmdhelper"
	"github.com/wuxler/filecache/pkg/commands/internal/options"
	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// NewStatCommand returns a stat command with default values.
func NewStatCommand() *StatCommand {
	return &StatCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
	}
}

// StatCommand shows the metadata stored with a digest.
type StatCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions
}

// ToCLI transforms to a *cli.Command.
func (c *StatCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "Show size and description of a digest",
		ArgsUsage: "DIGEST",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmd.ExactArgs(1)),
		Action:    c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *StatCommand) Flags() []cli.Flag {
	flags := []cli.Flag{}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *StatCommand) Run(ctx context.Context, cmd *cli.Command) error {
	c.Common.Apply()
	dgst, err := digest.Parse(cmd.Args().First())
	if err != nil {
		return err
	}
	cache, err := c.Cache.OpenCache()
	if err != nil {
		return err
	}
	defer xio.CloseAndLogError(cache)

	size, err := cache.GetSize(ctx, dgst)
	if err != nil {
		return err
	}
	description, err := cache.Describe(ctx, dgst)
	if err != nil {
		return err
	}
	content, err := cmdhelper.PrettifyJSON(map[string]any{
		"digest":      dgst,
		"size":        size,
		"description": description,
	})
	if err != nil {
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, "%s", string(content))
	return nil
}
