package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmd"
	"github.com/wuxler/filecache/pkg/commands/internal/options"
	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// NewGetCommand returns a get command with default values.
func NewGetCommand() *GetCommand {
	return &GetCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
		Output: "-",
	}
}

// GetCommand fetches the content of a digest.
type GetCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions

	Output string
}

// ToCLI transforms to a *cli.Command.
func (c *GetCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Fetch the content of a digest",
		UsageText: `filecache get [OPTIONS] DIGEST

# Write the content to a file instead of stdout
$ filecache get -o out.txt sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
`,
		ArgsUsage: "DIGEST",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmd.ExactArgs(1)),
		Action:    c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *GetCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       `output file path, use "-" for stdout`,
			Value:       c.Output,
			Destination: &c.Output,
		},
	}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *GetCommand) Run(ctx context.Context, cmd *cli.Command) error {
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

	if c.Output == "-" {
		return cache.GetFileToWriter(ctx, dgst, cmd.Writer)
	}
	return cache.GetFileToPath(ctx, dgst, c.Output)
}
