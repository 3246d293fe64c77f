package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmd"
	"github.com/wuxler/filecache/pkg/cmdhelper"
	"github.com/wuxler/filecache/pkg/commands/internal/options"
	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/util/xio"
	"github.com/wuxler/filecache/pkg/xlog"
)

// NewPutCommand returns a put command with default values.
func NewPutCommand() *PutCommand {
	return &PutCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
	}
}

// PutCommand stores a file and prints its digest.
type PutCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions

	Description string
}

// ToCLI transforms to a *cli.Command.
func (c *PutCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:  "put",
		Usage: "Store files and print their digests",
		UsageText: `filecache put [OPTIONS] FILE...

# Store a local file, use "-" to read from stdin
$ filecache put --description "test input 3" input.txt
`,
		ArgsUsage: "FILE...",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmd.MinimumNArgs(1)),
		Action:    c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *PutCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "description",
			Aliases:     []string{"m"},
			Usage:       "human readable description stored with the file",
			Destination: &c.Description,
		},
	}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *PutCommand) Run(ctx context.Context, cmd *cli.Command) error {
	c.Common.Apply()
	ctx = xlog.WithContext(ctx, "command", "put")
	cache, err := c.Cache.OpenCache()
	if err != nil {
		return err
	}
	defer xio.CloseAndLogError(cache)

	for _, path := range cmd.Args().Slice() {
		var dgst digest.Digest
		if path == "-" {
			dgst, err = cache.PutFileFromReader(ctx, os.Stdin, c.Description)
		} else {
			dgst, err = cache.PutFileFromPath(ctx, path, c.Description)
		}
		if err != nil {
			return err
		}
		cmdhelper.Fprintf(cmd.Writer, "%s  %s", dgst, path)
	}
	return nil
}
