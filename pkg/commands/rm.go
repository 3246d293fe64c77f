package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/cmd"
	"github.com/wuxler/filecache/pkg/cmdhelper"
	"github.com/wuxler/filecache/pkg/commands/internal/options"
	"github.com/wuxler/filecache/pkg/digest"
	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// NewRemoveCommand returns a remove command with default values.
func NewRemoveCommand() *RemoveCommand {
	return &RemoveCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
	}
}

// RemoveCommand deletes a digest from the backend and the local cache.
type RemoveCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions

	Force bool
}

// ToCLI transforms to a *cli.Command.
func (c *RemoveCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove", "delete"},
		Usage:     "Delete a stored file",
		ArgsUsage: "DIGEST",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(cmd.ExactArgs(1)),
		Action:    c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *RemoveCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "do not prompt for confirmation",
			Destination: &c.Force,
		},
	}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *RemoveCommand) Run(ctx context.Context, cmd *cli.Command) error {
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
		if errdefs.IsErrNotFound(err) {
			cmdhelper.Fprintf(cmd.Writer, "Skip, %s is not stored", dgst)
			return nil
		}
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, `Found %s
  - Size : %d
`, dgst, size)

	confirmed := true
	if !c.Force {
		prompt := &promptui.Prompt{
			Label:     "Are you sure to delete the file",
			Default:   "N",
			IsConfirm: true,
		}
		userInput, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				return nil
			}
			return err
		}
		confirmed = strings.EqualFold(userInput, "y")
	}
	if !confirmed {
		return nil
	}

	if err := cache.Delete(ctx, dgst); err != nil {
		return err
	}
	cmdhelper.Fprintf(cmd.Writer, "Deleted %s", dgst)
	return nil
}
