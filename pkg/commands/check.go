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
	"github.com/wuxler/filecache/pkg/util/xio"
	"github.com/wuxler/filecache/pkg/xlog"
)

// NewCheckCommand returns a check command with default values.
func NewCheckCommand() *CheckCommand {
	return &CheckCommand{
		Common: options.NewCommonOptions(),
		Cache:  options.NewCacheOptions(),
	}
}

// CheckCommand verifies that every stored file still matches its digest.
type CheckCommand struct {
	Common *options.CommonOptions
	Cache  *options.CacheOptions

	Delete bool
	Force  bool
}

// ToCLI transforms to a *cli.Command.
func (c *CheckCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify the integrity of every stored file",
		UsageText: `filecache check [OPTIONS]

# Verify and delete every corrupted file
$ filecache check --delete --force --data-dir /var/lib/filecache
`,
		Flags:  c.Flags(),
		Before: cli.BeforeFunc(cmd.NoArgs()),
		Action: c.Run,
	}
}

// Flags defines the flags related to the current command.
func (c *CheckCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "delete",
			Usage:       "delete corrupted files as they are found",
			Destination: &c.Delete,
		},
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "do not prompt for confirmation before deleting",
			Destination: &c.Force,
		},
	}
	flags = append(flags, c.Common.Flags()...)
	flags = append(flags, c.Cache.Flags()...)
	return flags
}

// Run is the main function for the current command.
func (c *CheckCommand) Run(ctx context.Context, cmd *cli.Command) error {
	c.Common.Apply()
	ctx = xlog.WithContext(ctx, "command", "check")
	if c.Delete && !c.Force {
		prompt := &promptui.Prompt{
			Label:     "Corrupted files will be deleted permanently, continue",
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
		if !strings.EqualFold(userInput, "y") {
			return nil
		}
	}

	cache, err := c.Cache.OpenCache()
	if err != nil {
		return err
	}
	defer xio.CloseAndLogError(cache)

	clean, err := cache.CheckBackendIntegrity(ctx, c.Delete)
	if err != nil {
		return err
	}
	if !clean {
		if c.Delete {
			cmdhelper.Fprintf(cmd.Writer, "Found and deleted corrupted files")
			return nil
		}
		return errors.New("found corrupted files")
	}
	cmdhelper.Fprintf(cmd.Writer, "All stored files are intact")
	return nil
}
