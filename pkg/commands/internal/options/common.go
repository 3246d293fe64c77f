// Package options defines flag groups shared between the cli commands.
package options

import (
	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/xlog"
)

// NewCommonOptions returns a *CommonOptions with default values.
func NewCommonOptions() *CommonOptions {
	return &CommonOptions{}
}

// CommonOptions are options that are common to all commands.
type CommonOptions struct {
	Debug   bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

// Flags returns the []cli.Flag related to current options.
func (o *CommonOptions) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Aliases:     []string{"d"},
			Sources:     cli.EnvVars("FILECACHE_DEBUG"),
			Usage:       "enable debug mode",
			Destination: &o.Debug,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Sources:     cli.EnvVars("FILECACHE_LOG_FILE"),
			Usage:       "also write logs to this file, rotated by size",
			Destination: &o.LogFile,
		},
	}
}

// Apply rebuilds the default logger from the options.
func (o *CommonOptions) Apply() {
	cfg := xlog.NewConfig()
	if o.Debug {
		cfg.Level = xlog.LevelDebug
	}
	cfg.Path = o.LogFile
	xlog.SetDefault(xlog.New(cfg))
}
