package options

import (
	"github.com/urfave/cli/v3"

	"github.com/wuxler/filecache/pkg/filecache"
)

// NewCacheOptions returns a *CacheOptions with default values.
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{}
}

// CacheOptions select the backend and the cache placement for a command.
// Flags override what the optional config file sets.
type CacheOptions struct {
	ConfigFile string `json:"config,omitempty" yaml:"config,omitempty"`
	Null       bool   `json:"null,omitempty" yaml:"null,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	DataDir    string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	CacheDir   string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	Service    string `json:"service,omitempty" yaml:"service,omitempty"`
	Shard      int    `json:"shard,omitempty" yaml:"shard,omitempty"`
}

// Flags returns the []cli.Flag related to current options.
func (o *CacheOptions) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Sources:     cli.EnvVars("FILECACHE_CONFIG"),
			Usage:       "path to a YAML config file",
			Destination: &o.ConfigFile,
		},
		&cli.BoolFlag{
			Name:        "null",
			Usage:       "use the backend that retains nothing",
			Destination: &o.Null,
		},
		&cli.StringFlag{
			Name:        "path",
			Sources:     cli.EnvVars("FILECACHE_PATH"),
			Usage:       "store files under this filesystem directory",
			Destination: &o.Path,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Sources:     cli.EnvVars("FILECACHE_DATA_DIR"),
			Usage:       "store files in the embedded database at this directory",
			Destination: &o.DataDir,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Sources:     cli.EnvVars("FILECACHE_CACHE_DIR"),
			Usage:       "base directory for shared caches",
			Destination: &o.CacheDir,
		},
		&cli.StringFlag{
			Name:        "service",
			Usage:       "service name to share the cache directory with",
			Destination: &o.Service,
		},
		&cli.IntFlag{
			Name:        "shard",
			Usage:       "service shard for the shared cache directory",
			Destination: &o.Shard,
		},
	}
}

// Config merges the config file, when given, with the flag values.
func (o *CacheOptions) Config() (filecache.Config, error) {
	var cfg filecache.Config
	if o.ConfigFile != "" {
		loaded, err := filecache.LoadConfigFile(o.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if o.Null {
		cfg.Null = true
	}
	if o.Path != "" {
		cfg.Path = o.Path
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
	}
	if o.Service != "" {
		cfg.Service = o.Service
		cfg.Shard = o.Shard
	}
	return cfg, nil
}

// OpenCache opens the FileCache the options describe.
func (o *CacheOptions) OpenCache() (*filecache.FileCache, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	return filecache.Open(cfg)
}
