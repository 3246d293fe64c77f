package filecache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/storage"
	"github.com/wuxler/filecache/pkg/storage/badgerstore"
)

// Config selects the persistent backend and the cache placement.
//
// Backend selection, highest priority first: Null discards everything, Path
// stores on the local filesystem, DataDir stores in the embedded database.
// Exactly the first one set wins.
//
// A non-empty Service makes the cache directory shared: it is derived from
// the service identity under CacheDir and survives the process, so several
// instances of the same service reuse each other's downloads. With an empty
// Service every cache gets a private throwaway directory under TempDir.
type Config struct {
	Service  string `yaml:"service,omitempty"`
	Shard    int    `yaml:"shard,omitempty"`
	CacheDir string `yaml:"cache_dir,omitempty"`
	TempDir  string `yaml:"temp_dir,omitempty"`

	Null    bool   `yaml:"null,omitempty"`
	Path    string `yaml:"path,omitempty"`
	DataDir string `yaml:"data_dir,omitempty"`
}

// LoadConfigFile reads a Config from a YAML file.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errdefs.NewE(errdefs.ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errdefs.NewE(errdefs.ErrConfig, err)
	}
	return cfg, nil
}

// SharedDir returns the shared cache directory the config names, or the
// empty string when the cache is private.
func (cfg Config) SharedDir() string {
	if cfg.Service == "" {
		return ""
	}
	base := cfg.CacheDir
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "fs-cache-"+cfg.Service+"-"+cast.ToString(cfg.Shard))
}

// Open builds the backend the config selects and wraps it in a FileCache.
// Closing the returned cache also closes a backend opened here.
func Open(cfg Config) (*FileCache, error) {
	var (
		backend storage.Backend
		closer  io.Closer
	)
	switch {
	case cfg.Null:
		backend = storage.NewNullBackend()
	case cfg.Path != "":
		b, err := storage.NewFSBackend(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	case cfg.DataDir != "":
		store, err := badgerstore.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		backend = badgerstore.NewBackend(store)
		closer = store
	default:
		return nil, errdefs.Newf(errdefs.ErrConfig, "no backend configured: set null, path or data_dir")
	}

	var opts []Option
	if dir := cfg.SharedDir(); dir != "" {
		opts = append(opts, WithSharedCacheDir(dir))
	} else if cfg.TempDir != "" {
		opts = append(opts, WithTempDir(cfg.TempDir))
	}
	fc, err := New(backend, opts...)
	if err != nil {
		if closer != nil {
			closer.Close() //nolint:errcheck // the setup error takes precedence
		}
		return nil, err
	}
	fc.closer = closer
	return fc, nil
}
