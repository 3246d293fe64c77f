package xos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Temper manages one temporary directory: a staging area created lazily
// under a fixed root, cleaned up as a whole.
type Temper interface {
	fmt.Stringer

	// Path returns the temper directory, creating it on first use with the
	// pattern's last "*" replaced by a random string.
	Path() (string, error)

	// CreateTemp creates a new temporary file inside the temper directory.
	//
	// NOTE: The pattern should not contain the path separator like "/".
	// Otherwise, it will be replaced with "_".
	CreateTemp(pattern string) (*os.File, error)

	// Cleanup removes the temper directory and everything under it.
	Cleanup() error
}

// NewTemper creates a new temper rooted at root with the given directory
// name pattern. If root is empty, the system temporary directory is used.
//
// NOTE: The pattern should not contain the path separator like "/".
// Otherwise, it will be replaced with "_".
func NewTemper(root string, pattern string) Temper {
	if root == "" {
		root = os.TempDir()
	}
	return &temper{root: root, pattern: sanitizedPattern(pattern)}
}

type temper struct {
	root    string
	pattern string

	location string
}

// String returns the path with the raw pattern joined.
func (t *temper) String() string {
	return filepath.Join(t.root, t.pattern)
}

// Path returns the temper directory, lazily creating it.
func (t *temper) Path() (string, error) {
	if t.location != "" {
		return t.location, nil
	}
	if err := os.MkdirAll(t.root, 0o750); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(t.root, t.pattern)
	if err != nil {
		return "", err
	}
	t.location = dir
	return t.location, nil
}

// CreateTemp creates a new temporary file in the temper path.
func (t *temper) CreateTemp(pattern string) (*os.File, error) {
	pattern = sanitizedPattern(pattern)
	dir, err := t.Path()
	if err != nil {
		return nil, err
	}
	return os.CreateTemp(dir, pattern)
}

// Cleanup removes the temper directory and everything under it.
func (t *temper) Cleanup() error {
	if t.location == "" {
		return nil
	}
	return os.RemoveAll(t.location)
}

// sanitizedPattern replaces all path separators with "_".
func sanitizedPattern(pattern string) string {
	return strings.ReplaceAll(pattern, string(os.PathSeparator), "_")
}
