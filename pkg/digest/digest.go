// Package digest computes and validates the content digests that address
// every stored file.
package digest

import (
	"io"
	"os"

	godigest "github.com/opencontainers/go-digest"

	"github.com/wuxler/filecache/pkg/errdefs"
	"github.com/wuxler/filecache/pkg/util/xio"
)

// Digest identifies file content by cryptographic hash. It is an opaque
// algorithm-prefixed string such as "sha256:<64 hex chars>"; two files with
// equal digests are identical and are never stored twice.
type Digest = godigest.Digest

// Tombstone is the reserved digest of content that existed once but has
// been deliberately discarded. It is shorter than any real digest and never
// reaches a storage backend.
const Tombstone = Digest("x")

// Algorithm is the hash algorithm used for all new digests.
var Algorithm = godigest.Canonical

// readChunkSize bounds the buffer used when streaming content through a
// digester.
const readChunkSize = 8 * xio.KiB

// NewDigester returns an empty incremental Digester.
func NewDigester() *Digester {
	return &Digester{digester: Algorithm.Digester()}
}

// Digester computes a digest incrementally. Feed content with Write and
// read the digest of everything fed so far with Digest, which may be called
// any number of times without resetting state.
type Digester struct {
	digester godigest.Digester
}

// Write feeds more content into the digester. It never fails.
func (d *Digester) Write(p []byte) (int, error) {
	return d.digester.Hash().Write(p)
}

// Digest returns the digest of all content fed so far.
func (d *Digester) Digest() Digest {
	return d.digester.Digest()
}

// FromReader streams r through a fresh digester in fixed-size chunks and
// returns the digest of the whole content.
func FromReader(r io.Reader) (Digest, error) {
	d := NewDigester()
	if _, err := xio.Copy(d, r, readChunkSize); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// FromBytes returns the digest of the given buffer.
func FromBytes(content []byte) Digest {
	return Algorithm.FromBytes(content)
}

// FromPath returns the digest of the file at path. Open and read errors are
// propagated, not swallowed.
func FromPath(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer xio.CloseAndSkipError(f)
	return FromReader(f)
}

// IsTombstone reports whether dgst is the tombstone sentinel.
func IsTombstone(dgst Digest) bool {
	return dgst == Tombstone
}

// Validate checks that dgst is a well-formed digest with a supported
// algorithm. The tombstone is not a valid digest.
func Validate(dgst Digest) error {
	if err := dgst.Validate(); err != nil {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "invalid digest %q: %v", string(dgst), err)
	}
	return nil
}

// Parse converts a raw string into a validated Digest.
func Parse(s string) (Digest, error) {
	dgst := Digest(s)
	if err := Validate(dgst); err != nil {
		return "", err
	}
	return dgst, nil
}
