// Package hasher computes streaming content digests for integrity checks.
package hasher

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"

	"github.com/IvanShishkin/tamperhound/pkg/models"
	"github.com/zeebo/blake3"
)

// Algorithm identifiers
const (
	SHA256 = "sha256"
	SHA512 = "sha512"
	BLAKE3 = "blake3"
)

// Default is the algorithm used when none is specified
const Default = SHA256

const bufferSize = 32 * 1024

// ErrUnknownAlgorithm is returned for unsupported algorithm identifiers
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ReadError is returned when a stream cannot be fully consumed
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("reading stream: %v", e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type algorithm struct {
	size int
	new  func() hash.Hash
}

var registry = map[string]algorithm{
	SHA256: {size: sha256.Size, new: sha256.New},
	SHA512: {size: sha512.Size, new: sha512.New},
	BLAKE3: {size: blake3.New().Size(), new: func() hash.Hash { return blake3.New() }},
}

// New returns a fresh hash for the named algorithm
func New(name string) (hash.Hash, error) {
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a.new(), nil
}

// Size returns the fixed digest length of an algorithm in bytes
func Size(name string) (int, bool) {
	a, ok := registry[name]
	return a.size, ok
}

// Supported returns the supported algorithm identifiers in sorted order
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidDigest reports whether d has the length produced by algorithm name
func ValidDigest(name string, d models.Digest) bool {
	size, ok := Size(name)
	return ok && len(d) == size
}

// Digest consumes r incrementally and returns its digest. A read failure
// yields a *ReadError and no digest.
func Digest(r io.Reader, name string) (models.Digest, error) {
	h, err := New(name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return nil, &ReadError{Err: err}
	}
	return models.Digest(h.Sum(nil)), nil
}

// DigestFile streams the file at path through the named algorithm. Open
// errors are returned as-is so callers can test for fs.ErrNotExist.
func DigestFile(path, name string) (models.Digest, error) {
	if _, ok := registry[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d, err := Digest(file, name)
	var readErr *ReadError
	if errors.As(err, &readErr) {
		readErr.Path = path
	}
	return d, err
}
