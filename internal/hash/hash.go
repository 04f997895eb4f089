// Package hash provides content hashing for depot blobs and installed files.
//
// Voltron addresses blobs by the SHA-1 hex digest of their bytes. The same
// digest is recorded per file in a package manifest and re-computed when a
// depot deploy or an install verifies content. The package provides a real
// implementation using crypto/sha1 and a fake implementation for testing.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Size is the length of a hex-encoded digest.
const Size = sha1.Size * 2

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)
}

// SHA1Hasher implements Hasher using SHA-1.
type SHA1Hasher struct{}

// NewSHA1Hasher creates a new SHA1Hasher.
func NewSHA1Hasher() *SHA1Hasher {
	return &SHA1Hasher{}
}

// HashFile computes the SHA-1 hash of the file at the given path.
func (h *SHA1Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return HashReader(file)
}

// HashReader computes the SHA-1 hash of everything read from r.
func HashReader(r io.Reader) (string, error) {
	hasher := sha1.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashBytes returns the SHA-1 hex digest of data.
func HashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// IsDigest reports whether s looks like a lowercase hex SHA-1 digest.
func IsDigest(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FakeHasher implements Hasher with deterministic hashes for testing.
type FakeHasher struct {
	hashes map[string]string
	calls  int
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the hash for a specific path (for testing).
func (h *FakeHasher) SetHash(path, hash string) {
	h.hashes[path] = hash
}

// Calls returns how many times HashFile was invoked.
func (h *FakeHasher) Calls() int {
	return h.calls
}

// HashFile returns the predetermined hash for the given path.
func (h *FakeHasher) HashFile(path string) (string, error) {
	h.calls++
	if hash, ok := h.hashes[path]; ok {
		return hash, nil
	}
	// Default hash if not set
	return "fakehash", nil
}
