// Package verify checks files on disk against their manifest entries.
//
// Both a depot deploy (checking a staging tree before its content is stored)
// and an install (checking materialized files) use the same Verifier, so a
// digest or permission mismatch is reported with the same error types
// everywhere.
package verify

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
)

var (
	// ErrChecksum indicates a file's content hash differs from its manifest entry.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrPermission indicates a file's permission bits differ from its manifest entry.
	ErrPermission = errors.New("permission mismatch")
)

// ChecksumError reports a content hash mismatch.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: manifest has %s, file has %s", e.Path, e.Want, e.Got)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// PermissionError reports a permission bits mismatch.
type PermissionError struct {
	Path string
	Want manifest.Mode
	Got  manifest.Mode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission mismatch for %s: manifest has %s, file has %s", e.Path, e.Want, e.Got)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

// IsMismatch reports whether err is a checksum or permission mismatch.
func IsMismatch(err error) bool {
	return errors.Is(err, ErrChecksum) || errors.Is(err, ErrPermission)
}

// Verifier compares files against manifest entries.
type Verifier struct {
	fs     fsops.FS
	hasher hash.Hasher
}

// New creates a Verifier.
func New(fs fsops.FS, hasher hash.Hasher) *Verifier {
	return &Verifier{fs: fs, hasher: hasher}
}

// File checks the content hash and then the permission bits of the file at
// path against entry. The returned error is a *ChecksumError, a
// *PermissionError, or an I/O error.
func (v *Verifier) File(path string, entry manifest.FileEntry) error {
	info, err := v.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	digest, err := v.hasher.HashFile(path)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	if digest != entry.SHA1 {
		return &ChecksumError{Path: path, Want: entry.SHA1, Got: digest}
	}

	if got := manifest.ModeOf(info.Mode()); got != entry.Mode {
		return &PermissionError{Path: path, Want: entry.Mode, Got: got}
	}

	return nil
}
