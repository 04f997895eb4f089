package verify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
)

const helloSHA1 = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func writeFile(t *testing.T, path string, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("failed to chmod %s: %v", path, err)
	}
}

func TestVerifier_File(t *testing.T) {
	dir := t.TempDir()
	v := New(fsops.NewRealFS(), hash.NewSHA1Hasher())

	path := filepath.Join(dir, "hello")
	writeFile(t, path, "hello world", 0644)

	tests := []struct {
		name    string
		entry   manifest.FileEntry
		wantErr error
	}{
		{
			name:  "match",
			entry: manifest.FileEntry{Path: "hello", SHA1: helloSHA1, Mode: 0644},
		},
		{
			name:    "checksum mismatch",
			entry:   manifest.FileEntry{Path: "hello", SHA1: "da39a3ee5e6b4b0d3255bfef95601890afd80709", Mode: 0644},
			wantErr: ErrChecksum,
		},
		{
			name:    "permission mismatch",
			entry:   manifest.FileEntry{Path: "hello", SHA1: helloSHA1, Mode: 0755},
			wantErr: ErrPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.File(path, tt.entry)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsMismatch(err) {
				t.Error("IsMismatch should be true")
			}
		})
	}
}

func TestVerifier_ChecksumCheckedBeforePermission(t *testing.T) {
	dir := t.TempDir()
	v := New(fsops.NewRealFS(), hash.NewSHA1Hasher())

	path := filepath.Join(dir, "hello")
	writeFile(t, path, "goodbye", 0600)

	err := v.File(path, manifest.FileEntry{Path: "hello", SHA1: helloSHA1, Mode: 0644})

	var checksumErr *ChecksumError
	if !errors.As(err, &checksumErr) {
		t.Fatalf("expected *ChecksumError, got %v", err)
	}
	if checksumErr.Want != helloSHA1 {
		t.Errorf("Want = %s", checksumErr.Want)
	}
}

func TestVerifier_MissingFile(t *testing.T) {
	v := New(fsops.NewRealFS(), hash.NewSHA1Hasher())

	err := v.File(filepath.Join(t.TempDir(), "nope"), manifest.FileEntry{SHA1: helloSHA1, Mode: 0644})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsMismatch(err) {
		t.Error("a missing file is not a mismatch")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestVerifier_UsesHasher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "anything", 0644)

	hasher := hash.NewFakeHasher()
	hasher.SetHash(path, helloSHA1)
	v := New(fsops.NewRealFS(), hasher)

	if err := v.File(path, manifest.FileEntry{SHA1: helloSHA1, Mode: 0644}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if hasher.Calls() != 1 {
		t.Errorf("expected one hash call, got %d", hasher.Calls())
	}
}
