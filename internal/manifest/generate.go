package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
)

// Generate walks stagingDir and describes every directory and regular file
// in it. Entries appear in lexical walk order; build and depends are left
// empty for the packager to fill in.
func Generate(stagingDir string, hasher hash.Hasher) (*Manifest, error) {
	info, err := os.Stat(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat staging directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging path %s is not a directory", stagingDir)
	}

	m := New()
	err = filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			m.Dirs = append(m.Dirs, DirEntry{Path: rel})
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("unsupported file type at %s: only regular files and directories can be packaged", rel)
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		digest, err := hasher.HashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", rel, err)
		}

		m.Files = append(m.Files, FileEntry{
			Path: rel,
			SHA1: digest,
			Mode: ModeOf(fi.Mode()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// WriteFile writes m to <dir>/<canonical>.json and returns the path.
func WriteFile(fsys fsops.FS, m *Manifest, dir string, id Identity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	data, err := m.Marshal()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, id.ManifestFile())
	if err := fsys.AtomicWrite(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}
