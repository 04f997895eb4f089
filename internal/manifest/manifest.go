// Package manifest defines the package description document shared by the
// depot and the installer.
//
// A manifest lists a package's dependencies, the directories it creates and
// every file it ships together with the file's SHA-1 digest and permission
// bits. Documents are strongly typed and validated eagerly when parsed, so a
// malformed manifest fails with a LoadError naming the offending field
// instead of faulting deep inside an install.
//
// Key components:
//   - Identity: the (name, version, platform) triple and its canonical name
//   - Manifest, Dependency, DirEntry, FileEntry: the document model
//   - Mode: numeric permission bits with an octal string JSON form
//   - Generate: builds a manifest by walking a staging tree
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
)

// ErrManifestLoad indicates a manifest was missing, unreadable or malformed.
var ErrManifestLoad = errors.New("manifest load failed")

// LoadError describes why a manifest could not be loaded.
type LoadError struct {
	// Source is the path or name the manifest was loaded from
	Source string

	// Field is the offending field, e.g. "files[2].sha1" (empty for
	// document-level failures)
	Field string

	Err error
}

func (e *LoadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("failed to load manifest %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to load manifest %s: %s: %v", e.Source, e.Field, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports ErrManifestLoad as a match so callers can use errors.Is.
func (e *LoadError) Is(target error) bool {
	return target == ErrManifestLoad
}

// Manifest is the package description document.
type Manifest struct {
	// Build is reserved and never interpreted; it is round-tripped as-is
	Build json.RawMessage `json:"build"`

	// Depends is the ordered list of dependencies
	Depends []Dependency `json:"depends"`

	// Dirs is the set of directories to create, relative to the package root
	Dirs []DirEntry `json:"dirs"`

	// Files is the set of files to materialize, relative to the package root
	Files []FileEntry `json:"files"`
}

// Dependency names another package, either by explicit manifest reference
// or by (package, version, platform).
type Dependency struct {
	Manifest *string `json:"manifest"`
	Package  string  `json:"package,omitempty"`
	Version  string  `json:"version,omitempty"`
	Platform string  `json:"platform,omitempty"`
}

// DirEntry is a directory created by a package.
type DirEntry struct {
	Path string `json:"path"`
}

// FileEntry is a file shipped by a package.
type FileEntry struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Mode Mode   `json:"mode"`
}

// fileEntryJSON detects a missing mode, which a plain Mode cannot.
type fileEntryJSON struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Mode *Mode  `json:"mode"`
}

// UnmarshalJSON decodes a file entry, requiring the mode field.
func (f *FileEntry) UnmarshalJSON(data []byte) error {
	var raw fileEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Mode == nil {
		return fmt.Errorf("file %q: mode is required", raw.Path)
	}
	f.Path = raw.Path
	f.SHA1 = strings.ToLower(raw.SHA1)
	f.Mode = *raw.Mode
	return nil
}

// ManifestName returns the manifest filename the dependency resolves to.
func (d Dependency) ManifestName() string {
	if d.Manifest != nil && *d.Manifest != "" {
		return NormalizeManifestName(*d.Manifest)
	}
	return Identity{Name: d.Package, Version: d.Version, Platform: d.Platform}.ManifestFile()
}

// Identity returns the package identity the dependency resolves to.
func (d Dependency) Identity() (Identity, error) {
	if d.Manifest != nil && *d.Manifest != "" {
		return ParseManifestName(*d.Manifest)
	}
	return NewIdentity(d.Package, d.Version, d.Platform)
}

// New returns an empty manifest with every collection initialized.
func New() *Manifest {
	return &Manifest{
		Build:   json.RawMessage("[]"),
		Depends: []Dependency{},
		Dirs:    []DirEntry{},
		Files:   []FileEntry{},
	}
}

// Parse decodes and validates a manifest document. source only labels
// errors.
func Parse(data []byte, source string) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &LoadError{Source: source, Err: errors.New("document must be a JSON object")}
	}

	var m Manifest
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	m.normalize()
	if err := m.validate(source); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(fs fsops.FS, path string) (*Manifest, []byte, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Source: path, Err: err}
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, nil, err
	}
	return m, data, nil
}

// Marshal encodes the manifest with stable indentation.
func (m *Manifest) Marshal() ([]byte, error) {
	m.normalize()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

func (m *Manifest) normalize() {
	if len(m.Build) == 0 || string(m.Build) == "null" {
		m.Build = json.RawMessage("[]")
	}
	if m.Depends == nil {
		m.Depends = []Dependency{}
	}
	if m.Dirs == nil {
		m.Dirs = []DirEntry{}
	}
	if m.Files == nil {
		m.Files = []FileEntry{}
	}
}

func (m *Manifest) validate(source string) error {
	fail := func(field string, err error) error {
		return &LoadError{Source: source, Field: field, Err: err}
	}

	for i, dep := range m.Depends {
		field := fmt.Sprintf("depends[%d]", i)
		if dep.Manifest != nil && *dep.Manifest != "" {
			if _, err := ParseManifestName(*dep.Manifest); err != nil {
				return fail(field+".manifest", err)
			}
			continue
		}
		if _, err := NewIdentity(dep.Package, dep.Version, dep.Platform); err != nil {
			return fail(field, err)
		}
	}

	for i, dir := range m.Dirs {
		if err := fsops.ValidateRelPath(dir.Path); err != nil {
			return fail(fmt.Sprintf("dirs[%d].path", i), err)
		}
	}

	seen := make(map[string]int, len(m.Files))
	for i, file := range m.Files {
		field := fmt.Sprintf("files[%d]", i)
		if err := fsops.ValidateRelPath(file.Path); err != nil {
			return fail(field+".path", err)
		}
		if !hash.IsDigest(file.SHA1) {
			return fail(field+".sha1", fmt.Errorf("expected %d hex characters, got %q", hash.Size, file.SHA1))
		}
		if prev, ok := seen[file.Path]; ok {
			return fail(field+".path", fmt.Errorf("duplicate of files[%d]", prev))
		}
		seen[file.Path] = i
	}

	return nil
}

// Blobs returns the distinct blob digests referenced by the manifest, in
// first-seen order.
func (m *Manifest) Blobs() []string {
	seen := make(map[string]bool, len(m.Files))
	var out []string
	for _, f := range m.Files {
		if !seen[f.SHA1] {
			seen[f.SHA1] = true
			out = append(out, f.SHA1)
		}
	}
	return out
}
