package manifest

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/voltron/internal/fsops"
)

// FileExt is the extension of manifest documents in the depot and in an
// install target's package registry.
const FileExt = ".json"

// Identity is the pinned (name, version, platform) triple of a package.
type Identity struct {
	Name     string
	Version  string
	Platform string
}

// NewIdentity builds an Identity and validates it.
func NewIdentity(name, version, platform string) (Identity, error) {
	id := Identity{Name: name, Version: version, Platform: platform}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Canonical returns "{name}-{version}-{platform}", the primary key used for
// registry lookups and blob directories.
func (id Identity) Canonical() string {
	return id.Name + "-" + id.Version + "-" + id.Platform
}

// ManifestFile returns the manifest filename for the package.
func (id Identity) ManifestFile() string {
	return id.Canonical() + FileExt
}

func (id Identity) String() string {
	return id.Canonical()
}

// Validate checks that every component is present and safe to use as a
// single path element.
func (id Identity) Validate() error {
	parts := []struct {
		field string
		value string
	}{
		{"name", id.Name},
		{"version", id.Version},
		{"platform", id.Platform},
	}
	for _, p := range parts {
		if p.value == "" {
			return fmt.Errorf("invalid package identity: %s is required", p.field)
		}
		if err := fsops.ValidateIdentifier(p.value); err != nil {
			return fmt.Errorf("invalid package %s %q: %w", p.field, p.value, err)
		}
	}
	return nil
}

// ParseManifestName recovers an Identity from a canonical name or manifest
// filename. Fields are split from the right, so names may contain dashes
// while version and platform may not; Canonical always reproduces the
// input without its extension.
func ParseManifestName(s string) (Identity, error) {
	base := strings.TrimSuffix(s, FileExt)

	lastDash := strings.LastIndex(base, "-")
	if lastDash <= 0 {
		return Identity{}, fmt.Errorf("invalid manifest name %q: expected name-version-platform", s)
	}
	platform := base[lastDash+1:]
	rest := base[:lastDash]

	versionDash := strings.LastIndex(rest, "-")
	if versionDash <= 0 {
		return Identity{}, fmt.Errorf("invalid manifest name %q: expected name-version-platform", s)
	}

	id := Identity{
		Name:     rest[:versionDash],
		Version:  rest[versionDash+1:],
		Platform: platform,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, fmt.Errorf("invalid manifest name %q: %w", s, err)
	}
	return id, nil
}

// NormalizeManifestName appends the manifest extension when missing.
func NormalizeManifestName(s string) string {
	if strings.HasSuffix(s, FileExt) {
		return s
	}
	return s + FileExt
}
