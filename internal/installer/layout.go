package installer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/voltron/internal/manifest"
)

// Layout decides where a package's files and its registry marker live
// under an install root.
type Layout interface {
	// Name is the configuration name of the layout.
	Name() string

	// PackageDir returns the directory the package's relative paths are
	// resolved against.
	PackageDir(root string, id manifest.Identity) string

	// MarkerPath returns where the installed manifest is recorded.
	MarkerPath(root string, id manifest.Identity) string

	// Shared reports whether PackageDir is shared by every package, in which
	// case it is never removed and a failed install only removes the paths
	// it created itself.
	Shared() bool
}

// Layout names.
const (
	LayoutPerPackage = "per-package"
	LayoutFlat       = "flat"
)

// PerPackageLayout installs each package into <root>/<canonical> and keeps
// markers in <root>/.voltron/packages.
type PerPackageLayout struct{}

func (PerPackageLayout) Name() string { return LayoutPerPackage }

func (PerPackageLayout) PackageDir(root string, id manifest.Identity) string {
	return filepath.Join(root, id.Canonical())
}

func (PerPackageLayout) MarkerPath(root string, id manifest.Identity) string {
	return filepath.Join(root, ".voltron", "packages", id.ManifestFile())
}

func (PerPackageLayout) Shared() bool { return false }

// FlatLayout installs every package directly into <root> and keeps markers
// in <root>/etc/packages.
type FlatLayout struct{}

func (FlatLayout) Name() string { return LayoutFlat }

func (FlatLayout) PackageDir(root string, _ manifest.Identity) string {
	return root
}

func (FlatLayout) MarkerPath(root string, id manifest.Identity) string {
	return filepath.Join(root, "etc", "packages", id.ManifestFile())
}

func (FlatLayout) Shared() bool { return true }

// ParseLayout returns the layout with the given name. The empty string
// selects PerPackageLayout.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutPerPackage:
		return PerPackageLayout{}, nil
	case LayoutFlat:
		return FlatLayout{}, nil
	default:
		return nil, fmt.Errorf("invalid layout %q: must be %s or %s", name, LayoutPerPackage, LayoutFlat)
	}
}
