package engine

import (
	"time"

	"github.com/danieljhkim/voltron/internal/manifest"
)

// GenerateManifestResult represents the result of manifest generation.
type GenerateManifestResult struct {
	// Path is where the manifest was written
	Path string `json:"path"`

	Identity string `json:"identity"`
	Dirs     int    `json:"dirs"`
	Files    int    `json:"files"`
}

// DeployResult represents the result of publishing a package.
type DeployResult struct {
	Identity string `json:"identity"`
	Depot    string `json:"depot"`

	// Updated is true for update requests
	Updated bool `json:"updated"`

	Files    int           `json:"files"`
	Duration time.Duration `json:"duration"`
}

// DeleteResult represents the result of removing a package.
type DeleteResult struct {
	Identity string `json:"identity"`
	Depot    string `json:"depot"`

	// Existed reports whether the package was registered before the delete
	Existed bool `json:"existed"`
}

// ListResult represents the packages of a depot.
type ListResult struct {
	Depot    string   `json:"depot"`
	Packages []string `json:"packages"`
}

// InstallResult represents the result of an install.
type InstallResult struct {
	Identity    string `json:"identity"`
	InstallRoot string `json:"install_root"`
	Layout      string `json:"layout"`

	// Installed lists every manifest installed or re-verified, dependencies
	// included
	Installed []string `json:"installed"`

	// Reverified is true when the requested package was already installed
	Reverified bool `json:"reverified"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func identityOf(ref PackageRef) (manifest.Identity, error) {
	return manifest.NewIdentity(ref.Package, ref.Version, ref.Platform)
}
