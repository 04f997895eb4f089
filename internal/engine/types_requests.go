package engine

// PackageRef identifies a package as given on the command line.
type PackageRef struct {
	Package  string
	Version  string
	Platform string
}

// GenerateManifestRequest represents a request to generate a manifest from
// a staging tree.
type GenerateManifestRequest struct {
	PackageRef

	// StageDir is the staging tree to describe
	StageDir string

	// TargetDir receives the manifest (default: current directory)
	TargetDir string
}

// DeployRequest represents a request to publish a package to a depot.
type DeployRequest struct {
	PackageRef

	// Depot is the depot location (default: configured depot)
	Depot string

	// StageDir holds the files named by the manifest
	StageDir string

	// ManifestDir holds <canonical>.json
	ManifestDir string

	// Update replaces an existing package instead of failing
	Update bool
}

// DeleteRequest represents a request to remove a package from a depot.
type DeleteRequest struct {
	PackageRef

	// Depot is the depot location (default: configured depot)
	Depot string
}

// ListRequest represents a request to list the packages of a depot.
type ListRequest struct {
	// Depot is the depot location (default: configured depot)
	Depot string
}

// InstallRequest represents a request to install a package and its
// dependencies.
type InstallRequest struct {
	PackageRef

	// Depot is the depot location (default: configured depot)
	Depot string

	// InstallRoot is the install target (default: configured install root)
	InstallRoot string

	// Layout is "per-package" or "flat" (default: configured layout)
	Layout string

	// OnRefetchFailure is "error" or "abort" (default: configured policy)
	OnRefetchFailure string
}

// ServeRequest represents a request to serve a depot over HTTP.
type ServeRequest struct {
	// Depot is the local depot directory (default: configured depot)
	Depot string

	// Addr is the listen address (default: configured address)
	Addr string
}
