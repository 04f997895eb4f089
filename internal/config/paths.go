// Package config manages voltron configuration and filesystem paths.
//
// The voltron root (default ~/.voltron, override with VOLTRON_ROOT) holds
// config.yaml and, unless configured otherwise, the local depot and the
// default install root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RootEnv overrides the voltron root directory.
const RootEnv = "VOLTRON_ROOT"

// Paths contains all the filesystem paths used by voltron.
type Paths struct {
	// Root is the base directory for all voltron data (default: ~/.voltron)
	Root string

	// Depot is the default local depot directory
	Depot string

	// Install is the default install root
	Install string

	// Config is the path to the global config file
	Config string
}

// DefaultPaths returns the default paths for voltron.
// Paths can be overridden with environment variables:
// - VOLTRON_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv(RootEnv)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".voltron")
	}

	return NewPaths(root), nil
}

// NewPaths lays out the paths under root.
func NewPaths(root string) *Paths {
	return &Paths{
		Root:    root,
		Depot:   filepath.Join(root, "depot"),
		Install: filepath.Join(root, "installed"),
		Config:  filepath.Join(root, "config.yaml"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Root,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
