package engine

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// resolvePath makes a user-provided path absolute against cwd and cleans it.
func resolvePath(userPath, cwd string) string {
	if filepath.IsAbs(userPath) {
		return filepath.Clean(userPath)
	}
	return filepath.Clean(filepath.Join(cwd, userPath))
}

// isWithin reports whether path is root or lies under it. Both must be
// clean absolute paths.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// localDepotPath returns the directory of a depot location that refers to
// the local filesystem, or ErrRemoteDepot.
func localDepotPath(location, cwd string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: depot location is required", ErrValidation)
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return resolvePath(location, cwd), nil
	}
	if u.Scheme == "file" {
		return filepath.Clean(u.Path), nil
	}
	return "", fmt.Errorf("%w: %s", ErrRemoteDepot, location)
}

// isLocalLocation reports whether location names a local depot directory.
func isLocalLocation(location string) bool {
	u, err := url.Parse(location)
	return err != nil || u.Scheme == "" || u.Scheme == "file"
}
