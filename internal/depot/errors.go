package depot

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/voltron/internal/manifest"
)

// ErrPackageExists indicates Add found the package already registered.
var ErrPackageExists = errors.New("package already exists")

// PackageExistsError names the package that Add refused to overwrite.
type PackageExistsError struct {
	ID manifest.Identity
}

func (e *PackageExistsError) Error() string {
	return fmt.Sprintf("package %s already exists in depot; use update to replace it", e.ID)
}

// Is reports ErrPackageExists as a match.
func (e *PackageExistsError) Is(target error) bool {
	return target == ErrPackageExists
}
