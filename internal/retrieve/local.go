package retrieve

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local reads references from a depot directory on the local filesystem.
type Local struct {
	Root string
}

// NewLocal creates a Local retriever rooted at root.
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

// Retrieve opens <root>/<ref>.
func (l *Local) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(l.Root, filepath.FromSlash(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(ref)
		}
		// Permission and path-shape errors do not go away on a retry.
		return nil, Permanent(fmt.Errorf("failed to open %s: %w", ref, err))
	}
	return f, nil
}
