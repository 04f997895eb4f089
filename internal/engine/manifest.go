package engine

import (
	"fmt"

	"github.com/danieljhkim/voltron/internal/manifest"
)

// GenerateManifest describes a staging tree and writes
// <target>/<canonical>.json.
func (e *Engine) GenerateManifest(req *GenerateManifestRequest) (*GenerateManifestResult, error) {
	id, err := identityOf(req.PackageRef)
	if err != nil {
		return nil, validationError(err)
	}
	if req.StageDir == "" {
		return nil, fmt.Errorf("%w: staging directory is required", ErrValidation)
	}

	stageDir := resolvePath(req.StageDir, e.cwd)
	target := e.cwd
	if req.TargetDir != "" {
		target = resolvePath(req.TargetDir, e.cwd)
	}

	m, err := manifest.Generate(stageDir, e.hasher)
	if err != nil {
		return nil, err
	}

	if err := e.fs.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}
	path, err := manifest.WriteFile(e.fs, m, target, id)
	if err != nil {
		return nil, err
	}

	e.logger.WithField("package", id.Canonical()).WithField("path", path).Info("manifest generated")
	return &GenerateManifestResult{
		Path:     path,
		Identity: id.Canonical(),
		Dirs:     len(m.Dirs),
		Files:    len(m.Files),
	}, nil
}

// HashFile returns the SHA-1 digest of a file, as recorded in manifests.
func (e *Engine) HashFile(path string) (string, error) {
	digest, err := e.hasher.HashFile(resolvePath(path, e.cwd))
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return digest, nil
}
