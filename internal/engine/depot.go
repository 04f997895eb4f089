package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/voltron/internal/manifest"
	"github.com/danieljhkim/voltron/internal/server"
)

// List returns the packages registered in a local depot.
func (e *Engine) List(req *ListRequest) (*ListResult, error) {
	d, err := e.openLocalDepot(req.Depot)
	if err != nil {
		return nil, err
	}

	names, err := d.List()
	if err != nil {
		return nil, err
	}
	return &ListResult{Depot: d.Root(), Packages: names}, nil
}

// Deploy adds or updates a package in a local depot.
func (e *Engine) Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error) {
	id, err := identityOf(req.PackageRef)
	if err != nil {
		return nil, validationError(err)
	}
	if req.StageDir == "" || req.ManifestDir == "" {
		return nil, fmt.Errorf("%w: staging and manifest directories are required", ErrValidation)
	}

	d, err := e.openLocalDepot(req.Depot)
	if err != nil {
		return nil, err
	}

	stageDir := resolvePath(req.StageDir, e.cwd)
	manifestDir := resolvePath(req.ManifestDir, e.cwd)
	for _, dir := range []string{stageDir, manifestDir} {
		if isWithin(dir, filepath.Clean(d.Root())) {
			return nil, fmt.Errorf("%w: %s is inside the depot", ErrValidation, dir)
		}
	}

	start := e.clock.Now()
	err = e.withLock(ctx, d.Root(), func() error {
		if req.Update {
			return d.Update(ctx, id, stageDir, manifestDir)
		}
		return d.Add(ctx, id, stageDir, manifestDir)
	})
	if err != nil {
		return nil, err
	}

	files := 0
	if m, _, err := manifest.Load(e.fs, d.ManifestPath(id)); err == nil {
		files = len(m.Files)
	}

	return &DeployResult{
		Identity: id.Canonical(),
		Depot:    d.Root(),
		Updated:  req.Update,
		Files:    files,
		Duration: e.clock.Since(start),
	}, nil
}

// Delete removes a package from a local depot. Removal failures are logged
// by the depot, not returned.
func (e *Engine) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResult, error) {
	id, err := identityOf(req.PackageRef)
	if err != nil {
		return nil, validationError(err)
	}

	d, err := e.openLocalDepot(req.Depot)
	if err != nil {
		return nil, err
	}

	var existed bool
	err = e.withLock(ctx, d.Root(), func() error {
		existed, err = d.Exists(id)
		if err != nil {
			return err
		}
		d.Delete(id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DeleteResult{
		Identity: id.Canonical(),
		Depot:    d.Root(),
		Existed:  existed,
	}, nil
}

// Serve exposes a local depot over HTTP until ctx is done.
func (e *Engine) Serve(ctx context.Context, req *ServeRequest) error {
	d, err := e.openLocalDepot(req.Depot)
	if err != nil {
		return err
	}

	addr := req.Addr
	if addr == "" {
		addr = e.config.Server.Addr
	}

	h := server.New(d, server.WithLogger(e.logger), server.WithGatherer(e.registry))
	return server.Run(ctx, addr, h, e.logger.WithField("depot", d.Root()))
}
