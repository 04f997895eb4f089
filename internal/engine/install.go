package engine

import (
	"context"

	"github.com/danieljhkim/voltron/internal/installer"
)

// Install installs a package and its dependencies from a depot.
func (e *Engine) Install(ctx context.Context, req *InstallRequest) (*InstallResult, error) {
	id, err := identityOf(req.PackageRef)
	if err != nil {
		return nil, validationError(err)
	}

	layoutName := req.Layout
	if layoutName == "" {
		layoutName = e.config.Layout
	}
	layout, err := installer.ParseLayout(layoutName)
	if err != nil {
		return nil, validationError(err)
	}

	policyName := req.OnRefetchFailure
	if policyName == "" {
		policyName = e.config.OnRefetchFailure
	}
	policy, err := installer.ParseFatalPolicy(policyName)
	if err != nil {
		return nil, validationError(err)
	}

	root := req.InstallRoot
	if root == "" {
		root = e.config.InstallRoot
	}
	root = resolvePath(root, e.cwd)

	retriever, err := e.openRetriever(e.depotLocation(req.Depot))
	if err != nil {
		return nil, validationError(err)
	}

	status := installer.NewDependencyStatus()
	result := &InstallResult{
		Identity:    id.Canonical(),
		InstallRoot: root,
		Layout:      layout.Name(),
		StartedAt:   e.clock.Now(),
	}

	err = e.withLock(ctx, root, func() error {
		in, err := installer.New(ctx, id, installer.Options{
			InstallRoot: root,
			Retriever:   retriever,
			Status:      status,
			Layout:      layout,
			MaxDepth:    e.config.MaxDepth,
			FatalPolicy: policy,
			FS:          e.fs,
			Hasher:      e.hasher,
			Logger:      e.logger,
			Metrics:     e.metrics,
		})
		if err != nil {
			return err
		}
		result.Reverified = in.AlreadyInstalled()
		return in.Install(ctx)
	})
	if err != nil {
		return nil, err
	}

	result.Installed = status.Installed()
	result.Duration = e.clock.Since(result.StartedAt)
	return result, nil
}
