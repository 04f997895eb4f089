// Package installer installs a package and, recursively, its dependencies
// from a depot into an install root.
//
// Each Installer handles one package. New fetches and parses the package
// manifest; Install then installs dependencies depth-first, creates the
// package directories and materializes every file, verifying each against
// its SHA-1 digest and mode. A package already recorded in the install
// root is re-verified instead, and only damaged or missing files are
// fetched again.
//
// All Installers of one top-level install share a DependencyStatus, which
// is how dependencies are installed once and cycles are detected.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
	"github.com/danieljhkim/voltron/internal/metrics"
	"github.com/danieljhkim/voltron/internal/retrieve"
	"github.com/danieljhkim/voltron/internal/verify"
)

// DefaultMaxDepth bounds the dependency chain when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

const tracerName = "github.com/danieljhkim/voltron/internal/installer"

// tempSuffix names the per-package scratch directory holding the fetched
// manifest.
const tempSuffix = "-INSTALL-TEMP"

// Options configures an Installer. Dependencies are installed with the same
// options.
type Options struct {
	// InstallRoot is the directory packages are installed into.
	InstallRoot string

	// Retriever reads manifests and blobs from the depot. A retriever that
	// implements retrieve.Fetcher retries whole downloads.
	Retriever retrieve.Retriever

	// Status is shared by every Installer of one top-level install.
	Status *DependencyStatus

	// Layout defaults to PerPackageLayout.
	Layout Layout

	// MaxDepth defaults to DefaultMaxDepth.
	MaxDepth int

	// FatalPolicy decides whether a file that fails verification right
	// after being fetched aborts the whole run.
	FatalPolicy FatalPolicy

	// FS defaults to the real filesystem.
	FS fsops.FS

	// Hasher computes file digests; defaults to SHA-1.
	Hasher hash.Hasher

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

type state int

const (
	stateReady state = iota
	stateRunning
	stateFinalized
)

// Installer installs one package.
type Installer struct {
	id           manifest.Identity
	manifestName string
	opts         Options
	depth        int

	pkgDir     string
	tempDir    string
	markerPath string

	// installed is true when the marker existed before this invocation
	installed     bool
	createdPkgDir bool

	manifest     *manifest.Manifest
	manifestData []byte

	// created lists paths this invocation created, oldest first; only
	// tracked for shared layouts
	created []string

	state    state
	verifier *verify.Verifier
	logger   logrus.FieldLogger
	tracer   trace.Tracer
}

// New prepares the install of id: it resolves the package directories and
// fetches and parses the package manifest. Any failure is returned after
// removing whatever New created.
func New(ctx context.Context, id manifest.Identity, opts Options) (*Installer, error) {
	if opts.Status == nil {
		return nil, errors.New("installer: dependency status is required")
	}
	if opts.Retriever == nil {
		return nil, errors.New("installer: retriever is required")
	}
	if opts.InstallRoot == "" {
		return nil, errors.New("installer: install root is required")
	}
	if opts.Layout == nil {
		opts.Layout = PerPackageLayout{}
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.FS == nil {
		opts.FS = fsops.NewRealFS()
	}
	if opts.Hasher == nil {
		opts.Hasher = hash.NewSHA1Hasher()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return newInstaller(ctx, id, opts, 0)
}

func newInstaller(ctx context.Context, id manifest.Identity, opts Options, depth int) (*Installer, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	in := &Installer{
		id:           id,
		manifestName: id.ManifestFile(),
		opts:         opts,
		depth:        depth,
		pkgDir:       opts.Layout.PackageDir(opts.InstallRoot, id),
		markerPath:   opts.Layout.MarkerPath(opts.InstallRoot, id),
		verifier:     verify.New(opts.FS, opts.Hasher),
		logger: opts.Logger.WithFields(logrus.Fields{
			"package": id.Canonical(),
			"depth":   depth,
		}),
		tracer: otel.Tracer(tracerName),
	}
	in.tempDir = filepath.Join(in.pkgDir, id.Canonical()+tempSuffix)

	if err := in.setup(ctx); err != nil {
		in.cleanup(false)
		return nil, fmt.Errorf("failed to prepare install of %s: %w", id, err)
	}
	return in, nil
}

func (in *Installer) setup(ctx context.Context) error {
	fs := in.opts.FS

	installed, err := fs.Exists(in.markerPath)
	if err != nil {
		return fmt.Errorf("failed to check install marker: %w", err)
	}
	in.installed = installed

	pkgExists, err := fs.Exists(in.pkgDir)
	if err != nil {
		return fmt.Errorf("failed to check package directory: %w", err)
	}
	if !pkgExists {
		if err := fs.MkdirAll(in.pkgDir, 0755); err != nil {
			return fmt.Errorf("failed to create package directory: %w", err)
		}
		in.createdPkgDir = !in.opts.Layout.Shared()
	}

	// A scratch directory left behind by an interrupted run is stale.
	if err := fs.RemoveAll(in.tempDir); err != nil {
		return fmt.Errorf("failed to clear temp directory: %w", err)
	}
	if err := fs.Mkdir(in.tempDir, 0700); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	data, err := in.fetchManifest(ctx)
	if err != nil {
		return &manifest.LoadError{Source: in.manifestName, Err: err}
	}

	m, err := manifest.Parse(data, in.manifestName)
	if err != nil {
		return err
	}
	in.manifest = m
	in.manifestData = data
	return nil
}

func (in *Installer) fetchManifest(ctx context.Context) ([]byte, error) {
	local := filepath.Join(in.tempDir, in.manifestName)
	err := retrieve.Fetch(ctx, in.opts.Retriever, depot.ManifestRef(in.manifestName), func(r io.Reader) error {
		if err := in.opts.FS.WriteFrom(local, r, 0644); err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return in.opts.FS.ReadFile(local)
}

// Identity returns the package being installed.
func (in *Installer) Identity() manifest.Identity {
	return in.id
}

// Manifest returns the fetched manifest.
func (in *Installer) Manifest() *manifest.Manifest {
	return in.manifest
}

// AlreadyInstalled reports whether the package was recorded in the install
// root before this install, which makes Install re-verify it.
func (in *Installer) AlreadyInstalled() bool {
	return in.installed
}

// PackageDir returns the directory the package is installed into.
func (in *Installer) PackageDir() string {
	return in.pkgDir
}

// Install installs dependencies, directories and files, then records the
// package in the install root. An Installer can be used once.
func (in *Installer) Install(ctx context.Context) (err error) {
	if in.state != stateReady {
		return fmt.Errorf("install of %s already ran", in.id)
	}
	in.state = stateRunning

	mode := metrics.ModeFresh
	if in.installed {
		mode = metrics.ModeReverify
	}

	ctx, span := in.tracer.Start(ctx, "installer.Install", trace.WithAttributes(
		attribute.String("voltron.package", in.id.Canonical()),
		attribute.Int("voltron.depth", in.depth),
		attribute.String("voltron.mode", mode),
	))
	start := time.Now()

	defer func() {
		if err != nil {
			in.opts.Status.Dequeue(in.manifestName)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		in.cleanup(err == nil)
		in.state = stateFinalized
		span.End()

		if in.depth == 0 {
			in.opts.Metrics.ObserveInstall(time.Since(start))
			if err != nil {
				in.opts.Metrics.InstallFailed(failureReason(err))
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if in.depth > in.opts.MaxDepth {
		return fmt.Errorf("%w: %s is %d levels deep (limit %d)", ErrMaxDepthExceeded, in.id, in.depth, in.opts.MaxDepth)
	}

	in.opts.Status.Enqueue(in.manifestName)
	in.logger.WithField("mode", mode).Info("installing package")

	if in.installed {
		if err := in.reverifyFiles(ctx); err != nil {
			return err
		}
	} else {
		if err := in.installDependencies(ctx); err != nil {
			return err
		}
		if err := in.createDirs(); err != nil {
			return err
		}
		if err := in.installFiles(ctx); err != nil {
			return err
		}
	}

	if err := in.writeMarker(); err != nil {
		return err
	}

	in.opts.Status.Promote(in.manifestName)
	in.opts.Metrics.PackageInstalled(mode)
	in.logger.Info("package installed")
	return nil
}

func (in *Installer) installDependencies(ctx context.Context) error {
	for _, dep := range in.manifest.Depends {
		name := dep.ManifestName()

		skip, err := in.opts.Status.Check(in.manifestName, name)
		if err != nil {
			return err
		}
		if skip {
			in.logger.WithField("manifest", name).Debug("dependency already installed")
			continue
		}

		id, err := manifest.ParseManifestName(name)
		if err != nil {
			return fmt.Errorf("invalid dependency of %s: %w", in.id, err)
		}

		child, err := newInstaller(ctx, id, in.opts, in.depth+1)
		if err != nil {
			return err
		}
		if err := child.Install(ctx); err != nil {
			return fmt.Errorf("failed to install dependency %s of %s: %w", id, in.id, err)
		}
	}
	return nil
}

func (in *Installer) createDirs() error {
	for _, dir := range in.manifest.Dirs {
		if err := in.opts.FS.ValidateRelPath(dir.Path); err != nil {
			return fmt.Errorf("invalid directory path %q: %w", dir.Path, err)
		}
		if err := in.mkdirAll(filepath.Join(in.pkgDir, filepath.FromSlash(dir.Path))); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir.Path, err)
		}
	}
	return nil
}

func (in *Installer) writeMarker() error {
	existed, err := in.opts.FS.Exists(in.markerPath)
	if err != nil {
		return fmt.Errorf("failed to check install marker: %w", err)
	}
	if err := in.mkdirAll(filepath.Dir(in.markerPath)); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	if err := in.opts.FS.AtomicWrite(in.markerPath, in.manifestData, 0644); err != nil {
		return fmt.Errorf("failed to record installed manifest: %w", err)
	}
	if !existed {
		in.track(in.markerPath)
	}
	return nil
}

// mkdirAll creates dir and any missing parents, recording each directory
// it creates.
func (in *Installer) mkdirAll(dir string) error {
	var missing []string
	for p := dir; ; p = filepath.Dir(p) {
		exists, err := in.opts.FS.Exists(p)
		if err != nil {
			return err
		}
		if exists {
			break
		}
		missing = append(missing, p)
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := in.opts.FS.Mkdir(missing[i], 0755); err != nil {
			return err
		}
		in.track(missing[i])
	}
	return nil
}

func (in *Installer) track(path string) {
	if in.opts.Layout.Shared() {
		in.created = append(in.created, path)
	}
}

// cleanup removes the temp directory and, after a failed fresh install,
// what this invocation created. Errors are logged, never returned.
func (in *Installer) cleanup(success bool) {
	fs := in.opts.FS
	if err := fs.RemoveAll(in.tempDir); err != nil {
		in.logger.WithError(err).WithField("path", in.tempDir).Warn("failed to remove temp directory")
	}

	if success {
		return
	}

	if in.createdPkgDir {
		if err := fs.RemoveAll(in.pkgDir); err != nil {
			in.logger.WithError(err).WithField("path", in.pkgDir).Warn("failed to remove package directory")
		}
		return
	}
	if in.installed {
		return
	}

	for i := len(in.created) - 1; i >= 0; i-- {
		p := in.created[i]
		if err := fs.Remove(p); err != nil {
			in.logger.WithError(err).WithField("path", p).Debug("left path in place")
		}
	}
	in.created = nil
}

func failureReason(err error) string {
	var le *manifest.LoadError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrCyclicDependency):
		return "cyclic"
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "depth"
	case errors.Is(err, verify.ErrChecksum):
		return "checksum"
	case errors.Is(err, verify.ErrPermission):
		return "permission"
	case errors.As(err, &le):
		return "manifest"
	case errors.Is(err, retrieve.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
