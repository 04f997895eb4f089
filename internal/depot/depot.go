// Package depot manages the content-addressed package store.
//
// A depot is a directory holding one manifest per published package and the
// package's file contents keyed by SHA-1:
//
//	<root>/manifestfiles/<name>-<version>-<platform>.json
//	<root>/datafiles/<name>-<version>-<platform>/<sha1>
//
// Publishing verifies every staged file against the manifest before
// anything becomes visible. Blobs are written into a hidden work directory
// and swapped into place, and the manifest is written last, so readers never
// observe a half-deployed package.
package depot

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
	"github.com/danieljhkim/voltron/internal/metrics"
	"github.com/danieljhkim/voltron/internal/verify"
)

// Depot layout directories, relative to the depot root.
const (
	ManifestDir = "manifestfiles"
	DataDir     = "datafiles"
)

const tracerName = "github.com/danieljhkim/voltron/internal/depot"

// ManifestRef returns the retrieval reference of a manifest file.
func ManifestRef(file string) string {
	return path.Join(ManifestDir, file)
}

// BlobRef returns the retrieval reference of a blob.
func BlobRef(canonical, sha1 string) string {
	return path.Join(DataDir, canonical, sha1)
}

// Depot is a package store rooted at a directory.
type Depot struct {
	root     string
	fs       fsops.FS
	hasher   hash.Hasher
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	verifier *verify.Verifier
}

// Option configures a Depot.
type Option func(*Depot)

// WithFS sets the filesystem implementation.
func WithFS(fs fsops.FS) Option {
	return func(d *Depot) { d.fs = fs }
}

// WithHasher sets the hasher used to verify staged files.
func WithHasher(h hash.Hasher) Option {
	return func(d *Depot) { d.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Depot) { d.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Depot) { d.metrics = m }
}

// New opens the depot at root. The directory need not exist yet; it is
// created by the first Add.
func New(root string, opts ...Option) *Depot {
	d := &Depot{
		root:   root,
		fs:     fsops.NewRealFS(),
		hasher: hash.NewSHA1Hasher(),
		logger: logrus.StandardLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.verifier = verify.New(d.fs, d.hasher)
	return d
}

// Root returns the depot root directory.
func (d *Depot) Root() string {
	return d.root
}

// ManifestPath returns where the manifest of id is registered.
func (d *Depot) ManifestPath(id manifest.Identity) string {
	return filepath.Join(d.root, ManifestDir, id.ManifestFile())
}

// BlobDir returns the blob directory of id.
func (d *Depot) BlobDir(id manifest.Identity) string {
	return filepath.Join(d.root, DataDir, id.Canonical())
}

// BlobPath returns the path of one blob of id.
func (d *Depot) BlobPath(id manifest.Identity, sha1 string) string {
	return filepath.Join(d.BlobDir(id), sha1)
}

// List returns the canonical names of all registered packages, sorted.
func (d *Depot) List() ([]string, error) {
	entries, err := d.fs.ReadDir(filepath.Join(d.root, ManifestDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, manifest.FileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, manifest.FileExt))
	}
	sort.Strings(names)

	return names, nil
}

// Exists reports whether id is registered.
func (d *Depot) Exists(id manifest.Identity) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	return d.fs.Exists(d.ManifestPath(id))
}

// Add publishes a new package. The manifest is read from
// <manifestDir>/<canonical>.json and every file it lists from stagingDir.
func (d *Depot) Add(ctx context.Context, id manifest.Identity, stagingDir, manifestDir string) (err error) {
	ctx, span := d.startSpan(ctx, "depot.Add", id)
	defer func() { d.finish(span, "add", err) }()

	if err := id.Validate(); err != nil {
		return err
	}

	exists, err := d.fs.Exists(d.ManifestPath(id))
	if err != nil {
		return fmt.Errorf("failed to check for existing package: %w", err)
	}
	if exists {
		return &PackageExistsError{ID: id}
	}

	return d.deploy(ctx, id, stagingDir, manifestDir)
}

// Update publishes id, replacing any registered version. If the deploy
// fails the previous version stays in place.
func (d *Depot) Update(ctx context.Context, id manifest.Identity, stagingDir, manifestDir string) (err error) {
	ctx, span := d.startSpan(ctx, "depot.Update", id)
	defer func() { d.finish(span, "update", err) }()

	if err := id.Validate(); err != nil {
		return err
	}

	return d.deploy(ctx, id, stagingDir, manifestDir)
}

// Delete removes the manifest and blobs of id. Failures are logged, never
// returned; deleting an absent package is a no-op. Blobs are not reference
// counted.
func (d *Depot) Delete(id manifest.Identity) {
	logger := d.logger.WithField("package", id.Canonical())
	if err := id.Validate(); err != nil {
		logger.WithError(err).Warn("refusing to delete invalid package identity")
		d.metrics.DepotOperation("delete", err)
		return
	}

	var failed error
	if err := d.fs.Remove(d.ManifestPath(id)); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("failed to remove manifest")
		failed = err
	}
	if err := d.fs.RemoveAll(d.BlobDir(id)); err != nil {
		logger.WithError(err).Warn("failed to remove blob directory")
		failed = err
	}

	if failed == nil {
		logger.Debug("package deleted")
	}
	d.metrics.DepotOperation("delete", failed)
}

func (d *Depot) deploy(ctx context.Context, id manifest.Identity, stagingDir, manifestDir string) error {
	logger := d.logger.WithField("package", id.Canonical())

	m, data, err := manifest.Load(d.fs, filepath.Join(manifestDir, id.ManifestFile()))
	if err != nil {
		return err
	}

	dataRoot := filepath.Join(d.root, DataDir)
	if err := d.fs.MkdirAll(dataRoot, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := d.fs.MkdirAll(filepath.Join(d.root, ManifestDir), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	work, err := d.fs.MkdirTemp(dataRoot, "."+id.Canonical()+".deploy-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer d.removeQuietly(logger, work)

	for _, entry := range m.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.stageBlob(entry, stagingDir, work); err != nil {
			return err
		}
	}

	target := d.BlobDir(id)
	aside := work + ".previous"
	hadPrevious, err := d.fs.Exists(target)
	if err != nil {
		return fmt.Errorf("failed to check blob directory: %w", err)
	}
	if hadPrevious {
		if err := d.fs.Rename(target, aside); err != nil {
			return fmt.Errorf("failed to move previous blobs aside: %w", err)
		}
	}

	restore := func() {
		d.removeQuietly(logger, target)
		if hadPrevious {
			if err := d.fs.Rename(aside, target); err != nil {
				logger.WithError(err).Warn("failed to restore previous blobs")
			}
		}
	}

	if err := d.fs.Rename(work, target); err != nil {
		restore()
		return fmt.Errorf("failed to install blob directory: %w", err)
	}

	if err := d.fs.AtomicWrite(d.ManifestPath(id), data, 0644); err != nil {
		restore()
		return fmt.Errorf("failed to register manifest: %w", err)
	}

	if hadPrevious {
		d.removeQuietly(logger, aside)
	}

	logger.WithFields(logrus.Fields{
		"files": len(m.Files),
		"blobs": len(m.Blobs()),
	}).Info("package deployed")
	return nil
}

// stageBlob verifies one staged file and copies its content into the work
// directory, once per distinct digest.
func (d *Depot) stageBlob(entry manifest.FileEntry, stagingDir, work string) error {
	if err := d.fs.ValidateRelPath(entry.Path); err != nil {
		return fmt.Errorf("invalid file path %q: %w", entry.Path, err)
	}

	staged := filepath.Join(stagingDir, filepath.FromSlash(entry.Path))
	if err := d.verifier.File(staged, entry); err != nil {
		return err
	}

	blob := filepath.Join(work, entry.SHA1)
	exists, err := d.fs.Exists(blob)
	if err != nil {
		return fmt.Errorf("failed to check blob %s: %w", entry.SHA1, err)
	}
	if exists {
		return nil
	}

	f, err := os.Open(staged)
	if err != nil {
		return fmt.Errorf("failed to open staged file %s: %w", entry.Path, err)
	}
	defer f.Close()

	if err := d.fs.WriteFrom(blob, f, 0644); err != nil {
		return fmt.Errorf("failed to store blob for %s: %w", entry.Path, err)
	}
	return nil
}

func (d *Depot) removeQuietly(logger logrus.FieldLogger, path string) {
	if err := d.fs.RemoveAll(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("cleanup failed")
	}
}

func (d *Depot) startSpan(ctx context.Context, name string, id manifest.Identity) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("voltron.package", id.Canonical()),
	))
}

func (d *Depot) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	d.metrics.DepotOperation(op, err)
}
