package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/manifest"
	"github.com/danieljhkim/voltron/internal/metrics"
	"github.com/danieljhkim/voltron/internal/retrieve"
	"github.com/danieljhkim/voltron/internal/verify"
)

// installFiles materializes files for a fresh install. Files already on
// disk must match their entry; absent files are fetched.
func (in *Installer) installFiles(ctx context.Context) error {
	for _, entry := range in.manifest.Files {
		dest, err := in.destination(entry)
		if err != nil {
			return err
		}

		exists, err := in.opts.FS.Exists(dest)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", entry.Path, err)
		}
		if exists {
			if err := in.verify(dest, entry); err != nil {
				return err
			}
			continue
		}
		if err := in.fetch(ctx, dest, entry); err != nil {
			return err
		}
	}
	return nil
}

// reverifyFiles checks an installed package and fetches files that are
// missing or no longer match.
func (in *Installer) reverifyFiles(ctx context.Context) error {
	for _, entry := range in.manifest.Files {
		dest, err := in.destination(entry)
		if err != nil {
			return err
		}

		exists, err := in.opts.FS.Exists(dest)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", entry.Path, err)
		}
		if exists {
			err := in.verify(dest, entry)
			if err == nil {
				continue
			}
			if !verify.IsMismatch(err) {
				return err
			}
			in.logger.WithError(err).WithField("path", entry.Path).Warn("installed file changed, fetching again")
		} else {
			in.logger.WithField("path", entry.Path).Warn("installed file missing, fetching again")
		}

		if err := in.fetch(ctx, dest, entry); err != nil {
			return err
		}
	}
	return nil
}

func (in *Installer) destination(entry manifest.FileEntry) (string, error) {
	if err := in.opts.FS.ValidateRelPath(entry.Path); err != nil {
		return "", fmt.Errorf("invalid file path %q: %w", entry.Path, err)
	}
	return filepath.Join(in.pkgDir, filepath.FromSlash(entry.Path)), nil
}

func (in *Installer) verify(path string, entry manifest.FileEntry) error {
	err := in.verifier.File(path, entry)

	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, verify.ErrChecksum):
		result = metrics.ResultChecksum
	case errors.Is(err, verify.ErrPermission):
		result = metrics.ResultPermission
	default:
		result = metrics.ResultError
	}
	in.opts.Metrics.FileVerified(result)

	return err
}

// fetch retrieves the blob of entry into path with the declared mode and
// verifies the result. A mismatch right after a fetch means the depot copy
// is bad and yields a FatalError.
func (in *Installer) fetch(ctx context.Context, path string, entry manifest.FileEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := in.logger.WithField("path", entry.Path)
	logger.Debug("fetching file")

	existed, err := in.opts.FS.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", entry.Path, err)
	}
	if err := in.mkdirAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", entry.Path, err)
	}

	// Each attempt rewrites the file from a fresh stream; the digest is
	// only checked once a download completed.
	err = retrieve.Fetch(ctx, in.opts.Retriever, depot.BlobRef(in.id.Canonical(), entry.SHA1), func(r io.Reader) error {
		return in.opts.FS.WriteFrom(path, r, entry.Mode.FileMode())
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", entry.Path, err)
	}
	if !existed {
		in.track(path)
	}
	in.opts.Metrics.FileFetched()

	if err := in.verify(path, entry); err != nil {
		if verify.IsMismatch(err) {
			return &FatalError{Path: entry.Path, Err: err, abort: in.opts.FatalPolicy == FatalAbort}
		}
		return err
	}
	return nil
}
