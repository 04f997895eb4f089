// Package retrieve fetches depot content by logical reference.
//
// A reference is a slash-separated path relative to the depot root, such as
// "manifestfiles/snappy-1.0.5-linux.json" or
// "datafiles/snappy-1.0.5-linux/<sha1>". The installer only ever asks for
// bytes by reference; whether they come from a local directory, an HTTP
// depot server or an S3 bucket is decided once by Open.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danieljhkim/voltron/internal/fsops"
)

// ErrNotFound indicates the referenced content does not exist in the depot.
// It is never retried.
var ErrNotFound = errors.New("not found in depot")

// Retriever retrieves the bytes behind a depot reference. The caller must
// close the returned reader.
type Retriever interface {
	Retrieve(ctx context.Context, ref string) (io.ReadCloser, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	return f(ctx, ref)
}

// Fetcher is implemented by retrievers that can retry a whole download.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, fn func(io.Reader) error) error
}

// Fetch retrieves ref and passes its stream to fn, which must consume it
// before returning. When r is a Fetcher the download is retried as a whole;
// otherwise it is tried once.
//
// Errors fn returns without the stream having failed, such as a full disk,
// are marked Permanent.
func Fetch(ctx context.Context, r Retriever, ref string, fn func(io.Reader) error) error {
	if f, ok := r.(Fetcher); ok {
		return f.Fetch(ctx, ref, fn)
	}
	return fetchOnce(ctx, r, ref, fn)
}

func fetchOnce(ctx context.Context, r Retriever, ref string, fn func(io.Reader) error) error {
	rc, err := r.Retrieve(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	body := &stream{r: rc}
	if err := fn(body); err != nil {
		if body.err == nil {
			return Permanent(err)
		}
		return err
	}
	return nil
}

// stream records the first read failure of a retrieval stream.
type stream struct {
	r   io.Reader
	err error
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked permanent or is ErrNotFound.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p) || errors.Is(err, ErrNotFound)
}

// ValidateRef rejects references that are empty, absolute or that would
// escape the depot root.
func ValidateRef(ref string) error {
	if ref == "" || strings.HasPrefix(ref, "/") {
		return Permanent(fmt.Errorf("invalid reference %q", ref))
	}
	for _, elem := range strings.Split(ref, "/") {
		if err := fsops.ValidateIdentifier(elem); err != nil {
			return Permanent(fmt.Errorf("invalid reference %q: %w", ref, err))
		}
	}
	return nil
}

func notFound(ref string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, ref)
}
