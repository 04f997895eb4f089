package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency indicates a package depends on itself.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrFatal indicates a freshly fetched file still failed verification,
	// so the depot content itself is bad.
	ErrFatal = errors.New("fatal verification failure")

	// ErrMaxDepthExceeded indicates the dependency chain is deeper than
	// Options.MaxDepth.
	ErrMaxDepthExceeded = errors.New("maximum dependency depth exceeded")
)

// CyclicDependencyError names the manifest whose dependency was found still
// in progress.
type CyclicDependencyError struct {
	Manifest   string
	Dependency string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s depends on %s, which is still being installed", e.Manifest, e.Dependency)
}

// Is reports ErrCyclicDependency as a match.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// FatalError wraps the verification error of a file that was just fetched
// from the depot.
type FatalError struct {
	Path  string
	Err   error
	abort bool
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed verification after fetch: %v", e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is reports ErrFatal as a match.
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// Abort reports whether the error was raised under FatalAbort, in which case
// the process should exit immediately with a data error status.
func (e *FatalError) Abort() bool {
	return e.abort
}

// ShouldAbort reports whether err carries an aborting FatalError.
func ShouldAbort(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe) && fe.Abort()
}

// FatalPolicy selects how a FatalError is surfaced.
type FatalPolicy int

const (
	// FatalAsError returns the FatalError like any other error.
	FatalAsError FatalPolicy = iota

	// FatalAbort marks the FatalError as aborting.
	FatalAbort
)

func (p FatalPolicy) String() string {
	switch p {
	case FatalAbort:
		return "abort"
	default:
		return "error"
	}
}

// ParseFatalPolicy parses "error" or "abort". The empty string selects
// FatalAsError.
func ParseFatalPolicy(s string) (FatalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return FatalAsError, nil
	case "abort":
		return FatalAbort, nil
	default:
		return FatalAsError, fmt.Errorf("invalid refetch failure policy %q: must be error or abort", s)
	}
}
