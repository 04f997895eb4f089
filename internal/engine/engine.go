// Package engine provides the core business logic for voltron operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// the depot, retrieval and installer packages. It resolves configuration
// defaults, serializes concurrent processes with advisory locks and builds
// the retriever for a depot location.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - GenerateManifest/HashFile: manifest authoring
//   - Deploy/Delete/List/Serve: depot management
//   - Install: recursive package installation
package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/voltron/internal/clock"
	"github.com/danieljhkim/voltron/internal/config"
	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/lock"
	"github.com/danieljhkim/voltron/internal/metrics"
	"github.com/danieljhkim/voltron/internal/retrieve"
)

// Engine orchestrates all voltron operations.
// It is the main API surface called by the CLI.
type Engine struct {
	fs          fsops.FS
	hasher      hash.Hasher
	clock       clock.Clock
	configPaths config.Paths
	config      config.Config
	logger      logrus.FieldLogger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics

	// cwd resolves relative paths; defaults to the process directory
	cwd string
}

// New creates a new Engine with the given dependencies. Metrics are
// registered with reg, which "depot serve" exposes.
func New(
	fs fsops.FS,
	hasher hash.Hasher,
	clk clock.Clock,
	paths config.Paths,
	cfg config.Config,
	logger logrus.FieldLogger,
	reg *prometheus.Registry,
) *Engine {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Engine{
		fs:          fs,
		hasher:      hasher,
		clock:       clk,
		configPaths: paths,
		config:      cfg,
		logger:      logger,
		registry:    reg,
		metrics:     metrics.New(reg),
		cwd:         cwd,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() config.Config {
	return e.config
}

func (e *Engine) depotLocation(requested string) string {
	if requested != "" {
		return requested
	}
	return e.config.Depot
}

// openLocalDepot resolves a local depot location and opens it.
func (e *Engine) openLocalDepot(requested string) (*depot.Depot, error) {
	root, err := localDepotPath(e.depotLocation(requested), e.cwd)
	if err != nil {
		return nil, err
	}
	return depot.New(root,
		depot.WithFS(e.fs),
		depot.WithHasher(e.hasher),
		depot.WithLogger(e.logger),
		depot.WithMetrics(e.metrics),
	), nil
}

// openRetriever builds the retriever for a depot location with the
// configured retry and transport settings.
func (e *Engine) openRetriever(location string) (retrieve.Retriever, error) {
	if isLocalLocation(location) {
		root, err := localDepotPath(location, e.cwd)
		if err != nil {
			return nil, err
		}
		location = root
	}

	fetch := e.config.Fetch
	return retrieve.Open(location, retrieve.Options{
		HTTPClient: newHTTPClient(fetch.Timeout),
		S3Region:   e.config.S3.Region,
		S3Endpoint: e.config.S3.Endpoint,
		Retry: retrieve.RetryOptions{
			Attempts:   fetch.Attempts,
			Backoff:    fetch.Backoff,
			MaxBackoff: fetch.MaxBackoff,
		},
		Logger:  e.logger,
		Metrics: e.metrics,
	})
}

// newHTTPClient bounds the wait for response headers only, so a large blob
// may stream for as long as it keeps making progress.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// withLock runs fn while holding the advisory lock of dir.
func (e *Engine) withLock(ctx context.Context, dir string, fn func() error) error {
	l, err := lock.Acquire(ctx, dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			e.logger.WithError(err).WithField("path", dir).Warn("failed to release lock")
		}
	}()

	return fn()
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
