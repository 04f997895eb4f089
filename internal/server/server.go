// Package server exposes a depot over HTTP so installers on other hosts can
// use it as an http:// depot location.
//
// Routes:
//
//	GET /manifestfiles/{file}     manifest document
//	GET /datafiles/{pkg}/{sha1}   blob content
//	GET /packages                 JSON list of canonical names
//	GET /metrics                  Prometheus metrics
//	GET /healthz                  liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/retrieve"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 10 * time.Second

type options struct {
	logger   logrus.FieldLogger
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*options)

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithGatherer sets the registry served at /metrics (default
// prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

type handler struct {
	depot  *depot.Depot
	files  retrieve.Retriever
	logger logrus.FieldLogger
}

// New returns a read-only HTTP handler for d.
func New(d *depot.Depot, opts ...Option) http.Handler {
	o := options{
		logger:   logrus.StandardLogger(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handler{
		depot:  d,
		files:  retrieve.NewLocal(d.Root()),
		logger: o.logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(o.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/packages", h.listPackages)
	r.Get("/"+depot.ManifestDir+"/{file}", h.serveManifest)
	r.Get("/"+depot.DataDir+"/{pkg}/{sha1}", h.serveBlob)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))

	return r
}

func (h *handler) listPackages(w http.ResponseWriter, r *http.Request) {
	names, err := h.depot.List()
	if err != nil {
		h.logger.WithError(err).Error("failed to list packages")
		http.Error(w, "failed to list packages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		h.logger.WithError(err).Warn("failed to write package list")
	}
}

func (h *handler) serveManifest(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, depot.ManifestRef(chi.URLParam(r, "file")), "application/json")
}

func (h *handler) serveBlob(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, depot.BlobRef(chi.URLParam(r, "pkg"), chi.URLParam(r, "sha1")), "application/octet-stream")
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request, ref, contentType string) {
	rc, err := h.files.Retrieve(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, retrieve.ErrNotFound):
			http.NotFound(w, r)
		case retrieve.IsPermanent(err):
			http.Error(w, "invalid reference", http.StatusBadRequest)
		default:
			h.logger.WithError(err).WithField("ref", ref).Error("failed to open depot file")
			http.Error(w, "failed to read depot", http.StatusInternalServerError)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WithError(err).WithField("ref", ref).Warn("failed to stream depot file")
	}
}

func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request served")
		})
	}
}

// Run serves h on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.WithField("addr", addr).Info("depot server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("depot server stopped")
	return nil
}
