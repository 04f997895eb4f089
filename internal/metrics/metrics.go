// Package metrics exposes Prometheus instrumentation for depot and install
// operations.
//
// A *Metrics is optional everywhere it is accepted: every method is safe to
// call on a nil receiver, so tests and library callers that do not care about
// metrics can pass nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "voltron"

// Install modes reported in packages_installed_total.
const (
	ModeFresh    = "fresh"
	ModeReverify = "reverify"
)

// Verification results reported in files_verified_total.
const (
	ResultOK         = "ok"
	ResultChecksum   = "checksum"
	ResultPermission = "permission"
	ResultError      = "error"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	packagesInstalled *prometheus.CounterVec
	installFailures   *prometheus.CounterVec
	filesFetched      prometheus.Counter
	filesVerified     *prometheus.CounterVec
	fetchRetries      prometheus.Counter
	depotOperations   *prometheus.CounterVec
	installDuration   prometheus.Histogram
}

// New registers the voltron collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		packagesInstalled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "packages_installed_total",
			Help:      "Packages installed or re-verified successfully",
		}, []string{"mode"}),

		installFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "install_failures_total",
			Help:      "Package installs that failed, by reason",
		}, []string{"reason"}),

		filesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_fetched_total",
			Help:      "Blobs retrieved from the depot and materialized",
		}),

		filesVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_verified_total",
			Help:      "File verifications, by result",
		}, []string{"result"}),

		fetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_retries_total",
			Help:      "Retries of transient retrieval failures",
		}),

		depotOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "depot_operations_total",
			Help:      "Depot add/update/delete operations, by result",
		}, []string{"op", "result"}),

		installDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "install_duration_seconds",
			Help:      "Wall time of top-level installs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// PackageInstalled records a completed package install.
func (m *Metrics) PackageInstalled(mode string) {
	if m == nil {
		return
	}
	m.packagesInstalled.WithLabelValues(mode).Inc()
}

// InstallFailed records a failed package install.
func (m *Metrics) InstallFailed(reason string) {
	if m == nil {
		return
	}
	m.installFailures.WithLabelValues(reason).Inc()
}

// FileFetched records one materialized blob.
func (m *Metrics) FileFetched() {
	if m == nil {
		return
	}
	m.filesFetched.Inc()
}

// FileVerified records a verification outcome.
func (m *Metrics) FileVerified(result string) {
	if m == nil {
		return
	}
	m.filesVerified.WithLabelValues(result).Inc()
}

// FetchRetried records one retry of a retrieval.
func (m *Metrics) FetchRetried() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// DepotOperation records a depot mutation outcome.
func (m *Metrics) DepotOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.depotOperations.WithLabelValues(op, result).Inc()
}

// ObserveInstall records the duration of a top-level install.
func (m *Metrics) ObserveInstall(d time.Duration) {
	if m == nil {
		return
	}
	m.installDuration.Observe(d.Seconds())
}
