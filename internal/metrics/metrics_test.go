package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PackageInstalled(ModeFresh)
	m.PackageInstalled(ModeFresh)
	m.PackageInstalled(ModeReverify)
	m.FileFetched()
	m.FileVerified(ResultOK)
	m.FileVerified(ResultChecksum)
	m.FetchRetried()
	m.DepotOperation("add", nil)
	m.DepotOperation("add", errors.New("boom"))
	m.InstallFailed("cyclic")
	m.ObserveInstall(150 * time.Millisecond)

	if got := testutil.ToFloat64(m.packagesInstalled.WithLabelValues(ModeFresh)); got != 2 {
		t.Errorf("fresh installs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.packagesInstalled.WithLabelValues(ModeReverify)); got != 1 {
		t.Errorf("reverify installs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.filesFetched); got != 1 {
		t.Errorf("files fetched = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.filesVerified.WithLabelValues(ResultChecksum)); got != 1 {
		t.Errorf("checksum verifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.fetchRetries); got != 1 {
		t.Errorf("fetch retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.depotOperations.WithLabelValues("add", "error")); got != 1 {
		t.Errorf("failed adds = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.installDuration); got != 1 {
		t.Errorf("install duration series = %d, want 1", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.PackageInstalled(ModeFresh)
	m.InstallFailed("x")
	m.FileFetched()
	m.FileVerified(ResultOK)
	m.FetchRetried()
	m.DepotOperation("delete", nil)
	m.ObserveInstall(time.Second)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not collide.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
