package integration

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danieljhkim/voltron/internal/config"
	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/engine"
	"github.com/danieljhkim/voltron/internal/server"
)

// serveDepot publishes through one engine and serves its depot over HTTP.
func serveDepot(t *testing.T, wrap func(http.Handler) http.Handler) (*env, string) {
	t.Helper()
	publisher := setupTestEngine(t)
	publisher.publish(libc, map[string]stagedFile{"lib/libc.so": {"libc", 0755}})
	publisher.publish(curl, map[string]stagedFile{"bin/curl": {"curl", 0755}}, libc)

	logger, _ := test.NewNullLogger()
	var h http.Handler = server.New(depot.New(publisher.paths.Depot), server.WithLogger(logger))
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return publisher, srv.URL
}

func TestRemote_InstallOverHTTP(t *testing.T) {
	_, url := serveDepot(t, nil)
	e := setupTestEngine(t, func(cfg *config.Config) { cfg.Depot = url })

	result, err := e.install(curl)
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if len(result.Installed) != 2 {
		t.Errorf("Installed = %v, want 2 packages", result.Installed)
	}
	if got := readFile(t, filepath.Join(e.paths.Install, canonical(curl), "bin", "curl")); got != "curl" {
		t.Errorf("bin/curl = %q", got)
	}
}

func TestRemote_DepotFlagOverridesConfig(t *testing.T) {
	_, url := serveDepot(t, nil)
	e := setupTestEngine(t)

	if _, err := e.install(curl, func(r *engine.InstallRequest) { r.Depot = url }); err != nil {
		t.Fatalf("install failed: %v", err)
	}
}

func TestRemote_RetriesTransientFailures(t *testing.T) {
	// Every path fails once with 503 before being served.
	var mu sync.Mutex
	seen := map[string]bool{}
	flaky := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			first := !seen[r.URL.Path]
			seen[r.URL.Path] = true
			mu.Unlock()
			if first {
				http.Error(w, "try again", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	_, url := serveDepot(t, flaky)
	e := setupTestEngine(t, func(cfg *config.Config) { cfg.Depot = url })

	if _, err := e.install(curl); err != nil {
		t.Fatalf("install failed: %v", err)
	}

	// Two manifests and two blobs, each retried once.
	expected := `
# HELP voltron_fetch_retries_total Retries of transient retrieval failures
# TYPE voltron_fetch_retries_total counter
voltron_fetch_retries_total 4
`
	if err := testutil.GatherAndCompare(e.registry, strings.NewReader(expected), "voltron_fetch_retries_total"); err != nil {
		t.Error(err)
	}
}

func TestRemote_MutationsRequireLocalDepot(t *testing.T) {
	_, url := serveDepot(t, nil)
	e := setupTestEngine(t, func(cfg *config.Config) { cfg.Depot = url })

	if _, err := e.eng.List(&engine.ListRequest{}); err == nil {
		t.Error("expected list of a remote depot to fail")
	}
}
