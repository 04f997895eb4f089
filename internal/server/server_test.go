package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danieljhkim/voltron/internal/depot"
	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
	"github.com/danieljhkim/voltron/internal/metrics"
	"github.com/danieljhkim/voltron/internal/retrieve"
)

var snappy = manifest.Identity{Name: "snappy", Version: "1.0.5", Platform: "linux"}

func newTestServer(t *testing.T) (*httptest.Server, *depot.Depot) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	d := depot.New(t.TempDir(), depot.WithLogger(logger), depot.WithMetrics(metrics.New(reg)))

	staging := t.TempDir()
	if err := os.WriteFile(filepath.Join(staging, "README"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(staging, "README"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Generate(staging, hash.NewSHA1Hasher())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	manifestDir := t.TempDir()
	if _, err := manifest.WriteFile(fsops.NewRealFS(), m, manifestDir, snappy); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := d.Add(context.Background(), snappy, staging, manifestDir); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	srv := httptest.NewServer(New(d, WithLogger(logger), WithGatherer(reg)))
	t.Cleanup(srv.Close)
	return srv, d
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Routes(t *testing.T) {
	srv, d := newTestServer(t)
	registered, _ := os.ReadFile(d.ManifestPath(snappy))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", "/healthz", http.StatusOK, "ok\n"},
		{"manifest", "/manifestfiles/snappy-1.0.5-linux.json", http.StatusOK, string(registered)},
		{"blob", "/datafiles/snappy-1.0.5-linux/2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", http.StatusOK, "hello world"},
		{"missing manifest", "/manifestfiles/zlib-1.3-linux.json", http.StatusNotFound, ""},
		{"missing blob", "/datafiles/snappy-1.0.5-linux/da39a3ee5e6b4b0d3255bfef95601890afd80709", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+tt.path)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantBody != "" && body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestServer_RejectsTraversal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(depot.New(t.TempDir()), WithLogger(logger), WithGatherer(prometheus.NewRegistry()))

	req := httptest.NewRequest(http.MethodGet, "/datafiles/snappy-1.0.5-linux/..", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_Packages(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv.URL+"/packages")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var names []string
	if err := json.Unmarshal([]byte(body), &names); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(names) != 1 || names[0] != snappy.Canonical() {
		t.Errorf("packages = %v", names)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "voltron_depot_operations_total") {
		t.Error("metrics output missing depot operations")
	}
}

func TestServer_ServesHTTPRetriever(t *testing.T) {
	srv, _ := newTestServer(t)

	r, err := retrieve.NewHTTP(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}
	rc, err := r.Retrieve(context.Background(), depot.BlobRef(snappy.Canonical(), hash.HashBytes([]byte("hello world"))))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello world" {
		t.Errorf("content = %q", data)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), logger)
	}()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
