package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danieljhkim/voltron/internal/clock"
	"github.com/danieljhkim/voltron/internal/config"
	"github.com/danieljhkim/voltron/internal/engine"
	"github.com/danieljhkim/voltron/internal/fsops"
	"github.com/danieljhkim/voltron/internal/hash"
	"github.com/danieljhkim/voltron/internal/manifest"
)

// env is a voltron root in a temp dir with its engine.
type env struct {
	t        *testing.T
	dir      string
	paths    *config.Paths
	registry *prometheus.Registry
	hook     *test.Hook
	eng      *engine.Engine
}

type stagedFile struct {
	content string
	mode    os.FileMode
}

func setupTestEngine(t *testing.T, configure ...func(*config.Config)) *env {
	t.Helper()
	dir := t.TempDir()
	paths := config.NewPaths(filepath.Join(dir, ".voltron"))
	cfg := config.Default(paths)
	cfg.Fetch.Backoff = time.Millisecond
	cfg.Fetch.MaxBackoff = 5 * time.Millisecond
	for _, fn := range configure {
		fn(&cfg)
	}

	logger, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	eng := engine.New(
		fsops.NewRealFS(),
		hash.NewSHA1Hasher(),
		clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		*paths,
		cfg,
		logger,
		reg,
	)
	return &env{t: t, dir: dir, paths: paths, registry: reg, hook: hook, eng: eng}
}

func ref(name, version, platform string) engine.PackageRef {
	return engine.PackageRef{Package: name, Version: version, Platform: platform}
}

func canonical(r engine.PackageRef) string {
	return r.Package + "-" + r.Version + "-" + r.Platform
}

// publish stages files, generates the manifest, appends deps and adds the
// package to the configured depot.
func (e *env) publish(r engine.PackageRef, files map[string]stagedFile, deps ...engine.PackageRef) {
	t := e.t
	t.Helper()

	stage := filepath.Join(e.dir, "stage", canonical(r))
	for rel, sf := range files {
		p := filepath.Join(stage, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(sf.content), sf.mode); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(p, sf.mode); err != nil {
			t.Fatal(err)
		}
	}

	manifests := filepath.Join(e.dir, "manifests")
	gen, err := e.eng.GenerateManifest(&engine.GenerateManifestRequest{
		PackageRef: r,
		StageDir:   stage,
		TargetDir:  manifests,
	})
	if err != nil {
		t.Fatalf("GenerateManifest(%s) failed: %v", canonical(r), err)
	}

	if len(deps) > 0 {
		fs := fsops.NewRealFS()
		m, _, err := manifest.Load(fs, gen.Path)
		if err != nil {
			t.Fatal(err)
		}
		for _, d := range deps {
			m.Depends = append(m.Depends, manifest.Dependency{Package: d.Package, Version: d.Version, Platform: d.Platform})
		}
		id, err := manifest.NewIdentity(r.Package, r.Version, r.Platform)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := manifest.WriteFile(fs, m, manifests, id); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := e.eng.Deploy(context.Background(), &engine.DeployRequest{
		PackageRef:  r,
		StageDir:    stage,
		ManifestDir: manifests,
	}); err != nil {
		t.Fatalf("Deploy(%s) failed: %v", canonical(r), err)
	}
}

func (e *env) install(r engine.PackageRef, mutate ...func(*engine.InstallRequest)) (*engine.InstallResult, error) {
	req := &engine.InstallRequest{PackageRef: r}
	for _, fn := range mutate {
		fn(req)
	}
	return e.eng.Install(context.Background(), req)
}

// blobPath returns the depot copy of content within pkg.
func (e *env) blobPath(r engine.PackageRef, content string) string {
	return filepath.Join(e.paths.Depot, "datafiles", canonical(r), hash.HashBytes([]byte(content)))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("lstat %s: %v", path, err)
	}
	return false
}
