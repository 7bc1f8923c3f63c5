// Package testutil holds helpers shared by package and integration tests.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cperrin88/nifpre/pkg/archive"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/metadata"
)

// ReleasePrefix is the URL path archives are served under.
const ReleasePrefix = "/releases/"

// ArtifactServer serves published archives over HTTP and counts requests.
type ArtifactServer struct {
	*httptest.Server
	Dir  string
	hits atomic.Int64
}

// NewArtifactServer starts a server for a fresh release directory. It is
// closed when the test ends.
func NewArtifactServer(t *testing.T) *ArtifactServer {
	t.Helper()

	s := &ArtifactServer{Dir: t.TempDir()}
	files := http.StripPrefix(ReleasePrefix, http.FileServer(http.Dir(s.Dir)))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the release URL archive names are joined onto.
func (s *ArtifactServer) BaseURL() string {
	return s.URL + ReleasePrefix[:len(ReleasePrefix)-1]
}

// Hits returns the number of requests served so far.
func (s *ArtifactServer) Hits() int64 {
	return s.hits.Load()
}

// Publish packages files (relative path to content) as the archive for name
// and returns its path in the release directory.
func (s *ArtifactServer) Publish(t *testing.T, name metadata.ArtifactName, files map[string]string) string {
	t.Helper()

	path := filepath.Join(s.Dir, name.String())
	BuildArchive(t, path, files)
	return path
}

// BuildArchive writes files into a scratch directory and packages it at path.
func BuildArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()

	src := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", full, err)
		}
	}
	if err := archive.NewManager().Create(context.Background(), src, path); err != nil {
		t.Fatalf("failed to package %s: %v", path, err)
	}
}

// WriteManifest records the checksum of every archive in the manifest at
// manifestPath.
func WriteManifest(t *testing.T, manifestPath string, archives ...string) checksum.Manifest {
	t.Helper()

	m := checksum.Load(manifestPath)
	for _, path := range archives {
		sum, err := checksum.Compute(path)
		if err != nil {
			t.Fatalf("failed to checksum %s: %v", path, err)
		}
		m.Add(path, sum)
	}
	if err := checksum.Save(manifestPath, m); err != nil {
		t.Fatalf("failed to save manifest: %v", err)
	}
	return m
}
