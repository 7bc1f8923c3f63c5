package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/download"
	"github.com/cperrin88/nifpre/pkg/platform"
)

func TestCandidateURLs(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)

	urls, err := f.orch.CandidateURLs(p, FetchOptions{All: true})
	require.NoError(t, err)
	assert.Len(t, urls, 4)
	assert.Contains(t, urls, p.BaseURL+"/fast_json-nif-2.15-aarch64-macos-0.4.1.tar.gz")

	f.expectResolve(p)
	urls, err = f.orch.CandidateURLs(p, FetchOptions{Host: testHost()})
	require.NoError(t, err)
	assert.Equal(t, []string{
		p.BaseURL + "/fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz",
		p.BaseURL + "/fast_json-nif-2.15-x86_64-linux-gnu-0.4.1.tar.gz",
	}, urls)
}

func TestFetchChecksums(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)

	existing := checksum.Manifest{"old-0.4.0.tar.gz": "sha256:aaaa"}
	require.NoError(t, checksum.Save(p.ManifestPath, existing))

	cacheDir := t.TempDir()
	sum := checksum.ComputeBytes([]byte("artifact"))
	f.cache.EXPECT().Root("").Return(cacheDir, nil)
	f.dl.EXPECT().FetchMany(gomock.Any(), gomock.Len(4), cacheDir, false).Return([]download.Result{
		{URL: "u", Path: filepath.Join(cacheDir, "fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz"), Sum: sum},
	}, nil)

	fetched, err := f.orch.FetchChecksums(context.Background(), p, FetchOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, checksum.Manifest{"fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz": sum.String()}, fetched)

	saved := checksum.Load(p.ManifestPath)
	assert.Len(t, saved, 2)
	assert.Equal(t, "sha256:aaaa", saved["old-0.4.0.tar.gz"])
}

func TestFetchArtifacts_HostOnlyIsLenient(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)

	f.expectResolve(p)
	f.cache.EXPECT().Root("").Return("/cache", nil)
	f.dl.EXPECT().FetchMany(gomock.Any(), gomock.Len(2), "/cache", true).Return(nil, nil)

	results, err := f.orch.FetchArtifacts(context.Background(), p, FetchOptions{Host: testHost()})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFetchArtifacts_ResolutionError(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)
	host := platform.ParseSystemArchitecture("riscv64-linux-gnu", 8)
	host.RuntimeABIVersion = testRuntime

	f.orch.Resolver = platformResolver{}
	_, err := f.orch.FetchArtifacts(context.Background(), p, FetchOptions{Host: host})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x86_64-linux-gnu, aarch64-macos")
}
