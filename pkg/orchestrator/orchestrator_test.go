package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/net/http/httpproxy"

	"github.com/cperrin88/nifpre/pkg/archive"
	"github.com/cperrin88/nifpre/pkg/cache"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/download"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/metadata"
	ocmocks "github.com/cperrin88/nifpre/pkg/orchestrator/mocks"
	"github.com/cperrin88/nifpre/pkg/platform"
	"github.com/cperrin88/nifpre/test/testutil"
)

const (
	testTarget  = "x86_64-linux-gnu"
	testRuntime = "2.16"
)

func testProject(t *testing.T) Project {
	return Project{
		App:             "fast_json",
		Version:         "0.4.1",
		BaseURL:         "https://example.com/releases/v0.4.1",
		Convention:      platform.ConventionZig,
		Targets:         []string{testTarget, "aarch64-macos"},
		RuntimeVersions: []string{"2.15", testRuntime},
		ManifestPath:    filepath.Join(t.TempDir(), "checksum-fast_json.yaml"),
	}
}

func testHost() platform.Descriptor {
	d := platform.ParseSystemArchitecture("x86_64-linux-gnu", 8)
	d.RuntimeABIVersion = testRuntime
	return d
}

type fixture struct {
	resolver  *ocmocks.MockResolver
	cache     *ocmocks.MockCache
	dl        *ocmocks.MockFetcher
	verifier  *ocmocks.MockVerifier
	installer *ocmocks.MockInstaller
	meta      *ocmocks.MockMetadataStore
	scripts   *ocmocks.MockHookRunner
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		resolver:  ocmocks.NewMockResolver(ctrl),
		cache:     ocmocks.NewMockCache(ctrl),
		dl:        ocmocks.NewMockFetcher(ctrl),
		verifier:  ocmocks.NewMockVerifier(ctrl),
		installer: ocmocks.NewMockInstaller(ctrl),
		meta:      ocmocks.NewMockMetadataStore(ctrl),
		scripts:   ocmocks.NewMockHookRunner(ctrl),
	}
	f.orch = &Orchestrator{
		Resolver:  f.resolver,
		Cache:     f.cache,
		DL:        f.dl,
		Verifier:  f.verifier,
		Installer: f.installer,
		Metadata:  f.meta,
		Scripts:   f.scripts,
	}
	return f
}

func (f *fixture) expectResolve(p Project) {
	f.resolver.EXPECT().
		ResolveRuntime(gomock.Any(), p.Convention, p.Targets, p.RuntimeVersions).
		Return(platform.Resolution{Target: testTarget, RuntimeVersion: testRuntime}, nil)
}

func (f *fixture) expectCacheLookup(p Project, archivePath string, exists bool) {
	f.cache.EXPECT().EntryPath(p.App, testRuntime, testTarget, p.Version).Return(archivePath)
	f.cache.EXPECT().MetadataPath(p.App).Return("/cache/metadata/metadata-fast_json.yaml", nil)
	f.meta.EXPECT().Save("/cache/metadata/metadata-fast_json.yaml", gomock.Any()).Return(true, nil)
	f.cache.EXPECT().Exists(archivePath).Return(exists)
}

func TestEnsureInstalled_AlreadyInstalled(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)
	installDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "libfast_json.so"), []byte("elf"), 0o644))

	f.expectResolve(p)
	// No cache, fetcher, verifier or installer expectations: any call fails the test.

	res, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{
		Host:       testHost(),
		InstallDir: installDir,
		LoadFile:   "libfast_json.so",
		LoadData:   "42",
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "42", res.LoadData)
	assert.False(t, res.Downloaded)
	assert.Empty(t, res.ArchivePath)
}

func TestEnsureInstalled_DownloadVerifyInstall(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)
	installDir := t.TempDir()
	archivePath := "/cache/fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz"
	wantURL := p.BaseURL + "/fast_json-nif-2.16-x86_64-linux-gnu-0.4.1.tar.gz"

	f.expectResolve(p)
	f.expectCacheLookup(p, archivePath, false)
	gomock.InOrder(
		f.cache.EXPECT().Root("").Return("/cache", nil),
		f.dl.EXPECT().FetchOne(gomock.Any(), wantURL).Return([]byte("archive"), nil),
		f.cache.EXPECT().Write(archivePath, []byte("archive")).Return(nil),
		f.verifier.EXPECT().Verify(p.ManifestPath, archivePath).Return(nil),
		f.installer.EXPECT().Extract(gomock.Any(), archivePath, installDir).Return(&archive.Report{
			Files:   []string{"libfast_json.so"},
			Skipped: []archive.SkippedEntry{{Name: "../evil", Reason: "escapes destination"}},
		}, nil),
		f.scripts.EXPECT().Execute(hooks.PostInstall, gomock.Any()).DoAndReturn(
			func(_ hooks.HookType, hctx hooks.HookContext) error {
				assert.Equal(t, testTarget, hctx.Target)
				assert.Equal(t, archivePath, hctx.ArchivePath)
				assert.Equal(t, installDir, hctx.InstallPath)
				return nil
			}),
	)

	var phases []string
	f.orch.Hooks = Hooks{OnEvent: func(e Event) { phases = append(phases, e.Phase) }}

	res, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: installDir})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.Downloaded)
	assert.Equal(t, archivePath, res.ArchivePath)
	assert.Equal(t, filepath.Join(installDir, "libfast_json.so"), res.InstalledPath)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, []string{"resolving", "check-local", "check-cache", "download", "verify", "install", "done"}, phases)
}

func TestEnsureInstalled_CacheHitSkipsDownload(t *testing.T) {
	f := newFixture(t)
	p := testProject(t)
	installDir := t.TempDir()
	archivePath := "/cache/entry.tar.gz"

	f.expectResolve(p)
	f.expectCacheLookup(p, archivePath, true)
	f.verifier.EXPECT().Verify(p.ManifestPath, archivePath).Return(nil)
	f.installer.EXPECT().Extract(gomock.Any(), archivePath, installDir).Return(&archive.Report{}, nil)
	f.scripts.EXPECT().Execute(hooks.PostInstall, gomock.Any()).Return(nil)

	res, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: installDir})
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
}

func TestEnsureInstalled_Failures(t *testing.T) {
	archivePath := "/cache/entry.tar.gz"

	t.Run("resolution", func(t *testing.T) {
		f := newFixture(t)
		p := testProject(t)
		resolveErr := errors.New(errors.KindResolution, "resolve target", "riscv64-linux-gnu", errors.ErrUnsupportedTarget)
		f.resolver.EXPECT().ResolveRuntime(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(platform.Resolution{}, resolveErr)

		res, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: t.TempDir()})
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StateCheckLocal, stageErr.State)
		assert.Equal(t, errors.KindResolution, errors.KindOf(err))
	})

	t.Run("download", func(t *testing.T) {
		f := newFixture(t)
		p := testProject(t)
		f.expectResolve(p)
		f.expectCacheLookup(p, archivePath, false)
		f.cache.EXPECT().Root("").Return("/cache", nil)
		f.dl.EXPECT().FetchOne(gomock.Any(), gomock.Any()).
			Return(nil, errors.New(errors.KindTransport, "fetch", "https://example.com", errors.ErrUnexpectedStatus))

		res, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: t.TempDir()})
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StateDownload, stageErr.State)
		assert.Equal(t, errors.KindTransport, errors.KindOf(err))
	})

	t.Run("checksum mismatch removes the cache entry", func(t *testing.T) {
		f := newFixture(t)
		p := testProject(t)
		f.expectResolve(p)
		f.expectCacheLookup(p, archivePath, true)
		f.verifier.EXPECT().Verify(p.ManifestPath, archivePath).
			Return(errors.New(errors.KindIntegrity, "verify", "entry.tar.gz", errors.ErrChecksumMismatch))
		f.cache.EXPECT().Remove(archivePath).Return(nil)

		_, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: t.TempDir()})
		require.Error(t, err)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StateVerify, stageErr.State)
		assert.ErrorIs(t, err, errors.ErrChecksumMismatch)
	})

	t.Run("missing checksum keeps the cache entry", func(t *testing.T) {
		f := newFixture(t)
		p := testProject(t)
		f.expectResolve(p)
		f.expectCacheLookup(p, archivePath, true)
		f.verifier.EXPECT().Verify(p.ManifestPath, archivePath).
			Return(errors.New(errors.KindIntegrity, "verify", "entry.tar.gz", errors.ErrChecksumMissing).
				WithRemedy(checksum.RemedyCommand))

		_, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: t.TempDir()})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrChecksumMissing)
		assert.Equal(t, checksum.RemedyCommand, errors.RemedyOf(err))
	})

	t.Run("extraction", func(t *testing.T) {
		f := newFixture(t)
		p := testProject(t)
		f.expectResolve(p)
		f.expectCacheLookup(p, archivePath, true)
		f.verifier.EXPECT().Verify(p.ManifestPath, archivePath).Return(nil)
		f.installer.EXPECT().Extract(gomock.Any(), archivePath, gomock.Any()).
			Return(nil, errors.New(errors.KindExtraction, "extract", archivePath, fmt.Errorf("disk full")))

		_, err := f.orch.EnsureInstalled(context.Background(), p, InstallOptions{Host: testHost(), InstallDir: t.TempDir()})
		require.Error(t, err)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StateInstall, stageErr.State)
		assert.Equal(t, errors.KindExtraction, errors.KindOf(err))
	})
}

func TestAvailableURLs(t *testing.T) {
	f := newFixture(t)
	f.cache.EXPECT().MetadataPath("fast_json").Return("/cache/metadata/metadata-fast_json.yaml", nil).Times(2)

	f.meta.EXPECT().Load(gomock.Any()).Return(nil, nil)
	_, err := f.orch.AvailableURLs("fast_json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoMetadata)
	assert.Equal(t, "nifpre install", errors.RemedyOf(err))

	f.meta.EXPECT().Load(gomock.Any()).Return(&metadata.Record{
		App:             "fast_json",
		BaseURL:         "https://example.com/r",
		Version:         "0.4.1",
		Targets:         []string{testTarget},
		RuntimeVersions: []string{"2.15", "2.16"},
	}, nil)
	urls, err := f.orch.AvailableURLs("fast_json")
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://example.com/r/fast_json-nif-2.15-x86_64-linux-gnu-0.4.1.tar.gz", urls[0].URL)
}

// TestEnsureInstalled_EndToEnd runs the flow against an HTTP server with the
// real cache, fetcher, verifier and extractor.
func TestEnsureInstalled_EndToEnd(t *testing.T) {
	p := testProject(t)
	p.Targets = []string{testTarget}

	srv := testutil.NewArtifactServer(t)
	p.BaseURL = srv.BaseURL()
	built := srv.Publish(t, metadata.ArtifactName{App: p.App, RuntimeVersion: testRuntime, Target: testTarget, Version: p.Version},
		map[string]string{"native/libfast_json.so": "elf bytes"})
	testutil.WriteManifest(t, p.ManifestPath, built)

	store := cache.NewStore(t.TempDir())
	fetcher := download.NewFetcher(download.Options{Proxy: &httpproxy.Config{}})
	orch := New(store, fetcher, nil, nil)

	installDir := t.TempDir()
	opts := InstallOptions{Host: testHost(), InstallDir: installDir, LoadFile: "native/libfast_json.so"}

	res, err := orch.EnsureInstalled(context.Background(), p, opts)
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.FileExists(t, filepath.Join(installDir, "native", "libfast_json.so"))
	assert.Equal(t, int64(1), srv.Hits())

	recordPath, err := store.MetadataPath(p.App)
	require.NoError(t, err)
	rec, err := metadata.Load(recordPath)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, testTarget, rec.Target)

	// A second run finds the installed file and never touches the network.
	res, err = orch.EnsureInstalled(context.Background(), p, opts)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.Downloaded)
	assert.Equal(t, int64(1), srv.Hits())
}

func TestEnsureInstalled_DefaultLoadFile(t *testing.T) {
	p := testProject(t)
	p.Targets = []string{testTarget}

	srv := testutil.NewArtifactServer(t)
	p.BaseURL = srv.BaseURL()
	built := srv.Publish(t, metadata.ArtifactName{App: p.App, RuntimeVersion: testRuntime, Target: testTarget, Version: p.Version},
		map[string]string{"libfast_json.so": "elf bytes"})
	testutil.WriteManifest(t, p.ManifestPath, built)

	orch := New(cache.NewStore(t.TempDir()), download.NewFetcher(download.Options{Proxy: &httpproxy.Config{}}), nil, nil)
	installDir := t.TempDir()
	opts := InstallOptions{Host: testHost(), InstallDir: installDir}

	res, err := orch.EnsureInstalled(context.Background(), p, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(installDir, "libfast_json.so"), res.InstalledPath)
	assert.NotEmpty(t, res.ArchivePath)

	res, err = orch.EnsureInstalled(context.Background(), p, opts)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.ArchivePath)
	assert.False(t, res.Downloaded)
	assert.Equal(t, int64(1), srv.Hits())
}
