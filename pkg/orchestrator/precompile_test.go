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

	"github.com/cperrin88/nifpre/pkg/archive"
	"github.com/cperrin88/nifpre/pkg/build"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/hooks"
	ocmocks "github.com/cperrin88/nifpre/pkg/orchestrator/mocks"
)

type precompileFixture struct {
	builder *ocmocks.MockBuilder
	scripts *ocmocks.MockHookRunner
	orch    *Orchestrator
	opts    PrecompileOptions
	project Project
}

func newPrecompileFixture(t *testing.T, targets ...string) *precompileFixture {
	ctrl := gomock.NewController(t)
	root := t.TempDir()
	f := &precompileFixture{
		builder: ocmocks.NewMockBuilder(ctrl),
		scripts: ocmocks.NewMockHookRunner(ctrl),
	}
	f.orch = &Orchestrator{
		Builder:  f.builder,
		Packager: archive.NewManager(),
		Scripts:  f.scripts,
	}
	f.project = Project{
		App:          "fast_json",
		Version:      "0.4.1",
		Targets:      targets,
		ManifestPath: filepath.Join(root, "checksum-fast_json.yaml"),
	}
	f.opts = PrecompileOptions{
		RuntimeVersion: "2.16",
		ProjectDir:     root,
		OutputDir:      filepath.Join(root, "out"),
		ArtifactDir:    filepath.Join(root, "artifacts"),
		Policy:         build.CrossPolicy{HostTarget: "x86_64-linux-gnu", HostOS: "linux"},
	}
	f.scripts.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return f
}

// writeOutput simulates a build that drops one library into the output dir.
func writeOutput(job build.Job) error {
	return os.WriteFile(filepath.Join(job.OutputDir, "lib-"+job.Target+".so"), []byte("built for "+job.Target), 0o644)
}

func TestPrecompileAll_BuildsEveryTarget(t *testing.T) {
	f := newPrecompileFixture(t, "x86_64-linux-gnu", "aarch64-linux-gnu")
	t.Setenv(build.EnvCC, "host-cc")

	var seenCC []string
	f.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job build.Job) error {
			seenCC = append(seenCC, os.Getenv(build.EnvCC))
			assert.Equal(t, job.Env.CC, os.Getenv(build.EnvCC))
			// The output dir is clean before every target.
			entries, err := os.ReadDir(job.OutputDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
			return writeOutput(job)
		}).Times(2)

	artifacts, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, []string{"gcc", "zig cc -target aarch64-linux-gnu"}, seenCC)
	assert.Equal(t, "host-cc", os.Getenv(build.EnvCC), "compiler variables are restored")

	art := artifacts["aarch64-linux-gnu"]
	assert.Equal(t, filepath.Join(f.opts.ArtifactDir, "fast_json-nif-2.16-aarch64-linux-gnu-0.4.1.tar.gz"), art.Path)
	assert.Equal(t, checksum.AlgorithmSHA256, art.Sum.Algorithm)

	manifest := checksum.Load(f.project.ManifestPath)
	assert.Len(t, manifest, 2)
	require.NoError(t, checksum.Verify(manifest, art.Path))
}

func TestPrecompileAll_StrictStopsAtFirstFailure(t *testing.T) {
	f := newPrecompileFixture(t, "x86_64-linux-gnu", "aarch64-linux-gnu", "aarch64-macos")
	t.Setenv(build.EnvCC, "")
	require.NoError(t, os.Unsetenv(build.EnvCC))

	gomock.InOrder(
		f.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, job build.Job) error { return writeOutput(job) }),
		f.builder.EXPECT().Build(gomock.Any(), gomock.Any()).Return(
			errors.New(errors.KindBuild, "build", "aarch64-linux-gnu", fmt.Errorf("%w: exit status 2", errors.ErrBuildFailed))),
	)

	artifacts, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBuildFailed)
	assert.Len(t, artifacts, 1)

	_, present := os.LookupEnv(build.EnvCC)
	assert.False(t, present, "CC is unset again after a failed build")

	manifest := checksum.Load(f.project.ManifestPath)
	assert.Len(t, manifest, 1, "the successful target's checksum is kept")
}

func TestPrecompileAll_ContinueOnError(t *testing.T) {
	f := newPrecompileFixture(t, "x86_64-linux-gnu", "aarch64-linux-gnu", "aarch64-macos")
	f.opts.ContinueOnError = true

	f.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job build.Job) error {
			if job.Target == "aarch64-linux-gnu" {
				return errors.New(errors.KindBuild, "build", job.Target, errors.ErrBuildFailed)
			}
			return writeOutput(job)
		}).Times(3)

	artifacts, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	require.Error(t, err)
	assert.Equal(t, errors.KindBuild, errors.KindOf(err))
	assert.Len(t, artifacts, 2)
	assert.Contains(t, artifacts, "aarch64-macos")
}

func TestPrecompileAll_EmptyOutputFails(t *testing.T) {
	f := newPrecompileFixture(t, "x86_64-linux-gnu")
	f.builder.EXPECT().Build(gomock.Any(), gomock.Any()).Return(nil)

	_, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptyBuildOutput)
	assert.NoFileExists(t, f.project.ManifestPath)
}

func TestPrecompileAll_PreBuildHookAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newPrecompileFixture(t, "x86_64-linux-gnu")
	scripts := ocmocks.NewMockHookRunner(ctrl)
	f.orch.Scripts = scripts
	scripts.EXPECT().Execute(hooks.PreBuild, gomock.Any()).Return(fmt.Errorf("%w: disabled", errors.ErrHookScript))

	_, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHookScript)
	assert.Equal(t, errors.KindBuild, errors.KindOf(err))
}

func TestPrecompileAll_Configuration(t *testing.T) {
	f := newPrecompileFixture(t)

	_, err := f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	assert.ErrorIs(t, err, errors.ErrNoTargets)

	f.project.Targets = []string{"x86_64-linux-gnu"}
	f.opts.Policy = nil
	_, err = f.orch.PrecompileAll(context.Background(), f.project, f.opts)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))

	_, err = (&Orchestrator{}).PrecompileAll(context.Background(), f.project, f.opts)
	assert.Error(t, err)
}
