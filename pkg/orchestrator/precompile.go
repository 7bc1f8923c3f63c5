package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/build"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/metadata"
)

// PrecompileAll builds, packages and checksums every target one at a time.
// Targets share the output directory and the process's compiler variables,
// so they are never built concurrently. The checksums of every packaged
// target are merged into the manifest even when some targets fail.
func (o *Orchestrator) PrecompileAll(ctx context.Context, p Project, opts PrecompileOptions) (map[string]Artifact, error) {
	if o.Builder == nil || o.Packager == nil {
		return nil, fmt.Errorf("builder is not configured")
	}
	if opts.Policy == nil {
		return nil, errors.New(errors.KindConfig, "precompile", p.App, fmt.Errorf("no compiler policy"))
	}

	targets := opts.Targets
	if len(targets) == 0 {
		targets = p.Targets
	}
	if len(targets) == 0 {
		return nil, errors.New(errors.KindConfig, "precompile", p.App, errors.ErrNoTargets)
	}

	artifacts := make(map[string]Artifact, len(targets))
	manifest := checksum.Manifest{}
	var errs []error

	for _, target := range targets {
		art, err := o.precompileTarget(ctx, p, opts, target)
		if err != nil {
			emit(o.Hooks, Event{Phase: "error", ID: target, Msg: err.Error()})
			errs = append(errs, err)
			if !opts.ContinueOnError {
				break
			}
			logger.Warn("Build failed, continuing with remaining targets", logger.Fields{"target": target, "error": err.Error()})
			continue
		}
		artifacts[target] = art
		manifest.Add(art.Path, art.Sum)
	}

	if len(manifest) > 0 {
		if err := checksum.Save(p.ManifestPath, checksum.Load(p.ManifestPath).Merge(manifest)); err != nil {
			errs = append(errs, err)
		}
	}

	emit(o.Hooks, Event{Phase: "done", Msg: fmt.Sprintf("%d/%d targets", len(artifacts), len(targets))})
	return artifacts, errors.Join(errs...)
}

func (o *Orchestrator) precompileTarget(ctx context.Context, p Project, opts PrecompileOptions, target string) (Artifact, error) {
	emit(o.Hooks, Event{Phase: "building", ID: target})

	if err := fsutil.ResetDir(opts.OutputDir); err != nil {
		return Artifact{}, errors.New(errors.KindIO, "clean output directory", opts.OutputDir, err)
	}

	env := opts.Policy.CompilerEnv(target)
	restore := build.ApplyEnv(env)
	defer restore()

	hookCtx := hooks.HookContext{
		AppName:     p.App,
		AppVersion:  p.Version,
		Target:      target,
		InstallPath: opts.OutputDir,
	}
	if err := o.runHook(hooks.PreBuild, hookCtx); err != nil {
		return Artifact{}, errors.New(errors.KindBuild, "pre-build hook", target, err)
	}

	if err := o.Builder.Build(ctx, build.Job{
		Target:     target,
		Args:       opts.Args,
		Env:        env,
		ProjectDir: opts.ProjectDir,
		OutputDir:  opts.OutputDir,
	}); err != nil {
		return Artifact{}, err
	}

	if err := o.runHook(hooks.PostBuild, hookCtx); err != nil {
		return Artifact{}, errors.New(errors.KindBuild, "post-build hook", target, err)
	}

	entries, err := os.ReadDir(opts.OutputDir)
	if err != nil || len(entries) == 0 {
		return Artifact{}, errors.New(errors.KindBuild, "build", target, errors.ErrEmptyBuildOutput).
			WithRemedy("nifpre precompile")
	}

	name := metadata.ArtifactName{
		App:            p.App,
		RuntimeVersion: opts.RuntimeVersion,
		Target:         target,
		Version:        p.Version,
	}
	archivePath := filepath.Join(opts.ArtifactDir, name.String())
	emit(o.Hooks, Event{Phase: "packaging", ID: target, Msg: archivePath})
	if err := o.pack(ctx, opts.OutputDir, archivePath); err != nil {
		return Artifact{}, errors.New(errors.KindIO, "package", target, err)
	}

	sum, err := checksum.Compute(archivePath)
	if err != nil {
		return Artifact{}, err
	}

	logger.Successf("Built %s for %s", name.String(), target)
	return Artifact{Target: target, Path: archivePath, Sum: sum}, nil
}

// pack stages the archive outside ArtifactDir and moves it into place, so a
// failed packaging never leaves a partial archive under a cache entry name.
func (o *Orchestrator) pack(ctx context.Context, outputDir, archivePath string) error {
	staging, err := os.MkdirTemp("", "nifpre-package-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	staged := filepath.Join(staging, filepath.Base(archivePath))
	if err := o.Packager.Create(ctx, outputDir, staged); err != nil {
		return err
	}
	return fsutil.Move(staged, archivePath)
}
