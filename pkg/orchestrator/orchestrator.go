// Package orchestrator composes target resolution, the artifact cache,
// downloads, checksum verification and extraction into the ensure-install
// flow, and drives the sequential multi-target build loop.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/archive"
	"github.com/cperrin88/nifpre/pkg/cache"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/metadata"
	"github.com/cperrin88/nifpre/pkg/platform"
)

type platformResolver struct{}

func (platformResolver) ResolveRuntime(d platform.Descriptor, conv platform.Convention, targets, runtimeVersions []string) (platform.Resolution, error) {
	return platform.ResolveRuntime(d, conv, targets, runtimeVersions)
}

type manifestVerifier struct{}

func (manifestVerifier) Verify(manifestPath, archivePath string) error {
	return checksum.Verify(checksum.Load(manifestPath), archivePath)
}

type fileMetadataStore struct{}

func (fileMetadataStore) Load(path string) (*metadata.Record, error) {
	return metadata.Load(path)
}

func (fileMetadataStore) Save(path string, rec *metadata.Record) (bool, error) {
	return metadata.Save(path, rec)
}

// New wires an Orchestrator to the filesystem-backed collaborators. builder
// and scripts may be nil when no build or hooks are needed.
func New(store *cache.Store, dl Fetcher, builder Builder, scripts HookRunner) *Orchestrator {
	am := archive.NewManager()
	return &Orchestrator{
		Resolver:  platformResolver{},
		Cache:     store,
		DL:        dl,
		Verifier:  manifestVerifier{},
		Installer: am,
		Packager:  am,
		Builder:   builder,
		Scripts:   scripts,
		Metadata:  fileMetadataStore{},
	}
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

func (o *Orchestrator) runHook(hookType hooks.HookType, ctx hooks.HookContext) error {
	if o.Scripts == nil {
		return nil
	}
	return o.Scripts.Execute(hookType, ctx)
}

// Resolve returns the target and runtime version for host.
func (o *Orchestrator) Resolve(p Project, host platform.Descriptor) (platform.Resolution, error) {
	if o.Resolver == nil {
		return platform.Resolution{}, fmt.Errorf("resolver is not configured")
	}
	return o.Resolver.ResolveRuntime(host, p.Convention, p.Targets, p.RuntimeVersions)
}

// EnsureInstalled makes sure the artifact for the host is present, verified
// and extracted. An already-installed load file ends the flow before any
// cache or network access.
func (o *Orchestrator) EnsureInstalled(ctx context.Context, p Project, opts InstallOptions) (*Result, error) {
	res := &Result{State: StateCheckLocal, LoadData: opts.LoadData}
	fail := func(state State, err error) (*Result, error) {
		res.State = StateFailed
		emit(o.Hooks, Event{Phase: "error", ID: res.Target, Msg: err.Error()})
		return res, &StageError{State: state, Err: err}
	}

	emit(o.Hooks, Event{Phase: "resolving", Msg: p.App})
	resolution, err := o.Resolve(p, opts.Host)
	if err != nil {
		return fail(StateCheckLocal, err)
	}
	res.Target = resolution.Target
	res.RuntimeVersion = resolution.RuntimeVersion

	loadFile := opts.LoadFile
	if loadFile == "" {
		loadFile = platform.LibraryFile(p.App, res.Target)
	}
	res.InstalledPath = filepath.Join(opts.InstallDir, loadFile)

	emit(o.Hooks, Event{Phase: string(StateCheckLocal), ID: res.Target, Msg: res.InstalledPath})
	if fsutil.Exists(res.InstalledPath) {
		logger.Debug("Artifact already installed", logger.Fields{"path": res.InstalledPath})
		res.State = StateDone
		emit(o.Hooks, Event{Phase: "done", ID: res.Target})
		return res, nil
	}

	if o.Cache == nil || o.DL == nil || o.Verifier == nil || o.Installer == nil {
		return fail(StateCheckCache, fmt.Errorf("orchestrator is not fully configured"))
	}

	res.State = StateCheckCache
	emit(o.Hooks, Event{Phase: string(StateCheckCache), ID: res.Target})
	res.ArchivePath = o.Cache.EntryPath(p.App, res.RuntimeVersion, res.Target, p.Version)
	if err := o.saveRecord(p, resolution, res.ArchivePath); err != nil {
		return fail(StateCheckCache, err)
	}

	if !o.Cache.Exists(res.ArchivePath) {
		res.State = StateDownload
		if err := o.download(ctx, p, resolution, res.ArchivePath); err != nil {
			return fail(StateDownload, err)
		}
		res.Downloaded = true
	}

	res.State = StateVerify
	emit(o.Hooks, Event{Phase: string(StateVerify), ID: res.Target, Msg: filepath.Base(res.ArchivePath)})
	if err := o.Verifier.Verify(p.ManifestPath, res.ArchivePath); err != nil {
		if errors.Is(err, errors.ErrChecksumMismatch) {
			// A truncated or corrupt entry must be fetched again next time.
			if rmErr := o.Cache.Remove(res.ArchivePath); rmErr != nil {
				logger.Warn("Cannot remove corrupt cache entry", logger.Fields{"path": res.ArchivePath, "error": rmErr.Error()})
			}
		}
		return fail(StateVerify, err)
	}

	res.State = StateInstall
	emit(o.Hooks, Event{Phase: string(StateInstall), ID: res.Target, Msg: opts.InstallDir})
	report, err := o.Installer.Extract(ctx, res.ArchivePath, opts.InstallDir)
	if err != nil {
		return fail(StateInstall, err)
	}
	if report != nil {
		res.Skipped = report.Skipped
	}

	if err := o.runHook(hooks.PostInstall, hooks.HookContext{
		AppName:     p.App,
		AppVersion:  p.Version,
		Target:      res.Target,
		ArchivePath: res.ArchivePath,
		InstallPath: opts.InstallDir,
	}); err != nil {
		return fail(StateInstall, err)
	}

	res.State = StateDone
	emit(o.Hooks, Event{Phase: "done", ID: res.Target})
	logger.Successf("Installed %s %s for %s", p.App, p.Version, res.Target)
	return res, nil
}

func (o *Orchestrator) download(ctx context.Context, p Project, resolution platform.Resolution, archivePath string) error {
	if _, err := o.Cache.Root(""); err != nil {
		return err
	}

	url := metadata.ArtifactName{
		App:            p.App,
		RuntimeVersion: resolution.RuntimeVersion,
		Target:         resolution.Target,
		Version:        p.Version,
	}.URL(p.BaseURL)
	emit(o.Hooks, Event{Phase: string(StateDownload), ID: resolution.Target, Msg: url})

	data, err := o.DL.FetchOne(ctx, url)
	if err != nil {
		return err
	}
	return o.Cache.Write(archivePath, data)
}

func (o *Orchestrator) saveRecord(p Project, resolution platform.Resolution, archivePath string) error {
	if o.Metadata == nil {
		return nil
	}
	path, err := o.Cache.MetadataPath(p.App)
	if err != nil {
		return err
	}
	written, err := o.Metadata.Save(path, &metadata.Record{
		App:             p.App,
		BaseURL:         p.BaseURL,
		Target:          resolution.Target,
		Targets:         p.Targets,
		Version:         p.Version,
		RuntimeVersion:  resolution.RuntimeVersion,
		RuntimeVersions: p.RuntimeVersions,
		CachedArchive:   filepath.Base(archivePath),
	})
	if err != nil {
		return err
	}
	if written {
		logger.Debug("Wrote metadata record", logger.Fields{"path": path})
	}
	return nil
}

// AvailableURLs lists candidate artifact URLs from the stored metadata
// record without contacting the host.
func (o *Orchestrator) AvailableURLs(app string) ([]metadata.URLEntry, error) {
	if o.Cache == nil || o.Metadata == nil {
		return nil, fmt.Errorf("orchestrator is not fully configured")
	}
	path, err := o.Cache.MetadataPath(app)
	if err != nil {
		return nil, err
	}
	rec, err := o.Metadata.Load(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New(errors.KindConfig, "list urls", app, errors.ErrNoMetadata).
			WithRemedy("nifpre install")
	}
	return rec.AvailableURLs()
}
