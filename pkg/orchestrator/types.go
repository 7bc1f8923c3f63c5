//go:generate mockgen -destination=./mocks/orchestrator.go . Resolver,Cache,Fetcher,Verifier,Installer,Packager,Builder,HookRunner,MetadataStore

package orchestrator

import (
	"context"

	"github.com/cperrin88/nifpre/pkg/archive"
	"github.com/cperrin88/nifpre/pkg/build"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/download"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/metadata"
	"github.com/cperrin88/nifpre/pkg/platform"
)

// Resolver picks the target and runtime version for a host.
type Resolver interface {
	ResolveRuntime(d platform.Descriptor, conv platform.Convention, targets, runtimeVersions []string) (platform.Resolution, error)
}

// Cache is the subset of the cache store used by the orchestrator.
type Cache interface {
	Root(subdir string) (string, error)
	EntryPath(app, runtimeVersion, target, version string) string
	Exists(path string) bool
	Write(path string, data []byte) error
	Remove(path string) error
	MetadataPath(app string) (string, error)
}

// Fetcher downloads artifacts.
type Fetcher interface {
	FetchOne(ctx context.Context, url string) ([]byte, error)
	FetchMany(ctx context.Context, urls []string, dir string, ignoreUnavailable bool) ([]download.Result, error)
}

// Verifier checks a cached archive against the checksum manifest at
// manifestPath.
type Verifier interface {
	Verify(manifestPath, archivePath string) error
}

// Installer extracts an archive into an install directory.
type Installer interface {
	Extract(ctx context.Context, archivePath, destRoot string) (*archive.Report, error)
}

// Packager turns a build output tree into an archive.
type Packager interface {
	Create(ctx context.Context, sourceDir, archivePath string) error
}

// Builder runs the external build for one target.
type Builder interface {
	Build(ctx context.Context, job build.Job) error
}

// HookRunner runs user hook scripts.
type HookRunner interface {
	Execute(hookType hooks.HookType, ctx hooks.HookContext) error
}

// MetadataStore persists the per-app resolution record.
type MetadataStore interface {
	Load(path string) (*metadata.Record, error)
	Save(path string, rec *metadata.Record) (bool, error)
}

// Orchestrator ties resolution, cache, download, verification and
// installation together, and drives the multi-target build loop.
type Orchestrator struct {
	Resolver  Resolver
	Cache     Cache
	DL        Fetcher
	Verifier  Verifier
	Installer Installer
	Packager  Packager
	Builder   Builder
	Scripts   HookRunner
	Metadata  MetadataStore
	Hooks     Hooks // Hooks for progress and event notifications
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // resolving|check-local|check-cache|download|verify|install|building|packaging|done|error
	ID    string // target
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Project identifies the application and the artifacts it publishes.
type Project struct {
	App             string
	Version         string
	BaseURL         string
	Convention      platform.Convention
	Targets         []string
	RuntimeVersions []string
	// ManifestPath is the checksum manifest file.
	ManifestPath string
}

// State is a step of the ensure-install flow.
type State string

// Ensure-install states.
const (
	StateCheckLocal State = "check-local"
	StateCheckCache State = "check-cache"
	StateDownload   State = "download"
	StateVerify     State = "verify"
	StateInstall    State = "install"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// InstallOptions control EnsureInstalled.
type InstallOptions struct {
	// Host describes the running system, including its runtime ABI version.
	Host platform.Descriptor
	// InstallDir is the directory the archive is extracted into.
	InstallDir string
	// LoadFile is the path, relative to InstallDir, the runtime loader
	// opens. Its presence short-circuits the whole flow. Empty means
	// platform.LibraryFile for the resolved target.
	LoadFile string
	// LoadData is returned untouched for the loader.
	LoadData string
}

// Result reports how EnsureInstalled ended.
type Result struct {
	State          State                  `json:"state" yaml:"state"`
	Target         string                 `json:"target" yaml:"target"`
	RuntimeVersion string                 `json:"runtime_version" yaml:"runtime_version"`
	ArchivePath    string                 `json:"archive_path" yaml:"archive_path"`
	InstalledPath  string                 `json:"installed_path" yaml:"installed_path"`
	LoadData       string                 `json:"load_data,omitempty" yaml:"load_data,omitempty"`
	Downloaded     bool                   `json:"downloaded" yaml:"downloaded"`
	Skipped        []archive.SkippedEntry `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// PrecompileOptions control PrecompileAll.
type PrecompileOptions struct {
	// Targets overrides Project.Targets when non-empty.
	Targets []string
	// RuntimeVersion is the runtime ABI version the archives are named for.
	RuntimeVersion string
	// ProjectDir is the working directory of the build command.
	ProjectDir string
	// OutputDir is cleaned before each target and packaged after it.
	OutputDir string
	// ArtifactDir receives the packaged archives. It must not be inside
	// OutputDir.
	ArtifactDir string
	Args        []string
	Policy      build.CompilerPolicy
	// ContinueOnError builds the remaining targets after a failure.
	ContinueOnError bool
}

// Artifact is one packaged build.
type Artifact struct {
	Target string       `json:"target" yaml:"target"`
	Path   string       `json:"path" yaml:"path"`
	Sum    checksum.Sum `json:"checksum" yaml:"checksum"`
}

// FetchOptions control FetchArtifacts and FetchChecksums.
type FetchOptions struct {
	// All fetches every target and runtime version. Otherwise only the
	// host's target with its compatible runtime versions is fetched.
	All bool
	// Host is consulted when All is false.
	Host platform.Descriptor
	// IgnoreUnavailable drops URLs that fail instead of failing the batch.
	// Host-only fetches are always lenient because older runtime versions
	// may not have been published.
	IgnoreUnavailable bool
}
