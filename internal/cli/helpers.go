package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/build"
	"github.com/cperrin88/nifpre/pkg/cache"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/config"
	"github.com/cperrin88/nifpre/pkg/download"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/orchestrator"
	"github.com/cperrin88/nifpre/pkg/platform"
)

// These variables will be set by the main package.
var (
	ConfigPath   *string
	LogLevel     *string
	LogFormat    *string
	OutputFormat *string
)

// Getenv is the environment lookup used by every command.
var Getenv = os.Getenv

// loadConfig reads the project file, applies environment overrides and
// initializes logging from the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv(Getenv)

	if LogLevel != nil && *LogLevel != "" {
		cfg.Settings.LogLevel = *LogLevel
	}
	if LogFormat != nil && *LogFormat != "" {
		cfg.Settings.LogFormat = *LogFormat
	}
	logger.InitLogger(cfg.Settings.LogLevel, logger.ParseFormat(cfg.Settings.LogFormat))
	return cfg, nil
}

// loadProjectConfig is loadConfig plus full validation, for commands that
// resolve, fetch or build.
func loadProjectConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}
	return config.GetDefaultConfigPath()
}

func projectFromConfig(cfg *config.Config) orchestrator.Project {
	return orchestrator.Project{
		App:             cfg.App.Name,
		Version:         cfg.App.Version,
		BaseURL:         cfg.App.BaseURL,
		Convention:      cfg.Convention(),
		Targets:         cfg.Targets.Supported,
		RuntimeVersions: cfg.Targets.RuntimeVersions,
		ManifestPath:    checksum.ManifestPath(cfg.Settings.ProjectDir, cfg.App.Name),
	}
}

// hostDescriptor describes this machine, with TARGET_* overrides applied.
func hostDescriptor(cfg *config.Config) platform.Descriptor {
	return platform.Current(cfg.RuntimeVersion(), Getenv)
}

func cacheStore(cfg *config.Config) (*cache.Store, error) {
	if cfg.Settings.CacheDir != "" {
		return cache.NewStore(cfg.Settings.CacheDir), nil
	}
	return cache.NewDefaultStore(Getenv)
}

// newOrchestrator wires the filesystem and HTTP collaborators. builder may
// be nil for commands that never build.
func newOrchestrator(cfg *config.Config, builder orchestrator.Builder) (*orchestrator.Orchestrator, error) {
	store, err := cacheStore(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := download.NewFetcher(download.Options{
		Timeout:   cfg.Settings.HTTPTimeout,
		UserAgent: cfg.Settings.UserAgent,
	})

	scripts := hooks.NewHookManager()
	if cfg.Hooks.Dir != "" {
		if err := hooks.LoadFromDir(scripts, cfg.ProjectPath(cfg.Hooks.Dir)); err != nil {
			return nil, err
		}
	}
	if err := hooks.LoadFromConfig(scripts, cfg.Hooks.Paths(), cfg.Settings.ProjectDir); err != nil {
		return nil, err
	}

	orch := orchestrator.New(store, fetcher, builder, scripts)
	orch.Hooks = progressHooks()
	return orch, nil
}

func progressHooks() orchestrator.Hooks {
	return orchestrator.Hooks{OnEvent: func(e orchestrator.Event) {
		fields := logger.Fields{"phase": e.Phase}
		if e.ID != "" {
			fields["target"] = e.ID
		}
		if e.Msg != "" {
			fields["detail"] = e.Msg
		}
		logger.Debug("Progress", fields)
	}}
}

func compilerPolicy(cfg *config.Config, host platform.Descriptor) build.CompilerPolicy {
	return build.CrossPolicy{
		Compiler:    cfg.Build.CrossCompiler,
		AlwaysCross: cfg.Build.AlwaysCross,
		HostTarget:  platform.Render(host, cfg.Convention()),
		NativeCC:    cfg.Build.NativeCC,
		NativeCXX:   cfg.Build.NativeCXX,
	}
}

func installDir(cfg *config.Config) string {
	return cfg.ProjectPath(cfg.Settings.InstallDir)
}

func outputDir(cfg *config.Config) string {
	return filepath.Clean(cfg.ProjectPath(cfg.Build.OutputDir))
}

func outputFormat() string {
	if OutputFormat != nil && *OutputFormat != "" {
		return *OutputFormat
	}
	return OutputText
}

// writeStructured prints v as JSON or YAML. It reports false for text
// output so the caller prints its own table.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch outputFormat() {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(config.YAMLIndent)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}
