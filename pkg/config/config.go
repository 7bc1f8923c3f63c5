// Package config loads, validates and saves the nifpre project file. The
// file names the application, the targets it ships for, how to build them
// and where artifacts are cached and installed.
package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
	"github.com/cperrin88/nifpre/pkg/hooks"
	"github.com/cperrin88/nifpre/pkg/platform"
)

// Config represents the project configuration.
type Config struct {
	App      AppConfig     `yaml:"app"`
	Targets  TargetsConfig `yaml:"targets"`
	Build    BuildConfig   `yaml:"build"`
	Hooks    HooksConfig   `yaml:"hooks"`
	Settings Settings      `yaml:"settings"`
}

// AppConfig identifies the application whose artifacts are managed.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	BaseURL string `yaml:"base_url"`
	// LoadFile is the library path inside the installed tree handed to
	// the runtime loader. Empty means the platform library name for the
	// resolved target, lib<name>.so or <name>.dll.
	LoadFile string `yaml:"load_file,omitempty"`
	// LoadData is passed through to the loader untouched.
	LoadData string `yaml:"load_data,omitempty"`
}

// TargetsConfig lists what artifacts exist for the application.
type TargetsConfig struct {
	Convention      string   `yaml:"convention"`
	Supported       []string `yaml:"supported"`
	RuntimeVersions []string `yaml:"runtime_versions"`
	// RuntimeVersion is the host runtime's ABI version. When empty the
	// newest entry of RuntimeVersions is assumed.
	RuntimeVersion string `yaml:"runtime_version,omitempty"`
}

// BuildConfig drives the precompile loop.
type BuildConfig struct {
	Command         []string `yaml:"command"`
	OutputDir       string   `yaml:"output_dir"`
	AlwaysCross     bool     `yaml:"always_cross"`
	CrossCompiler   string   `yaml:"cross_compiler"`
	NativeCC        string   `yaml:"native_cc,omitempty"`
	NativeCXX       string   `yaml:"native_cxx,omitempty"`
	ContinueOnError bool     `yaml:"continue_on_error"`
}

// HooksConfig holds hook script paths relative to the project directory.
// Scripts named explicitly replace same-typed scripts found in Dir.
type HooksConfig struct {
	// Dir holds <hook-type>.tengo scripts.
	Dir         string `yaml:"dir,omitempty"`
	PreBuild    string `yaml:"pre_build,omitempty"`
	PostBuild   string `yaml:"post_build,omitempty"`
	PostInstall string `yaml:"post_install,omitempty"`
}

// Paths maps hook types to their configured script paths.
func (h HooksConfig) Paths() map[hooks.HookType]string {
	return map[hooks.HookType]string{
		hooks.PreBuild:    h.PreBuild,
		hooks.PostBuild:   h.PostBuild,
		hooks.PostInstall: h.PostInstall,
	}
}

// Settings represents general application settings.
type Settings struct {
	CacheDir    string        `yaml:"cache_dir,omitempty"`
	InstallDir  string        `yaml:"install_dir,omitempty"`
	ProjectDir  string        `yaml:"project_dir,omitempty"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent,omitempty"`
}

// Default configuration values.
const (
	DefaultConfigFile    = "nifpre.yaml"
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultOutputDir     = "priv/native"
	DefaultInstallDir    = "priv"
	DefaultCrossCompiler = "zig"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults. The app
// section is left empty; Validate rejects it until it is filled in.
func DefaultConfig() *Config {
	return &Config{
		Targets: TargetsConfig{
			Convention: string(platform.ConventionZig),
		},
		Build: BuildConfig{
			OutputDir:     DefaultOutputDir,
			CrossCompiler: DefaultCrossCompiler,
		},
		Settings: Settings{
			InstallDir:  DefaultInstallDir,
			ProjectDir:  ".",
			LogLevel:    DefaultLogLevel,
			LogFormat:   DefaultLogFormat,
			HTTPTimeout: DefaultHTTPTimeout,
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("Config file not found, using defaults", logger.Fields{"path": absPath})
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader parses YAML, fills defaults and checks the settings
// section. The project sections are checked by Validate once a command
// needs them.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.New(errors.KindConfig, "parse config", "", fmt.Errorf("%w: %w", errors.ErrConfigParse, err))
	}

	config.applyDefaults()

	if err := validateSettings(config.Settings); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig writes the configuration atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}

	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}
	if err := fsutil.WriteFileAtomic(absPath, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var sb strings.Builder
	encoder := yaml.NewEncoder(&sb)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return []byte(sb.String()), nil
}

// Validate checks the project sections and settings. It runs before any
// network or filesystem work, so every failure is KindConfig.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(errors.KindConfig, "validate config", "", errors.ErrConfigValidation)
	}
	if err := validateApp(c.App); err != nil {
		return err
	}
	if err := validateTargets(c.Targets); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func invalid(field string, err error) error {
	return errors.New(errors.KindConfig, "validate config", field, err)
}

func validateApp(app AppConfig) error {
	if app.Name == "" {
		return invalid("app.name", errors.ErrMissingAppName)
	}
	if _, err := semver.StrictNewVersion(app.Version); err != nil {
		return invalid("app.version", fmt.Errorf("%w: %q: %w", errors.ErrInvalidAppVersion, app.Version, err))
	}
	if app.BaseURL == "" {
		return invalid("app.base_url", errors.ErrMissingBaseURL)
	}
	u, err := url.Parse(app.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("app.base_url", fmt.Errorf("%w: %q (expected an http or https URL)", errors.ErrInvalidURL, app.BaseURL))
	}
	return nil
}

func validateTargets(t TargetsConfig) error {
	if _, err := platform.ParseConvention(t.Convention); err != nil {
		return invalid("targets.convention", err)
	}
	if len(t.Supported) == 0 {
		return invalid("targets.supported", errors.ErrNoTargets)
	}
	if len(t.RuntimeVersions) == 0 {
		return invalid("targets.runtime_versions", errors.ErrNoRuntimeVersions)
	}
	for _, v := range t.RuntimeVersions {
		if _, err := version.NewVersion(v); err != nil {
			return invalid("targets.runtime_versions", fmt.Errorf("%w: %q", errors.ErrInvalidRuntimeVersion, v))
		}
	}
	if t.RuntimeVersion != "" {
		if _, err := version.NewVersion(t.RuntimeVersion); err != nil {
			return invalid("targets.runtime_version", fmt.Errorf("%w: %q", errors.ErrInvalidRuntimeVersion, t.RuntimeVersion))
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return invalid("settings.http_timeout", errors.ErrHTTPTimeoutInvalid)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return invalid("settings.log_level", fmt.Errorf("%w: %q", errors.ErrInvalidLogLevel, s.LogLevel))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(s.LogFormat)] {
		return invalid("settings.log_format", fmt.Errorf("%w: %q", errors.ErrInvalidLogFormat, s.LogFormat))
	}
	return nil
}

// RuntimeVersion returns the configured host runtime version, or the newest
// supported one when unset.
func (c *Config) RuntimeVersion() string {
	if c.Targets.RuntimeVersion != "" {
		return c.Targets.RuntimeVersion
	}
	var newest *version.Version
	for _, raw := range c.Targets.RuntimeVersions {
		v, err := version.NewVersion(raw)
		if err != nil {
			continue
		}
		if newest == nil || v.GreaterThan(newest) {
			newest = v
		}
	}
	if newest == nil {
		return ""
	}
	return newest.Original()
}

// Convention returns the parsed target convention.
func (c *Config) Convention() platform.Convention {
	conv, err := platform.ParseConvention(c.Targets.Convention)
	if err != nil {
		return platform.ConventionZig
	}
	return conv
}

// ProjectPath resolves p against the project directory.
func (c *Config) ProjectPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Settings.ProjectDir, p)
}

// GetDefaultConfigPath returns the project file in the working directory.
func GetDefaultConfigPath() string {
	return DefaultConfigFile
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Targets.Convention == "" {
		c.Targets.Convention = defaults.Targets.Convention
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = defaults.Build.OutputDir
	}
	if c.Build.CrossCompiler == "" {
		c.Build.CrossCompiler = defaults.Build.CrossCompiler
	}
	if c.Settings.InstallDir == "" {
		c.Settings.InstallDir = defaults.Settings.InstallDir
	}
	if c.Settings.ProjectDir == "" {
		c.Settings.ProjectDir = defaults.Settings.ProjectDir
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = defaults.Settings.LogFormat
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
}
