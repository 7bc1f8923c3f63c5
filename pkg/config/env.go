package config

import (
	"os"
	"strconv"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/fsutil"
)

// Environment variables that override the project file.
const (
	EnvCacheDir       = fsutil.CacheDirEnv
	EnvAppName        = "NIFPRE_APP_NAME"
	EnvAppVersion     = "NIFPRE_APP_VERSION"
	EnvBaseURL        = "NIFPRE_BASE_URL"
	EnvTargets        = "NIFPRE_TARGETS"
	EnvAlwaysCross    = "NIFPRE_ALWAYS_CROSS"
	EnvRuntimeVersion = "NIFPRE_RUNTIME_VERSION"
	EnvLogLevel       = "NIFPRE_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. Unset or empty variables
// leave the field alone. A nil getenv means os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	set := func(env string, dst *string) {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}
	set(EnvCacheDir, &c.Settings.CacheDir)
	set(EnvAppName, &c.App.Name)
	set(EnvAppVersion, &c.App.Version)
	set(EnvBaseURL, &c.App.BaseURL)
	set(EnvRuntimeVersion, &c.Targets.RuntimeVersion)
	set(EnvLogLevel, &c.Settings.LogLevel)

	if v := getenv(EnvTargets); v != "" {
		c.Targets.Supported = splitList(v)
	}
	if v := getenv(EnvAlwaysCross); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warnf("Ignoring %s=%q: not a boolean", EnvAlwaysCross, v)
		} else {
			c.Build.AlwaysCross = b
		}
	}
}
