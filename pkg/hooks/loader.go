package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cperrin88/nifpre/pkg/errors"
)

// HookFileExtension is the extension of hook scripts found by LoadFromDir.
const HookFileExtension = ".tengo"

// LoadFromConfig registers the scripts named in paths. Relative paths are
// resolved against baseDir; empty paths are skipped.
func LoadFromConfig(manager HookManager, paths map[HookType]string, baseDir string) error {
	for hookType, path := range paths {
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return errors.New(errors.KindConfig, "load hook", path,
				fmt.Errorf("%w: %s: %w", errors.ErrHookLoad, hookType, err))
		}
		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return errors.New(errors.KindConfig, "load hook", path, err)
		}
	}
	return nil
}

// LoadFromDir registers every <hook-type>.tengo script in dir. A missing
// directory is not an error; files with other names are ignored.
func LoadFromDir(manager HookManager, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read hooks directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
			continue
		}

		hookType := HookType(strings.TrimSuffix(entry.Name(), HookFileExtension))
		if !hookType.Valid() {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(hookPath)
		if err != nil {
			return errors.Wrapf(err, "error reading hook file %s", hookPath)
		}
		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return errors.Wrapf(err, "error adding hook %s", hookType)
		}
	}

	return nil
}

// HookTemplate generates a starter script for a hook type.
func HookTemplate(hookType HookType) string {
	switch hookType {
	case PreBuild:
		return `// Pre-build hook
// Runs before the build command for each target.
// Available variables:
// - appName: string
// - appVersion: string
// - target: string - the target being built
// - installPath: string - the build output directory
// Set err to a non-empty string to abort the build of this target.

/*
err := ""
if target == "x86_64-windows-gnu" {
    err = "windows builds are disabled"
}
*/`

	case PostBuild:
		return `// Post-build hook
// Runs after a successful build, before the output is packaged.
// Available variables: same as pre-build

/*
fmt := import("fmt")
fmt.println("built " + appName + " for " + target)
*/`

	case PostInstall:
		return `// Post-install hook
// Runs after an artifact has been extracted.
// Available variables: appName, appVersion, target, archivePath, installPath

/*
os := import("os")
os.chmod(installPath + "/" + appName + ".so", 0755)
*/`

	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
