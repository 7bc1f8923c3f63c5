// Package hooks runs user-supplied Tengo scripts around the build and
// install steps.
package hooks

// HookType names the point in the workflow at which a script runs.
type HookType string

// Supported hook types.
const (
	PreBuild    HookType = "pre-build"
	PostBuild   HookType = "post-build"
	PostInstall HookType = "post-install"
)

// Types returns the supported hook types in execution order.
func Types() []HookType {
	return []HookType{PreBuild, PostBuild, PostInstall}
}

// Valid reports whether t is a supported hook type.
func (t HookType) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Hook is a script bound to a hook type.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext is exposed to scripts as appName, appVersion, target,
// archivePath and installPath, plus one global per entry in Vars.
type HookContext struct {
	AppName     string
	AppVersion  string
	Target      string
	ArchivePath string
	InstallPath string
	Vars        map[string]interface{}
}
