// Package platform turns facts about a host into canonical target strings
// and decides which precompiled runtime versions the host can load.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// OSFamily is the coarse OS family of a host.
type OSFamily string

const (
	FamilyUnix    OSFamily = "unix"
	FamilyWindows OSFamily = "windows"
)

// Descriptor holds raw and derived facts about a host. Arch, Vendor, OS and
// ABI are raw values; rendering a target normalizes them for a Convention.
type Descriptor struct {
	Family            OSFamily `yaml:"family" json:"family"`
	Arch              string   `yaml:"arch" json:"arch"`
	Vendor            string   `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	OS                string   `yaml:"os" json:"os"`
	OSVersion         string   `yaml:"os_version,omitempty" json:"os_version,omitempty"`
	ABI               string   `yaml:"abi,omitempty" json:"abi,omitempty"`
	WordSize          int      `yaml:"word_size" json:"word_size"`
	RuntimeABIVersion string   `yaml:"runtime_abi_version,omitempty" json:"runtime_abi_version,omitempty"`
}

// String returns the raw descriptor joined with hyphens.
func (d Descriptor) String() string {
	return joinNonEmpty(d.Arch, d.Vendor, d.OS+d.OSVersion, d.ABI)
}

// muslLoaderGlob locates the musl dynamic loader on linux hosts.
var muslLoaderGlob = "/lib/ld-musl-*"

// Detect describes the running host. runtimeVersion is the native-extension
// ABI version the host process requires.
func Detect(runtimeVersion string) Descriptor {
	d := Descriptor{
		Family:            FamilyUnix,
		Arch:              runtime.GOARCH,
		OS:                runtime.GOOS,
		WordSize:          wordSizeFor(runtime.GOARCH),
		RuntimeABIVersion: runtimeVersion,
	}

	switch runtime.GOOS {
	case OSWindows:
		d.Family = FamilyWindows
	case OSDarwin:
		d.Vendor = VendorApple
	case OSLinux:
		d.Vendor = VendorUnknown
		d.ABI = ABIGNU
		if isMusl() {
			d.ABI = ABIMusl
		}
	default:
		d.Vendor = VendorUnknown
	}
	return d
}

func isMusl() bool {
	matches, err := filepath.Glob(muslLoaderGlob)
	return err == nil && len(matches) > 0
}

// ParseSystemArchitecture splits a system architecture string such as
// "x86_64-pc-linux-gnu", "aarch64-apple-darwin23.1.0", "x86_64-linux-musl"
// or "win32" into a Descriptor.
func ParseSystemArchitecture(s string, wordSize int) Descriptor {
	s = strings.ToLower(strings.TrimSpace(s))
	d := Descriptor{Family: FamilyUnix, WordSize: wordSize}

	if s == "win32" || s == "win64" {
		d.Family = FamilyWindows
		d.OS = OSWindows
		return d
	}

	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		d.Arch = parts[0]
	case 2:
		d.Arch, d.OS = parts[0], parts[1]
	case 3:
		if knownOS[stripOSVersion(parts[1])] {
			d.Arch, d.OS, d.ABI = parts[0], parts[1], parts[2]
		} else {
			d.Arch, d.Vendor, d.OS = parts[0], parts[1], parts[2]
		}
	default:
		d.Arch, d.Vendor, d.OS = parts[0], parts[1], parts[2]
		d.ABI = strings.Join(parts[3:], "-")
	}

	if name := stripOSVersion(d.OS); name != d.OS {
		d.OSVersion = strings.TrimPrefix(d.OS, name)
		d.OS = name
	}
	if isWindowsOS(d.OS) {
		d.Family = FamilyWindows
	}
	if d.WordSize == 0 {
		d.WordSize = wordSizeFor(d.Arch)
	}
	return d
}

// LibraryFile is the file name the runtime loader opens for app's native
// library built for target.
func LibraryFile(app, target string) string {
	if ParseTarget(target).Family == FamilyWindows {
		return app + ".dll"
	}
	return "lib" + app + ".so"
}

// ParseTarget builds a Descriptor that renders back to target.
func ParseTarget(target string) Descriptor {
	return ParseSystemArchitecture(target, 0)
}

// Overrides replace raw descriptor fields before normalization.
type Overrides struct {
	Arch   string
	Vendor string
	OS     string
	ABI    string
}

// OverridesFromEnv reads TARGET_ARCH, TARGET_VENDOR, TARGET_OS and
// TARGET_ABI. A nil getenv means os.Getenv.
func OverridesFromEnv(getenv func(string) string) Overrides {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Overrides{
		Arch:   getenv(EnvTargetArch),
		Vendor: getenv(EnvTargetVendor),
		OS:     getenv(EnvTargetOS),
		ABI:    getenv(EnvTargetABI),
	}
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool {
	return o == Overrides{}
}

// ApplyOverrides returns d with every non-empty override applied. An OS
// override also re-derives the OS family and version.
func ApplyOverrides(d Descriptor, o Overrides) Descriptor {
	if o.Arch != "" {
		d.Arch = o.Arch
		if ws := wordSizeFor(o.Arch); ws != 0 {
			d.WordSize = ws
		}
	}
	if o.Vendor != "" {
		d.Vendor = o.Vendor
	}
	if o.OS != "" {
		name := stripOSVersion(strings.ToLower(o.OS))
		d.OSVersion = strings.TrimPrefix(strings.ToLower(o.OS), name)
		d.OS = name
		d.Family = FamilyUnix
		if isWindowsOS(name) {
			d.Family = FamilyWindows
		}
	}
	if o.ABI != "" {
		d.ABI = o.ABI
	}
	return d
}

// stripOSVersion drops a trailing version from an OS token, so
// "darwin23.1.0" becomes "darwin" and "freebsd14.0" becomes "freebsd".
func stripOSVersion(osName string) string {
	i := strings.IndexFunc(osName, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return osName
	}
	return osName[:i]
}

func isWindowsOS(osName string) bool {
	return osName == OSWindows || osName == "win" || strings.HasPrefix(osName, "mingw") ||
		strings.HasPrefix(osName, "cygwin") || strings.HasPrefix(osName, "win32")
}

func isApple(d Descriptor) bool {
	osName := strings.ToLower(d.OS)
	return osName == OSDarwin || osName == OSMacOS || osName == "ios" ||
		strings.EqualFold(d.Vendor, VendorApple)
}

// wordSizeFor returns the pointer width in bytes for an architecture, or 0
// when it is not known.
func wordSizeFor(arch string) int {
	switch strings.ToLower(arch) {
	case "amd64", "x64", ArchX8664, "arm64", ArchAArch64, ArchRISCV64,
		"ppc64", "ppc64le", "s390x", "mips64", "mips64le", "loong64":
		return 8
	case "386", "i386", "i486", "i586", ArchI686, ArchX86, ArchARM, "armv7", "armv6",
		"mips", "mipsle", "wasm32":
		return 4
	default:
		return 0
	}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "-")
}

// Current returns the detected host descriptor with environment overrides
// applied. It is a convenience for CLI callers.
func Current(runtimeVersion string, getenv func(string) string) Descriptor {
	return ApplyOverrides(Detect(runtimeVersion), OverridesFromEnv(getenv))
}

// Describe formats the descriptor for diagnostics.
func Describe(d Descriptor) string {
	return fmt.Sprintf("%s (family=%s word_size=%d runtime=%s)", d.String(), d.Family, d.WordSize, d.RuntimeABIVersion)
}
