package platform

import (
	"fmt"
	"strings"

	"github.com/cperrin88/nifpre/pkg/errors"
)

// Convention is a target-triple naming scheme.
type Convention string

const (
	// ConventionZig renders arch-os[-abi], e.g. "aarch64-macos",
	// "x86_64-linux-gnu", "x86_64-windows-gnu".
	ConventionZig Convention = "zig"
	// ConventionRust renders arch-vendor-os[-abi], e.g.
	// "aarch64-apple-darwin", "x86_64-unknown-linux-gnu",
	// "x86_64-pc-windows-msvc".
	ConventionRust Convention = "rust"
	// ConventionGNU renders arch-os-abi for linux, arch-apple-darwin for
	// Apple hosts and arch-windows-msvc for windows.
	ConventionGNU Convention = "gnu"
)

// Conventions returns every supported convention.
func Conventions() []Convention {
	return []Convention{ConventionZig, ConventionRust, ConventionGNU}
}

// ParseConvention validates a convention name. An empty name means zig.
func ParseConvention(name string) (Convention, error) {
	switch Convention(strings.ToLower(strings.TrimSpace(name))) {
	case "", ConventionZig:
		return ConventionZig, nil
	case ConventionRust:
		return ConventionRust, nil
	case ConventionGNU:
		return ConventionGNU, nil
	default:
		return "", fmt.Errorf("%w: %q (expected one of zig, rust, gnu)", errors.ErrInvalidConvention, name)
	}
}

// Render turns a descriptor into a canonical target for conv. Windows
// descriptors are synthesized from the word size; use Resolve to honour a
// raw windows triple that already matches a supported target.
func Render(d Descriptor, conv Convention) string {
	if d.Family == FamilyWindows {
		return renderWindows(d, conv)
	}
	return renderUnix(d, conv)
}

// RenderRaw joins the unnormalized fields the convention cares about.
func RenderRaw(d Descriptor, conv Convention) string {
	osName := d.OS + d.OSVersion
	if conv == ConventionRust {
		return joinNonEmpty(d.Arch, d.Vendor, osName, d.ABI)
	}
	return joinNonEmpty(d.Arch, osName, d.ABI)
}

func renderUnix(d Descriptor, conv Convention) string {
	apple := isApple(d)
	arch := NormalizeArch(d.Arch, apple, conv)
	osName := NormalizeOS(d.OS)
	abi := strings.ToLower(d.ABI)
	if abi == "" && osName == OSLinux {
		abi = ABIGNU
	}

	switch conv {
	case ConventionRust:
		if apple {
			return joinNonEmpty(arch, VendorApple, OSDarwin)
		}
		vendor := strings.ToLower(d.Vendor)
		if vendor == "" || vendor == VendorPC {
			vendor = VendorUnknown
		}
		return joinNonEmpty(arch, vendor, osName, abi)
	case ConventionGNU:
		if apple {
			return joinNonEmpty(arch, VendorApple, OSDarwin)
		}
		return joinNonEmpty(arch, osName, abi)
	default:
		if apple {
			return joinNonEmpty(arch, OSMacOS)
		}
		return joinNonEmpty(arch, osName, abi)
	}
}

func renderWindows(d Descriptor, conv Convention) string {
	arch := ArchX8664
	if d.WordSize == 4 {
		arch = ArchI686
		if conv == ConventionZig {
			arch = ArchX86
		}
	}

	abi := strings.ToLower(d.ABI)
	switch conv {
	case ConventionRust:
		if abi == "" {
			abi = ABIMSVC
		}
		vendor := strings.ToLower(d.Vendor)
		if vendor == "" {
			vendor = VendorPC
		}
		return joinNonEmpty(arch, vendor, OSWindows, abi)
	case ConventionGNU:
		if abi == "" {
			abi = ABIMSVC
		}
		return joinNonEmpty(arch, OSWindows, abi)
	default:
		if abi == "" {
			abi = ABIGNU
		}
		return joinNonEmpty(arch, OSWindows, abi)
	}
}

// NormalizeArch maps architecture synonyms to the convention's spelling.
// Apple hosts report "arm" for 64-bit ARM, so apple rewrites it to aarch64.
func NormalizeArch(arch string, apple bool, conv Convention) string {
	arch = strings.ToLower(arch)
	switch arch {
	case "amd64", "x64", ArchX8664:
		return ArchX8664
	case "arm64", ArchAArch64:
		return ArchAArch64
	case ArchARM:
		if apple {
			return ArchAArch64
		}
		return ArchARM
	case "386", "i386", "i486", "i586", ArchI686, ArchX86:
		if conv == ConventionZig {
			return ArchX86
		}
		return ArchI686
	default:
		return arch
	}
}

// NormalizeOS maps OS synonyms to a common token and drops any version
// suffix. Apple tokens collapse to darwin; conventions decide how to spell it.
func NormalizeOS(osName string) string {
	osName = stripOSVersion(strings.ToLower(osName))
	switch osName {
	case OSMacOS, "macosx", OSDarwin:
		return OSDarwin
	case "win", OSWindows:
		return OSWindows
	default:
		return osName
	}
}
