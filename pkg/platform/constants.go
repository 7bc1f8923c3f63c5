package platform

// Raw OS tokens as reported by the Go runtime or a system architecture string.
const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSMacOS   = "macos"
	OSFreeBSD = "freebsd"
	OSOpenBSD = "openbsd"
	OSNetBSD  = "netbsd"
)

// Canonical architecture tokens used in rendered targets.
const (
	ArchX8664   = "x86_64"
	ArchAArch64 = "aarch64"
	ArchI686    = "i686"
	ArchX86     = "x86"
	ArchARM     = "arm"
	ArchRISCV64 = "riscv64"
)

// Vendor and ABI tokens.
const (
	VendorApple   = "apple"
	VendorPC      = "pc"
	VendorUnknown = "unknown"

	ABIGNU  = "gnu"
	ABIMusl = "musl"
	ABIMSVC = "msvc"
)

// Environment variables that override raw descriptor fields.
const (
	EnvTargetArch   = "TARGET_ARCH"
	EnvTargetVendor = "TARGET_VENDOR"
	EnvTargetOS     = "TARGET_OS"
	EnvTargetABI    = "TARGET_ABI"
)

// knownOS lists OS tokens recognised in the second position of a
// three-part target, which tells arch-os-abi apart from arch-vendor-os.
var knownOS = map[string]bool{
	OSWindows: true,
	OSLinux:   true,
	OSDarwin:  true,
	OSMacOS:   true,
	OSFreeBSD: true,
	OSOpenBSD: true,
	OSNetBSD:  true,
	"android": true,
	"ios":     true,
}

// ValidOS returns the OS tokens the resolver knows how to render.
func ValidOS() []string {
	return []string{OSWindows, OSLinux, OSDarwin, OSFreeBSD, OSOpenBSD, OSNetBSD}
}

// ValidArch returns the canonical architecture tokens.
func ValidArch() []string {
	return []string{ArchX8664, ArchAArch64, ArchI686, ArchX86, ArchARM, ArchRISCV64}
}
