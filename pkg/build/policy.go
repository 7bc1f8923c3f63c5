package build

import (
	"fmt"
	"runtime"

	"github.com/cperrin88/nifpre/pkg/platform"
)

// CompilerPolicy decides which compiler builds a target.
type CompilerPolicy interface {
	CompilerEnv(target string) Env
}

// CrossPolicy routes every target through a cross compiler, except the
// host's own target, which uses the native compiler unless AlwaysCross is set.
type CrossPolicy struct {
	// Compiler is the cross compiler driver; "zig" when empty.
	Compiler string
	// AlwaysCross forces the cross compiler for the host target as well.
	AlwaysCross bool
	// HostTarget is the canonical target of the build host.
	HostTarget string
	// HostOS is runtime.GOOS when empty.
	HostOS string
	// NativeCC and NativeCXX default to gcc and g++.
	NativeCC  string
	NativeCXX string
}

// CompilerEnv implements CompilerPolicy.
func (p CrossPolicy) CompilerEnv(target string) Env {
	if !p.AlwaysCross && p.HostTarget != "" && target == p.HostTarget {
		return p.nativeEnv(target)
	}

	compiler := p.Compiler
	if compiler == "" {
		compiler = "zig"
	}
	zigTarget := platform.Render(platform.ParseTarget(target), platform.ConventionZig)
	return Env{
		CC:  fmt.Sprintf("%s cc -target %s", compiler, zigTarget),
		CXX: fmt.Sprintf("%s c++ -target %s", compiler, zigTarget),
		CPP: fmt.Sprintf("%s cc -E -target %s", compiler, zigTarget),
	}
}

func (p CrossPolicy) nativeEnv(target string) Env {
	cc, cxx := p.NativeCC, p.NativeCXX
	if cc == "" {
		cc = "gcc"
	}
	if cxx == "" {
		cxx = "g++"
	}

	hostOS := p.HostOS
	if hostOS == "" {
		hostOS = runtime.GOOS
	}
	if hostOS == platform.OSDarwin {
		arch := "x86_64"
		if platform.NormalizeArch(platform.ParseTarget(target).Arch, true, platform.ConventionGNU) == platform.ArchAArch64 {
			arch = "arm64"
		}
		cc += " -arch " + arch
		cxx += " -arch " + arch
	}
	return Env{CC: cc, CXX: cxx, CPP: cc + " -E"}
}
