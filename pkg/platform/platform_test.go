package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	d := Detect("2.16")

	assert.Equal(t, runtime.GOARCH, d.Arch)
	assert.Equal(t, runtime.GOOS, d.OS)
	assert.Equal(t, "2.16", d.RuntimeABIVersion)
	if runtime.GOOS == OSWindows {
		assert.Equal(t, FamilyWindows, d.Family)
	} else {
		assert.Equal(t, FamilyUnix, d.Family)
	}
	if runtime.GOOS == OSLinux {
		assert.Contains(t, []string{ABIGNU, ABIMusl}, d.ABI)
	}
	assert.NotEmpty(t, Render(d, ConventionZig))
}

func TestIsMusl(t *testing.T) {
	orig := muslLoaderGlob
	t.Cleanup(func() { muslLoaderGlob = orig })

	dir := t.TempDir()
	muslLoaderGlob = filepath.Join(dir, "ld-musl-*")
	assert.False(t, isMusl())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ld-musl-x86_64.so.1"), nil, 0o644))
	assert.True(t, isMusl())
}

func TestParseSystemArchitecture(t *testing.T) {
	tests := []struct {
		input    string
		wordSize int
		want     Descriptor
	}{
		{
			input:    "x86_64-pc-linux-gnu",
			wordSize: 8,
			want:     Descriptor{Family: FamilyUnix, Arch: "x86_64", Vendor: "pc", OS: "linux", ABI: "gnu", WordSize: 8},
		},
		{
			input:    "aarch64-apple-darwin23.1.0",
			wordSize: 8,
			want:     Descriptor{Family: FamilyUnix, Arch: "aarch64", Vendor: "apple", OS: "darwin", OSVersion: "23.1.0", WordSize: 8},
		},
		{
			input:    "x86_64-linux-musl",
			wordSize: 8,
			want:     Descriptor{Family: FamilyUnix, Arch: "x86_64", OS: "linux", ABI: "musl", WordSize: 8},
		},
		{
			input:    "arm-linux-gnueabihf",
			wordSize: 4,
			want:     Descriptor{Family: FamilyUnix, Arch: "arm", OS: "linux", ABI: "gnueabihf", WordSize: 4},
		},
		{
			input:    "x86_64-pc-windows-msvc",
			wordSize: 8,
			want:     Descriptor{Family: FamilyWindows, Arch: "x86_64", Vendor: "pc", OS: "windows", ABI: "msvc", WordSize: 8},
		},
		{
			input:    "win32",
			wordSize: 8,
			want:     Descriptor{Family: FamilyWindows, OS: "windows", WordSize: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSystemArchitecture(tt.input, tt.wordSize))
		})
	}
}

func TestOverridesFromEnv(t *testing.T) {
	env := map[string]string{
		EnvTargetArch:  "aarch64",
		EnvTargetABI:   "musl",
		"TARGET_OTHER": "ignored",
	}
	o := OverridesFromEnv(func(k string) string { return env[k] })

	assert.Equal(t, Overrides{Arch: "aarch64", ABI: "musl"}, o)
	assert.False(t, o.IsZero())
	assert.True(t, Overrides{}.IsZero())
}

func TestApplyOverrides(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "amd64", Vendor: "unknown", OS: "linux", ABI: "gnu", WordSize: 8}

	t.Run("empty overrides leave descriptor unchanged", func(t *testing.T) {
		assert.Equal(t, d, ApplyOverrides(d, Overrides{}))
	})

	t.Run("arch and abi replaced before normalization", func(t *testing.T) {
		got := ApplyOverrides(d, Overrides{Arch: "arm", ABI: "gnueabihf"})
		assert.Equal(t, "arm", got.Arch)
		assert.Equal(t, 4, got.WordSize)
		assert.Equal(t, "arm-linux-gnueabihf", Render(got, ConventionZig))
	})

	t.Run("os override switches family", func(t *testing.T) {
		got := ApplyOverrides(d, Overrides{OS: "windows", ABI: "msvc"})
		assert.Equal(t, FamilyWindows, got.Family)
		assert.Equal(t, "x86_64-windows-msvc", Render(got, ConventionGNU))
	})

	t.Run("os override with version", func(t *testing.T) {
		got := ApplyOverrides(d, Overrides{OS: "darwin23.1.0", Vendor: "apple", Arch: "arm"})
		assert.Equal(t, "darwin", got.OS)
		assert.Equal(t, "23.1.0", got.OSVersion)
		assert.Equal(t, "aarch64-macos", Render(got, ConventionZig))
	})
}

func TestRender(t *testing.T) {
	linux := Descriptor{Family: FamilyUnix, Arch: "amd64", OS: "linux", WordSize: 8}
	linuxMusl := Descriptor{Family: FamilyUnix, Arch: "arm64", Vendor: "unknown", OS: "linux", ABI: "musl", WordSize: 8}
	mac := Descriptor{Family: FamilyUnix, Arch: "arm", Vendor: "apple", OS: "darwin", OSVersion: "23.1.0", WordSize: 8}
	linux32 := Descriptor{Family: FamilyUnix, Arch: "i386", OS: "linux", ABI: "gnu", WordSize: 4}
	win64 := Descriptor{Family: FamilyWindows, Arch: "amd64", OS: "windows", WordSize: 8}
	win32 := Descriptor{Family: FamilyWindows, Arch: "386", OS: "windows", WordSize: 4}
	freebsd := Descriptor{Family: FamilyUnix, Arch: "amd64", Vendor: "unknown", OS: "freebsd14.0", WordSize: 8}

	tests := []struct {
		name string
		d    Descriptor
		conv Convention
		want string
	}{
		{"zig linux default abi", linux, ConventionZig, "x86_64-linux-gnu"},
		{"rust linux", linux, ConventionRust, "x86_64-unknown-linux-gnu"},
		{"gnu linux", linux, ConventionGNU, "x86_64-linux-gnu"},
		{"zig linux musl", linuxMusl, ConventionZig, "aarch64-linux-musl"},
		{"rust linux musl", linuxMusl, ConventionRust, "aarch64-unknown-linux-musl"},
		{"zig apple", mac, ConventionZig, "aarch64-macos"},
		{"rust apple", mac, ConventionRust, "aarch64-apple-darwin"},
		{"gnu apple", mac, ConventionGNU, "aarch64-apple-darwin"},
		{"zig 32-bit linux", linux32, ConventionZig, "x86-linux-gnu"},
		{"rust 32-bit linux", linux32, ConventionRust, "i686-unknown-linux-gnu"},
		{"zig windows 64", win64, ConventionZig, "x86_64-windows-gnu"},
		{"zig windows 32", win32, ConventionZig, "x86-windows-gnu"},
		{"rust windows 64", win64, ConventionRust, "x86_64-pc-windows-msvc"},
		{"rust windows 32", win32, ConventionRust, "i686-pc-windows-msvc"},
		{"gnu windows 64", win64, ConventionGNU, "x86_64-windows-msvc"},
		{"gnu windows 32", win32, ConventionGNU, "i686-windows-msvc"},
		{"zig freebsd drops version", freebsd, ConventionZig, "x86_64-freebsd"},
		{"rust freebsd", freebsd, ConventionRust, "x86_64-unknown-freebsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.d, tt.conv))
		})
	}
}

func TestParseConvention(t *testing.T) {
	for _, name := range []string{"zig", "RUST", " gnu ", ""} {
		_, err := ParseConvention(name)
		assert.NoError(t, err, name)
	}

	_, err := ParseConvention("msys")
	assert.Error(t, err)
}

func TestLibraryFile(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"x86_64-linux-gnu", "libfast_json.so"},
		{"aarch64-apple-darwin", "libfast_json.so"},
		{"x86_64-unknown-freebsd", "libfast_json.so"},
		{"x86_64-pc-windows-msvc", "fast_json.dll"},
		{"x86-windows-gnu", "fast_json.dll"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, LibraryFile("fast_json", tt.target))
		})
	}
}
