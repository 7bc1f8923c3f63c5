package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cperrin88/nifpre/pkg/errors"
)

var zigCatalog = []string{
	"aarch64-linux-gnu",
	"aarch64-linux-musl",
	"aarch64-macos",
	"arm-linux-gnueabihf",
	"riscv64-linux-musl",
	"x86_64-linux-gnu",
	"x86_64-linux-musl",
	"x86_64-macos",
	"x86_64-windows-gnu",
	"x86-windows-gnu",
}

var rustCatalog = []string{
	"aarch64-apple-darwin",
	"aarch64-unknown-linux-gnu",
	"aarch64-unknown-linux-musl",
	"x86_64-apple-darwin",
	"x86_64-unknown-linux-gnu",
	"x86_64-unknown-freebsd",
	"x86_64-pc-windows-msvc",
	"i686-pc-windows-msvc",
}

func TestResolve_AMD64Linux(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "amd64", OS: "linux", WordSize: 8, RuntimeABIVersion: "2.16"}

	target, err := Resolve(d, ConventionZig, zigCatalog, []string{"2.15", "2.16", "2.17"})
	require.NoError(t, err)
	assert.Equal(t, "x86_64-linux-gnu", target)
}

func TestResolve_UnsupportedTargetListsCatalog(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "s390x", OS: "linux", WordSize: 8, RuntimeABIVersion: "2.16"}

	_, err := Resolve(d, ConventionZig, zigCatalog, []string{"2.16"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedTarget)
	assert.Equal(t, errors.KindResolution, errors.KindOf(err))
	for _, target := range zigCatalog {
		assert.Contains(t, err.Error(), target)
	}
}

func TestResolve_TargetCheckedBeforeRuntimeVersion(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "s390x", OS: "linux", WordSize: 8, RuntimeABIVersion: "9.0"}

	_, err := Resolve(d, ConventionZig, zigCatalog, []string{"2.16"})
	assert.ErrorIs(t, err, errors.ErrUnsupportedTarget)
	assert.NotErrorIs(t, err, errors.ErrUnsupportedRuntimeVersion)
}

func TestResolve_UnsupportedRuntimeVersion(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "amd64", OS: "linux", WordSize: 8, RuntimeABIVersion: "3.0"}

	_, err := Resolve(d, ConventionZig, zigCatalog, []string{"2.15", "2.16"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedRuntimeVersion)
	assert.Contains(t, err.Error(), "3.0")
	assert.Contains(t, err.Error(), "2.15, 2.16")
}

func TestResolve_WindowsRawTripleWins(t *testing.T) {
	// The raw triple matches a catalog entry, so word-size synthesis is skipped.
	d := Descriptor{Family: FamilyWindows, Arch: "aarch64", OS: "windows", ABI: "msvc", WordSize: 8, RuntimeABIVersion: "2.16"}
	catalog := []string{"aarch64-windows-msvc", "x86_64-windows-msvc"}

	target, err := Resolve(d, ConventionGNU, catalog, []string{"2.16"})
	require.NoError(t, err)
	assert.Equal(t, "aarch64-windows-msvc", target)
}

func TestResolve_WindowsSynthesized(t *testing.T) {
	d := Descriptor{Family: FamilyWindows, Arch: "amd64", OS: "windows", WordSize: 8, RuntimeABIVersion: "2.16"}

	target, err := Resolve(d, ConventionRust, rustCatalog, []string{"2.16"})
	require.NoError(t, err)
	assert.Equal(t, "x86_64-pc-windows-msvc", target)
}

func TestResolveRuntime_ReportsCompatibleVersion(t *testing.T) {
	d := Descriptor{Family: FamilyUnix, Arch: "arm64", Vendor: "apple", OS: "darwin", WordSize: 8, RuntimeABIVersion: "2.17"}

	res, err := ResolveRuntime(d, ConventionRust, rustCatalog, []string{"2.15", "2.16"})
	require.NoError(t, err)
	assert.Equal(t, Resolution{Target: "aarch64-apple-darwin", RuntimeVersion: "2.16"}, res)
}

func TestFindCompatibleVersion(t *testing.T) {
	tests := []struct {
		name      string
		running   string
		available []string
		want      string
		wantErr   bool
	}{
		{"exact match", "2.16", []string{"2.15", "2.16", "2.17"}, "2.16", false},
		{"falls back to highest lower minor", "2.17", []string{"2.14", "2.16", "2.15"}, "2.16", false},
		{"never picks a higher minor", "2.15", []string{"2.16", "2.17"}, "", true},
		{"never crosses major", "3.0", []string{"2.16", "2.17"}, "", true},
		{"patch-level ordering", "2.17", []string{"2.16.0", "2.16.1"}, "2.16.1", false},
		{"empty catalog", "2.16", nil, "", true},
		{"invalid running version", "not-a-version", []string{"2.16"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindCompatibleVersion(tt.running, tt.available)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.KindResolution, errors.KindOf(err))
				assert.Contains(t, err.Error(), tt.running)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCandidateRuntimeVersions(t *testing.T) {
	got, err := CandidateRuntimeVersions("2.17", []string{"2.15", "bogus", "2.17", "2.16", "3.0", "2.18"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2.17", "2.16", "2.15"}, got)
}
