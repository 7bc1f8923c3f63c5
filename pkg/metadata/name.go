// Package metadata names precompiled artifacts, parses artifact URLs and
// persists the per-app record of the last successful resolution.
package metadata

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cperrin88/nifpre/pkg/errors"
)

const (
	// ArchiveExt is the extension of every artifact archive.
	ArchiveExt = ".tar.gz"

	nifInfix = "-nif-"
)

// ArtifactName identifies one precompiled archive.
type ArtifactName struct {
	App            string `yaml:"app" json:"app"`
	RuntimeVersion string `yaml:"runtime_version" json:"runtime_version"`
	Target         string `yaml:"target" json:"target"`
	Version        string `yaml:"version" json:"version"`
}

// String renders "{app}-nif-{runtime}-{target}-{version}.tar.gz".
func (n ArtifactName) String() string {
	return n.App + nifInfix + n.RuntimeVersion + "-" + n.Target + "-" + n.Version + ArchiveExt
}

// URL joins the archive name onto baseURL.
func (n ArtifactName) URL(baseURL string) string {
	return JoinURL(baseURL, n.String())
}

// LegacyURL renders the older "{base}/{target}.tar.gz" shape.
func LegacyURL(baseURL, target string) string {
	return JoinURL(baseURL, target+ArchiveExt)
}

// JoinURL appends name to baseURL with exactly one slash between them.
func JoinURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + name
}

// ParseArtifactName splits an archive basename back into its parts. The
// remainder is split at the leftmost hyphen whose suffix parses as a strict
// semantic version, so the version is the longest such trailing run.
// Targets may themselves contain hyphens and versions may carry pre-release
// suffixes.
func ParseArtifactName(name string) (ArtifactName, error) {
	base, ok := strings.CutSuffix(name, ArchiveExt)
	if !ok {
		return ArtifactName{}, malformedName(name, "missing "+ArchiveExt+" extension")
	}

	app, rest, ok := strings.Cut(base, nifInfix)
	if !ok || app == "" {
		return ArtifactName{}, malformedName(name, "missing app name")
	}

	runtimeVersion, rest, ok := strings.Cut(rest, "-")
	if !ok || runtimeVersion == "" {
		return ArtifactName{}, malformedName(name, "missing runtime version")
	}

	for i := 0; i < len(rest); i++ {
		if rest[i] != '-' || i == 0 {
			continue
		}
		if _, err := semver.StrictNewVersion(rest[i+1:]); err == nil {
			return ArtifactName{
				App:            app,
				RuntimeVersion: runtimeVersion,
				Target:         rest[:i],
				Version:        rest[i+1:],
			}, nil
		}
	}
	return ArtifactName{}, malformedName(name, "missing target or version")
}

func malformedName(name, reason string) error {
	return errors.New(errors.KindConfig, "parse artifact name", name,
		fmt.Errorf("%w: %s", errors.ErrInvalidPath, reason))
}

// ArtifactURL is a parsed artifact URL.
type ArtifactURL struct {
	BaseURL string
	Name    ArtifactName
	// Legacy is set for the "{base}/{target}.tar.gz" shape, which carries
	// only Name.Target.
	Legacy bool
}

// ParseArtifactURL recognises both the current and the legacy URL shape.
func ParseArtifactURL(raw string) (ArtifactURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ArtifactURL{}, errors.New(errors.KindConfig, "parse artifact url", raw,
			fmt.Errorf("%w: %v", errors.ErrInvalidURL, err))
	}

	file := path.Base(u.Path)
	if u.Path == "" || file == "/" || file == "." {
		return ArtifactURL{}, errors.New(errors.KindConfig, "parse artifact url", raw, errors.ErrInvalidURL)
	}
	baseURL := *u
	baseURL.Path = path.Dir(u.Path)
	baseURL.RawPath = ""
	baseURL.RawQuery = ""
	baseURL.Fragment = ""
	base := strings.TrimRight(baseURL.String(), "/")

	if strings.Contains(file, nifInfix) {
		name, err := ParseArtifactName(file)
		if err != nil {
			return ArtifactURL{}, err
		}
		return ArtifactURL{BaseURL: base, Name: name}, nil
	}

	target, ok := strings.CutSuffix(file, ArchiveExt)
	if !ok || target == "" {
		return ArtifactURL{}, errors.New(errors.KindConfig, "parse artifact url", raw,
			fmt.Errorf("%w: not a %s archive", errors.ErrInvalidURL, ArchiveExt))
	}
	return ArtifactURL{BaseURL: base, Name: ArtifactName{Target: target}, Legacy: true}, nil
}

// FileName returns the last path segment of an artifact URL, used as the
// cache file name for downloads.
func FileName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(raw)
}
