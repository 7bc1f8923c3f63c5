package metadata

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/fsutil"
)

// Dir is the cache subdirectory holding metadata records.
const Dir = "metadata"

// Record is the last successful resolution for one app. It lets later
// commands rebuild candidate download URLs without probing the host again.
type Record struct {
	App             string   `yaml:"app"`
	BaseURL         string   `yaml:"base_url"`
	Target          string   `yaml:"target"`
	Targets         []string `yaml:"targets"`
	Version         string   `yaml:"version"`
	RuntimeVersion  string   `yaml:"runtime_version"`
	RuntimeVersions []string `yaml:"runtime_versions"`
	CachedArchive   string   `yaml:"cached_archive,omitempty"`
	// URLs holds artifact URLs recorded verbatim. Older records may list
	// legacy "{base}/{target}.tar.gz" URLs here.
	URLs []string `yaml:"urls,omitempty"`
}

// RecordPath returns the record file for app inside metadataDir.
func RecordPath(metadataDir, app string) string {
	return filepath.Join(metadataDir, "metadata-"+app+".yaml")
}

// Load reads a record. A missing file returns (nil, nil).
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(errors.KindIO, "read metadata", path, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.New(errors.KindConfig, "parse metadata", path, err).
			WithRemedy("nifpre install")
	}
	return &rec, nil
}

// Save writes rec to path unless the file already holds the same bytes.
// It reports whether a write happened.
func Save(path string, rec *Record) (bool, error) {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return false, errors.New(errors.KindIO, "encode metadata", path, err)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	if err := fsutil.WriteFileAtomic(path, data, fsutil.FileModeDefault); err != nil {
		return false, errors.New(errors.KindIO, "write metadata", path, err)
	}
	return true, nil
}

// URLEntry is one candidate artifact URL.
type URLEntry struct {
	Target         string `json:"target" yaml:"target"`
	RuntimeVersion string `json:"runtime_version,omitempty" yaml:"runtime_version,omitempty"`
	URL            string `json:"url" yaml:"url"`
	Legacy         bool   `json:"legacy,omitempty" yaml:"legacy,omitempty"`
}

// ArtifactFor names the artifact of this record's app for a target and
// runtime version.
func (r *Record) ArtifactFor(target, runtimeVersion string) ArtifactName {
	return ArtifactName{App: r.App, RuntimeVersion: runtimeVersion, Target: target, Version: r.Version}
}

// AvailableURLs lists candidate URLs. Explicit URLs win; otherwise every
// target is crossed with every runtime version. A record without runtime
// versions falls back to the legacy per-target URLs.
func (r *Record) AvailableURLs() ([]URLEntry, error) {
	if len(r.URLs) > 0 {
		out := make([]URLEntry, 0, len(r.URLs))
		for _, raw := range r.URLs {
			parsed, err := ParseArtifactURL(raw)
			if err != nil {
				return nil, fmt.Errorf("metadata for %s: %w", r.App, err)
			}
			out = append(out, URLEntry{
				Target:         parsed.Name.Target,
				RuntimeVersion: parsed.Name.RuntimeVersion,
				URL:            raw,
				Legacy:         parsed.Legacy,
			})
		}
		return out, nil
	}

	if r.BaseURL == "" {
		return nil, errors.New(errors.KindConfig, "list urls", r.App, errors.ErrMissingBaseURL)
	}
	runtimes := r.RuntimeVersions
	if len(runtimes) == 0 && r.RuntimeVersion != "" {
		runtimes = []string{r.RuntimeVersion}
	}

	if len(runtimes) == 0 {
		out := make([]URLEntry, 0, len(r.Targets))
		for _, target := range r.Targets {
			out = append(out, URLEntry{Target: target, URL: LegacyURL(r.BaseURL, target), Legacy: true})
		}
		return out, nil
	}

	out := make([]URLEntry, 0, len(r.Targets)*len(runtimes))
	for _, target := range r.Targets {
		for _, rv := range runtimes {
			out = append(out, URLEntry{
				Target:         target,
				RuntimeVersion: rv,
				URL:            r.ArtifactFor(target, rv).URL(r.BaseURL),
			})
		}
	}
	return out, nil
}
