package platform

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/cperrin88/nifpre/pkg/errors"
)

// Resolution is a validated target plus the runtime version whose build the
// host should load.
type Resolution struct {
	Target         string `yaml:"target" json:"target"`
	RuntimeVersion string `yaml:"runtime_version" json:"runtime_version"`
}

// Resolve returns the canonical target for d. The target must be listed in
// supportedTargets and d.RuntimeABIVersion must be compatible with one of
// supportedRuntimeVersions. The target check runs first.
func Resolve(d Descriptor, conv Convention, supportedTargets, supportedRuntimeVersions []string) (string, error) {
	res, err := ResolveRuntime(d, conv, supportedTargets, supportedRuntimeVersions)
	if err != nil {
		return "", err
	}
	return res.Target, nil
}

// ResolveRuntime is Resolve but also reports the compatible runtime version.
func ResolveRuntime(d Descriptor, conv Convention, supportedTargets, supportedRuntimeVersions []string) (Resolution, error) {
	target := Render(d, conv)
	if d.Family == FamilyWindows {
		if raw := RenderRaw(d, conv); raw != "" && slices.Contains(supportedTargets, raw) {
			target = raw
		}
	}

	if !slices.Contains(supportedTargets, target) {
		return Resolution{}, errors.New(errors.KindResolution, "resolve target", target,
			fmt.Errorf("%w; supported targets: %s", errors.ErrUnsupportedTarget, strings.Join(supportedTargets, ", ")))
	}

	rv, err := FindCompatibleVersion(d.RuntimeABIVersion, supportedRuntimeVersions)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Target: target, RuntimeVersion: rv}, nil
}

// FindCompatibleVersion picks the runtime version whose builds a host
// running `running` can load. An exact match wins. Otherwise the highest
// available version with the same major and a minor not above the running
// minor is chosen.
func FindCompatibleVersion(running string, available []string) (string, error) {
	if slices.Contains(available, running) {
		return running, nil
	}

	candidates, err := CandidateRuntimeVersions(running, available)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", unsupportedRuntime(running, available)
	}
	return candidates[0], nil
}

// CandidateRuntimeVersions returns every available version compatible with
// running, newest first. Unparseable available entries are ignored.
func CandidateRuntimeVersions(running string, available []string) ([]string, error) {
	rv, err := version.NewVersion(running)
	if err != nil {
		return nil, errors.New(errors.KindResolution, "parse runtime version", running,
			fmt.Errorf("%w: %v", errors.ErrInvalidRuntimeVersion, err))
	}
	major, minor := segment(rv, 0), segment(rv, 1)

	type candidate struct {
		raw string
		v   *version.Version
	}
	var found []candidate
	for _, a := range available {
		av, err := version.NewVersion(a)
		if err != nil {
			continue
		}
		if segment(av, 0) == major && segment(av, 1) <= minor {
			found = append(found, candidate{raw: a, v: av})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].v.GreaterThan(found[j].v)
	})
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.raw
	}
	return out, nil
}

func segment(v *version.Version, i int) int {
	segs := v.Segments()
	if i < len(segs) {
		return segs[i]
	}
	return 0
}

func unsupportedRuntime(running string, available []string) error {
	return errors.New(errors.KindResolution, "resolve runtime version", running,
		fmt.Errorf("%w; supported runtime versions: %s", errors.ErrUnsupportedRuntimeVersion, strings.Join(available, ", ")))
}
