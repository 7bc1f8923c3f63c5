package orchestrator

import (
	"context"
	"fmt"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/download"
	"github.com/cperrin88/nifpre/pkg/metadata"
	"github.com/cperrin88/nifpre/pkg/platform"
)

// CandidateURLs returns the artifact URLs a fetch would request.
func (o *Orchestrator) CandidateURLs(p Project, opts FetchOptions) ([]string, error) {
	if opts.All {
		urls := make([]string, 0, len(p.Targets)*len(p.RuntimeVersions))
		for _, target := range p.Targets {
			for _, rv := range p.RuntimeVersions {
				urls = append(urls, artifactURL(p, target, rv))
			}
		}
		return urls, nil
	}

	resolution, err := o.Resolve(p, opts.Host)
	if err != nil {
		return nil, err
	}
	runtimes, err := platform.CandidateRuntimeVersions(opts.Host.RuntimeABIVersion, p.RuntimeVersions)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(runtimes))
	for _, rv := range runtimes {
		urls = append(urls, artifactURL(p, resolution.Target, rv))
	}
	return urls, nil
}

func artifactURL(p Project, target, runtimeVersion string) string {
	return metadata.ArtifactName{
		App:            p.App,
		RuntimeVersion: runtimeVersion,
		Target:         target,
		Version:        p.Version,
	}.URL(p.BaseURL)
}

// FetchArtifacts downloads the candidate archives into the cache root.
func (o *Orchestrator) FetchArtifacts(ctx context.Context, p Project, opts FetchOptions) ([]download.Result, error) {
	if o.Cache == nil || o.DL == nil {
		return nil, fmt.Errorf("orchestrator is not fully configured")
	}

	urls, err := o.CandidateURLs(p, opts)
	if err != nil {
		return nil, err
	}
	dir, err := o.Cache.Root("")
	if err != nil {
		return nil, err
	}

	emit(o.Hooks, Event{Phase: "download", Msg: fmt.Sprintf("%d artifacts", len(urls))})
	results, err := o.DL.FetchMany(ctx, urls, dir, opts.IgnoreUnavailable || !opts.All)
	if err != nil {
		return nil, err
	}
	logger.Infof("Fetched %d of %d artifacts", len(results), len(urls))
	return results, nil
}

// FetchChecksums downloads the candidate archives and records their
// digests in the manifest, keeping entries for archives not fetched now.
func (o *Orchestrator) FetchChecksums(ctx context.Context, p Project, opts FetchOptions) (checksum.Manifest, error) {
	results, err := o.FetchArtifacts(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	fetched := checksum.Manifest{}
	for _, r := range results {
		fetched.Add(r.Path, r.Sum)
	}
	if err := checksum.Save(p.ManifestPath, checksum.Load(p.ManifestPath).Merge(fetched)); err != nil {
		return nil, err
	}
	emit(o.Hooks, Event{Phase: "done", Msg: p.ManifestPath})
	return fetched, nil
}
