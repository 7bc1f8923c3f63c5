// Package download fetches precompiled artifacts over verified TLS.
package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/sync/errgroup"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/cache"
	"github.com/cperrin88/nifpre/pkg/checksum"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/metadata"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "nifpre/1.0"

// Fetcher is an HTTP-based Downloader.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. TLS peers are verified against the system
// roots, or opts.RootCAs when set, with hostname checks enabled.
func NewFetcher(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	proxyCfg := opts.Proxy
	if proxyCfg == nil {
		proxyCfg = httpproxy.FromEnvironment()
	}
	proxyFunc := proxyCfg.ProxyFunc()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    opts.RootCAs,
	}

	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent: opts.UserAgent,
	}
}

// FetchOne downloads url and returns its body.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.New(errors.KindTransport, "download", rawURL,
			fmt.Errorf("%w: %w", errors.ErrInvalidURL, err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	logger.Debug("Downloading", logger.Fields{"url": rawURL})
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.KindTransport, "download", rawURL,
			fmt.Errorf("%w: %w", errors.ErrDownloadFailed, err)).WithRemedy("nifpre fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindTransport, "download", rawURL,
			fmt.Errorf("%w: %w: %d", errors.ErrDownloadFailed, errors.ErrUnexpectedStatus, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.KindTransport, "download", rawURL,
			fmt.Errorf("%w: %w", errors.ErrDownloadFailed, err))
	}
	logger.Debug("Downloaded", logger.Fields{"url": rawURL, "size": humanize.Bytes(uint64(len(body)))})
	return body, nil
}

// FetchMany downloads urls concurrently into dir. The directory is created
// once before any request starts. Results keep the order of urls.
func (f *Fetcher) FetchMany(ctx context.Context, urls []string, dir string, ignoreUnavailable bool) ([]Result, error) {
	store := cache.NewStore(dir)
	root, err := store.Root("")
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(urls))
	// In lenient mode failures are dropped, so one must not cancel the others.
	g, gctx := new(errgroup.Group), ctx
	if !ignoreUnavailable {
		g, gctx = errgroup.WithContext(ctx)
	}

	for i, u := range urls {
		g.Go(func() error {
			res, err := f.fetchInto(gctx, store, root, u)
			if err != nil {
				if ignoreUnavailable {
					logger.Warn("Skipping unavailable artifact", logger.Fields{"url": u, "error": err.Error()})
					return nil
				}
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(urls))
	var total int64
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
			total += r.Size
		}
	}
	logger.Info("Fetched artifacts", logger.Fields{
		"requested": len(urls),
		"fetched":   len(out),
		"size":      humanize.Bytes(uint64(total)),
	})
	return out, nil
}

func (f *Fetcher) fetchInto(ctx context.Context, store *cache.Store, dir, rawURL string) (*Result, error) {
	name := metadata.FileName(rawURL)
	if name == "" || name == "." || name == "/" {
		return nil, errors.New(errors.KindTransport, "download", rawURL, errors.ErrInvalidURL)
	}

	body, err := f.FetchOne(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name)
	if err := store.Write(path, body); err != nil {
		return nil, err
	}
	return &Result{
		URL:  rawURL,
		Path: path,
		Sum:  checksum.ComputeBytes(body),
		Size: int64(len(body)),
	}, nil
}
