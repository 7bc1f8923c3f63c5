package download

import (
	"context"
	"crypto/x509"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/cperrin88/nifpre/pkg/checksum"
)

// Downloader fetches artifact bytes over HTTPS.
type Downloader interface {
	// FetchOne performs a single GET and returns the body. Any non-200
	// response or transport failure is an error; nothing is retried.
	FetchOne(ctx context.Context, url string) ([]byte, error)

	// FetchMany fetches urls concurrently into dir, naming each file after
	// the URL's last path segment. With ignoreUnavailable, failed URLs are
	// dropped from the result; otherwise the first failure fails the batch.
	FetchMany(ctx context.Context, urls []string, dir string, ignoreUnavailable bool) ([]Result, error)
}

// Result is one successfully fetched artifact.
type Result struct {
	URL  string       `json:"url" yaml:"url"`
	Path string       `json:"path" yaml:"path"`
	Sum  checksum.Sum `json:"checksum" yaml:"checksum"`
	Size int64        `json:"size" yaml:"size"`
}

// Options control the HTTP client used by a Fetcher.
type Options struct {
	// Timeout bounds a whole request. Zero means no limit, so large
	// artifacts on slow links are not abandoned.
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// Proxy selects proxies for plain and TLS requests. Nil reads
	// HTTP_PROXY, HTTPS_PROXY and NO_PROXY from the environment.
	Proxy *httpproxy.Config
	// RootCAs replaces the system trust store when set.
	RootCAs *x509.CertPool
}
