package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodySize caps how much of an upstream response body is buffered for
// caching. Larger bodies are truncated at the read, not failed.
const maxBodySize = 20 << 20 // 20 MiB

// Result is a buffered network response, the unit the strategy engine and
// cache operate on.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the response content type, or empty.
func (r *Result) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Fetcher performs network fetches on behalf of the strategy engine.
// A transport-level failure returns an error; any HTTP status, including
// 4xx/5xx, returns a Result.
type Fetcher interface {
	Fetch(ctx context.Context, method, rawURL string, header http.Header) (*Result, error)
}

// HTTPFetcher resolves page-relative URLs against the configured upstream
// origin and fetches over a plain HTTP client.
type HTTPFetcher struct {
	client   *http.Client
	upstream *url.URL
}

// NewHTTPFetcher creates a Fetcher. The client is owned by the caller so
// tests can swap its transport.
func NewHTTPFetcher(client *http.Client, upstream string) (*HTTPFetcher, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", upstream)
	}
	return &HTTPFetcher{client: client, upstream: u}, nil
}

// Resolve turns a page-relative URL into an absolute one against the
// upstream origin. Absolute URLs are returned unchanged.
func (f *HTTPFetcher) Resolve(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return f.upstream.ResolveReference(ref).String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, method, rawURL string, header http.Header) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.Resolve(rawURL), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	for k, vs := range header {
		// Hop-by-hop headers are owned by the transport.
		if k == "Connection" || k == "Keep-Alive" || k == "Transfer-Encoding" {
			continue
		}
		req.Header[k] = vs
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	return &Result{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}
