package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher is the default Fetcher: a plain net/http client. Headless
// rendering is out of scope; this adapter exists so the repository is
// runnable without an external browser collaborator.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a Fetcher using userAgent on every request.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

// Fetch performs a single GET with the given per-request timeout,
// classifying the result as retryable or fatal.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*FetchResult, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Retryable: false, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Retryable: true, Err: fmt.Errorf("fetch: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &FetchError{Retryable: true, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	result := &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
		Headers:     flattenHeader(resp.Header),
		Duration:    time.Since(start),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return result, &FetchError{Retryable: true, Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return result, &FetchError{Retryable: true, Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return result, &FetchError{Retryable: false, Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return result, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// RetryAfter parses the Retry-After header off a FetchResult's headers,
// falling back to defaultDelay when absent or unparsable.
func RetryAfter(headers map[string]string, defaultDelay time.Duration) time.Duration {
	v, ok := headers["Retry-After"]
	if !ok {
		return defaultDelay
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		return secs
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return defaultDelay
}
