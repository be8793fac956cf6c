package frontier

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

// defaultPorts maps scheme to the port normalize.go strips when explicit.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// trackingParamPrefixes and trackingParams are dropped during
// normalization.
var trackingParamPrefixes = []string{"utm_"}
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
}

// Normalize canonicalizes a URL into a deterministic dedup key: lowercase
// host, strip default port, strip trailing slash (except root), drop
// fragment, drop tracking params, sort the remaining query parameters by
// key, preserve scheme.
//
// Invalid URLs pass through unchanged; they will typically fail
// downstream filters instead.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Host)
	if h, port, splitErr := net.SplitHostPort(host); splitErr == nil {
		if defaultPorts[strings.ToLower(u.Scheme)] == port {
			host = h
		}
	}
	u.Host = host

	u.Fragment = ""

	path := u.Path
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	u.Path = path

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParams[lower] {
				q.Del(key)
				continue
			}
			for _, prefix := range trackingParamPrefixes {
				if strings.HasPrefix(lower, prefix) {
					q.Del(key)
					break
				}
			}
		}
		u.RawQuery = encodeSorted(q)
	}

	return u.String()
}

// encodeSorted renders query parameters sorted lexicographically by key.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		values := q[k]
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// InDomain reports whether urlHost is the job domain or a subdomain of it.
func InDomain(rawURL, jobDomain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(jobDomain)
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

// Domain extracts the lowercase host (without port) from a URL, used as
// the RateLimiter and RobotsPolicy cache key.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
