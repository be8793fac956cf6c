// Package robots implements a RobotsPolicy: a two-tier cache — a
// process-local, expiry-aware map in front of the durable Store —
// answering allow/deny and crawl-delay questions for a domain. Parsing
// uses github.com/temoto/robotstxt.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// cachedEntry is the process-local cache tier's value type.
type cachedEntry struct {
	data      *robotstxt.RobotsData
	crawlDelay time.Duration
	hasDelay   bool
	expiresAt  time.Time
}

// Policy answers IsAllowed/CrawlDelay questions, backed by Store.
type Policy struct {
	store     store.Store
	userAgent string
	client    *http.Client
	logger    arbor.ILogger

	mu    sync.RWMutex
	cache map[string]*cachedEntry
}

// New constructs a Policy. fetchTimeout bounds each robots.txt GET.
func New(st store.Store, userAgent string, fetchTimeout time.Duration, logger arbor.ILogger) *Policy {
	return &Policy{
		store:     st,
		userAgent: userAgent,
		client:    &http.Client{Timeout: fetchTimeout},
		logger:    logger,
		cache:     make(map[string]*cachedEntry),
	}
}

// IsAllowed reports whether url may be fetched under domain's robots.txt.
// On any parse or fetch failure the conservative default is to allow.
func (p *Policy) IsAllowed(ctx context.Context, rawURL, domain string) bool {
	entry, err := p.resolve(ctx, domain)
	if err != nil || entry == nil || entry.data == nil {
		return true
	}
	path := pathOf(rawURL)
	return entry.data.TestAgent(path, p.userAgent)
}

// CrawlDelay returns the crawl-delay robots.txt declared for domain, if
// any.
func (p *Policy) CrawlDelay(ctx context.Context, domain string) (time.Duration, bool) {
	entry, err := p.resolve(ctx, domain)
	if err != nil || entry == nil {
		return 0, false
	}
	return entry.crawlDelay, entry.hasDelay
}

// resolve returns the cached or freshly-fetched entry for domain, warming
// both cache tiers on a miss.
func (p *Policy) resolve(ctx context.Context, domain string) (*cachedEntry, error) {
	p.mu.RLock()
	entry, ok := p.cache[domain]
	p.mu.RUnlock()
	if ok && time.Now().UTC().Before(entry.expiresAt) {
		return entry, nil
	}

	if record, found, err := p.store.GetRobots(ctx, domain); err == nil && found {
		entry = recordToEntry(record)
		p.mu.Lock()
		p.cache[domain] = entry
		p.mu.Unlock()
		return entry, nil
	}

	return p.fetchAndCache(ctx, domain)
}

// fetchAndCache performs a fetch-once-per-miss: GET https, fall back to
// http once on failure, cache a null record (allow-all) on 404 or both
// failures.
func (p *Policy) fetchAndCache(ctx context.Context, domain string) (*cachedEntry, error) {
	body, fetchErr := p.fetchBody(ctx, "https", domain)
	if fetchErr != nil {
		body, fetchErr = p.fetchBody(ctx, "http", domain)
	}

	record := models.RobotsRecord{
		Domain:    domain,
		FetchedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(models.RobotsTTL),
	}

	var entry *cachedEntry
	if fetchErr != nil || body == "" {
		entry = &cachedEntry{data: nil, expiresAt: record.ExpiresAt}
	} else {
		data, parseErr := robotstxt.FromString(body)
		if parseErr != nil {
			if p.logger != nil {
				p.logger.Warn().Str("domain", domain).Err(parseErr).Msg("failed to parse robots.txt, allowing all")
			}
			entry = &cachedEntry{data: nil, expiresAt: record.ExpiresAt}
		} else {
			record.Body = &body
			entry = &cachedEntry{data: data, expiresAt: record.ExpiresAt}
			if group := data.FindGroup(p.userAgent); group != nil && group.CrawlDelay > 0 {
				entry.crawlDelay = group.CrawlDelay
				entry.hasDelay = true
				record.HasCrawlDelay = true
				record.CrawlDelay = group.CrawlDelay
			}
		}
	}

	if err := p.store.UpsertRobots(ctx, record); err != nil && p.logger != nil {
		p.logger.Warn().Str("domain", domain).Err(err).Msg("failed to persist robots record")
	}

	p.mu.Lock()
	p.cache[domain] = entry
	p.mu.Unlock()

	return entry, nil
}

func (p *Policy) fetchBody(ctx context.Context, scheme, domain string) (string, error) {
	url := fmt.Sprintf("%s://%s/robots.txt", scheme, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("robots.txt fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func recordToEntry(r models.RobotsRecord) *cachedEntry {
	entry := &cachedEntry{expiresAt: r.ExpiresAt, crawlDelay: r.CrawlDelay, hasDelay: r.HasCrawlDelay}
	if r.Body != nil {
		if data, err := robotstxt.FromString(*r.Body); err == nil {
			entry.data = data
		}
	}
	return entry
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
