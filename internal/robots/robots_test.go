package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// memStore is a minimal store.Store stub backing only the Robots methods
// robots.Policy needs, a lightweight hand-rolled fake for a collaborator
// interface that doesn't warrant a full mock.
type memStore struct {
	store.Store
	records map[string]models.RobotsRecord
}

func newMemStore() *memStore { return &memStore{records: make(map[string]models.RobotsRecord)} }

func (m *memStore) UpsertRobots(ctx context.Context, r models.RobotsRecord) error {
	m.records[r.Domain] = r
	return nil
}

func (m *memStore) GetRobots(ctx context.Context, domain string) (models.RobotsRecord, bool, error) {
	r, ok := m.records[domain]
	if !ok || time.Now().UTC().After(r.ExpiresAt) {
		return models.RobotsRecord{}, false, nil
	}
	return r, true, nil
}

func domainOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func TestIsAllowed_DeniesDisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	p := New(newMemStore(), "testbot", time.Second, arbor.NewLogger())
	domain := domainOf(t, srv)

	assert.False(t, p.IsAllowed(context.Background(), "http://"+domain+"/private/page", domain))
	assert.True(t, p.IsAllowed(context.Background(), "http://"+domain+"/public/page", domain))
}

func TestIsAllowed_FailsOpenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(newMemStore(), "testbot", time.Second, arbor.NewLogger())
	domain := domainOf(t, srv)

	assert.True(t, p.IsAllowed(context.Background(), "http://"+domain+"/anything", domain))
}

func TestIsAllowed_FailsOpenOnUnreachableHost(t *testing.T) {
	p := New(newMemStore(), "testbot", 50*time.Millisecond, arbor.NewLogger())
	// Port 1 is reserved and never accepts connections.
	assert.True(t, p.IsAllowed(context.Background(), "http://127.0.0.1:1/anything", "127.0.0.1:1"))
}

func TestCrawlDelay_ReturnsDeclaredDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: testbot\nCrawl-delay: 2\n"))
	}))
	defer srv.Close()

	p := New(newMemStore(), "testbot", time.Second, arbor.NewLogger())
	domain := domainOf(t, srv)

	delay, ok := p.CrawlDelay(context.Background(), domain)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)
}

func TestResolve_UsesDurableStoreCacheBeforeRefetching(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
	}))
	defer srv.Close()

	st := newMemStore()
	domain := domainOf(t, srv)

	// Pre-seed the durable store as if another process already fetched it.
	body := "User-agent: *\nDisallow: /blocked\n"
	st.records[domain] = models.RobotsRecord{
		Domain:    domain,
		Body:      &body,
		FetchedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(models.RobotsTTL),
	}

	p := New(st, "testbot", time.Second, arbor.NewLogger())
	assert.False(t, p.IsAllowed(context.Background(), "http://"+domain+"/blocked/x", domain))
	assert.Equal(t, 0, hits, "a durable-store hit must not trigger a network fetch")
}
