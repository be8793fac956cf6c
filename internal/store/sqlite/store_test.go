package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// setupTestDB creates a fresh, file-backed SQLite database for one test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{Path: dir + "/test.db", BusyTimeoutMS: 5000, WALMode: false}
	db, err := Open(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig(seed string) models.JobConfig {
	cfg := models.DefaultJobConfig()
	cfg.SeedURL = seed
	cfg.Domain = "example.com"
	return cfg
}

func TestCreateAndGetJob(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "https://example.com/", got.Config.SeedURL)
}

func TestGetJob_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetJob(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementCounter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	require.NoError(t, db.IncrementCounter(ctx, job.ID, models.CounterCrawled, 3))
	require.NoError(t, db.IncrementCounter(ctx, job.ID, models.CounterCrawled, 2))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Counters.Crawled)
}

func TestEnqueueURLs_DedupesOnNormalizedURL(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	items := []store.EnqueueItem{
		{URL: "https://example.com/a", NormalizedURL: "https://example.com/a", Depth: 1, Priority: 9},
		{URL: "https://example.com/b", NormalizedURL: "https://example.com/b", Depth: 1, Priority: 9},
	}
	discovered, err := db.EnqueueURLs(ctx, job.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 2, discovered)

	// Re-enqueuing the same normalized URLs discovers nothing new.
	discovered, err = db.EnqueueURLs(ctx, job.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 0, discovered)

	pending, err := db.CountPending(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestClaimPending_ExactlyOnceAcrossConcurrentClaimers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	const n = 20
	items := make([]store.EnqueueItem, 0, n)
	for i := 0; i < n; i++ {
		u := "https://example.com/p" + string(rune('a'+i))
		items = append(items, store.EnqueueItem{URL: u, NormalizedURL: u, Depth: 1, Priority: 9})
	}
	_, err = db.EnqueueURLs(ctx, job.ID, items)
	require.NoError(t, err)

	// The single-writer pool serializes claims, but ClaimPending must
	// still never hand the same entry to two callers across repeated
	// small-batch claims — the property that matters under dispatcher
	// worker concurrency.
	seen := make(map[string]bool)
	total := 0
	for {
		claimed, err := db.ClaimPending(ctx, job.ID, 3)
		require.NoError(t, err)
		if len(claimed) == 0 {
			break
		}
		for _, e := range claimed {
			assert.False(t, seen[e.ID], "entry %s claimed twice", e.ID)
			seen[e.ID] = true
			assert.Equal(t, models.FrontierClaimed, e.Status)
		}
		total += len(claimed)
	}
	assert.Equal(t, n, total)
}

func TestClaimPending_OrdersByPriority(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	_, err = db.EnqueueURLs(ctx, job.ID, []store.EnqueueItem{
		{URL: "https://example.com/deep", NormalizedURL: "https://example.com/deep", Depth: 8, Priority: models.Priority(8)},
		{URL: "https://example.com/shallow", NormalizedURL: "https://example.com/shallow", Depth: 0, Priority: models.Priority(0)},
	})
	require.NoError(t, err)

	claimed, err := db.ClaimPending(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "https://example.com/shallow", claimed[0].NormalizedURL)
}

func TestMarkFrontier_CompleteRemovesFromPending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	_, _, err = db.UpsertPage(ctx, job.ID, "https://example.com/a", "https://example.com/a", 0)
	require.NoError(t, err)
	_, err = db.EnqueueURLs(ctx, job.ID, []store.EnqueueItem{
		{URL: "https://example.com/a", NormalizedURL: "https://example.com/a", Depth: 0, Priority: 10},
	})
	require.NoError(t, err)

	claimed, err := db.ClaimPending(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Completion marks the frontier entry terminal and the page completed,
	// as the dispatcher does; QueueStats counts completed pages.
	require.NoError(t, db.MarkFrontier(ctx, claimed[0].ID, models.FrontierDone, nil, nil))
	require.NoError(t, db.UpdatePage(ctx, job.ID, "https://example.com/a", models.PageStatusCompleted, store.PagePatch{}))

	pending, err := db.CountPending(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	stats, err := db.QueueStats(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestUpsertPage_InsertOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	id1, inserted1, err := db.UpsertPage(ctx, job.ID, "https://example.com/a", "https://example.com/a", 0)
	require.NoError(t, err)
	assert.True(t, inserted1)
	assert.NotEmpty(t, id1)

	id2, inserted2, err := db.UpsertPage(ctx, job.ID, "https://example.com/a", "https://example.com/a", 0)
	require.NoError(t, err)
	assert.False(t, inserted2)
	assert.Equal(t, id1, id2)
}

func TestGetPage_DirectLookupNotLimitedByListSize(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	job, err := db.CreateJob(ctx, testConfig("https://example.com/"))
	require.NoError(t, err)

	var lastID string
	for i := 0; i < 150; i++ {
		u := "https://example.com/page" + string(rune('a'+(i%26))) + string(rune('0'+(i/26)))
		id, _, err := db.UpsertPage(ctx, job.ID, u, u, 0)
		require.NoError(t, err)
		lastID = id
	}

	got, err := db.GetPage(ctx, job.ID, lastID)
	require.NoError(t, err)
	assert.Equal(t, lastID, got.ID)
}

func TestUpsertRobots_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	body := "User-agent: *\nDisallow: /private\n"
	record := models.RobotsRecord{
		Domain:        "example.com",
		Body:          &body,
		HasCrawlDelay: true,
		CrawlDelay:    2 * time.Second,
		FetchedAt:     time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(models.RobotsTTL),
	}
	require.NoError(t, db.UpsertRobots(ctx, record))

	got, found, err := db.GetRobots(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "example.com", got.Domain)
	require.NotNil(t, got.Body)
	assert.Equal(t, body, *got.Body)
}

func TestGetRobots_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, found, err := db.GetRobots(context.Background(), "nowhere.invalid")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}
