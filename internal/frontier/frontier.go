// Package frontier implements the Frontier facade over store.Store: URL
// normalization, de-duplication, enqueue, atomic claim, and
// re-queue-on-failure, plus the in-domain/pattern filtering pipeline.
package frontier

import (
	"context"
	"fmt"
	"time"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// Frontier is a thin facade over store.Store.
type Frontier struct {
	store store.Store
}

// New constructs a Frontier backed by st.
func New(st store.Store) *Frontier {
	return &Frontier{store: st}
}

// Seed normalizes the seed URL, upserts its Page at depth 0, and enqueues
// it.
func (f *Frontier) Seed(ctx context.Context, jobID, seedURL string) error {
	normalized := Normalize(seedURL)

	if _, _, err := f.store.UpsertPage(ctx, jobID, seedURL, normalized, 0); err != nil {
		return fmt.Errorf("seed: upsert page: %w", err)
	}

	discovered, err := f.store.EnqueueURLs(ctx, jobID, []store.EnqueueItem{
		{URL: seedURL, NormalizedURL: normalized, Depth: 0, Priority: models.Priority(0)},
	})
	if err != nil {
		return fmt.Errorf("seed: enqueue: %w", err)
	}
	if discovered > 0 {
		if err := f.store.IncrementCounter(ctx, jobID, models.CounterDiscovered, discovered); err != nil {
			return fmt.Errorf("seed: increment discovered: %w", err)
		}
	}
	return nil
}

// Discover filters, normalizes, and batch-enqueues links found on a page
// at parentDepth. Filter order: in-domain → exclude → include → normalize
// → dedup. Only the newly-inserted count is added to the discovered
// counter.
func (f *Frontier) Discover(ctx context.Context, jobID, domain string, parentDepth int, links []string, patterns *PatternFilter) (int, error) {
	childDepth := parentDepth + 1
	priority := models.Priority(childDepth)

	seen := make(map[string]bool, len(links))
	items := make([]store.EnqueueItem, 0, len(links))
	for _, link := range links {
		if !InDomain(link, domain) {
			continue
		}
		if patterns != nil && !patterns.Allow(link) {
			continue
		}
		normalized := Normalize(link)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		items = append(items, store.EnqueueItem{URL: link, NormalizedURL: normalized, Depth: childDepth, Priority: priority})
	}
	if len(items) == 0 {
		return 0, nil
	}

	for _, item := range items {
		if _, _, err := f.store.UpsertPage(ctx, jobID, item.URL, item.NormalizedURL, item.Depth); err != nil {
			return 0, fmt.Errorf("discover: upsert page: %w", err)
		}
	}

	discovered, err := f.store.EnqueueURLs(ctx, jobID, items)
	if err != nil {
		return 0, fmt.Errorf("discover: enqueue: %w", err)
	}
	if discovered > 0 {
		if err := f.store.IncrementCounter(ctx, jobID, models.CounterDiscovered, discovered); err != nil {
			return 0, fmt.Errorf("discover: increment discovered: %w", err)
		}
	}
	return discovered, nil
}

// Claim is a thin wrapper over Store.ClaimPending.
func (f *Frontier) Claim(ctx context.Context, jobID string, batchSize int) ([]models.FrontierEntry, error) {
	entries, err := f.store.ClaimPending(ctx, jobID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return entries, nil
}

// Complete marks a frontier entry terminal after a successful fetch.
func (f *Frontier) Complete(ctx context.Context, entryID string) error {
	return f.store.MarkFrontier(ctx, entryID, models.FrontierDone, nil, nil)
}

// Fail marks a frontier entry terminal after retries are exhausted.
func (f *Frontier) Fail(ctx context.Context, entryID string, attempts int) error {
	return f.store.MarkFrontier(ctx, entryID, models.FrontierDone, &attempts, nil)
}

// Skip marks a frontier entry terminal without counting it as a failure
// (robots deny, budget exhaustion).
func (f *Frontier) Skip(ctx context.Context, entryID string) error {
	return f.store.MarkFrontier(ctx, entryID, models.FrontierDone, nil, nil)
}

// Requeue re-enqueues a failed entry as pending with an incremented retry
// count and a notBefore back-off deadline.
func (f *Frontier) Requeue(ctx context.Context, entryID string, retryCount int, notBefore time.Time) error {
	return f.store.MarkFrontier(ctx, entryID, models.FrontierPending, &retryCount, &notBefore)
}

// Clear removes every frontier entry for jobID (cancellation/deletion).
func (f *Frontier) Clear(ctx context.Context, jobID string) error {
	return f.store.ClearFrontier(ctx, jobID)
}

// CountPending reports the number of still-pending entries for jobID.
func (f *Frontier) CountPending(ctx context.Context, jobID string) (int, error) {
	return f.store.CountPending(ctx, jobID)
}

// Stats reports the queue snapshot used by the completion detector.
func (f *Frontier) Stats(ctx context.Context, jobID string) (store.QueueStats, error) {
	return f.store.QueueStats(ctx, jobID)
}
