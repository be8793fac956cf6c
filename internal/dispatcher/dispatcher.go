// Package dispatcher implements the Dispatcher: the worker pool driving
// the Frontier for one running Job — per-worker logging, graceful exit
// on a missing/terminal job, and sync.WaitGroup-based draining, with the
// claim/fetch/discover body built against the Frontier/Store/RobotsPolicy/
// RateLimiter collaborators.
package dispatcher

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/fetcher"
	"github.com/VamsiGaletiInfinize/crawler/internal/frontier"
	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/ratelimiter"
	"github.com/VamsiGaletiInfinize/crawler/internal/robots"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// emptyClaimLimit bounds how many consecutive empty claims a worker
// tolerates before yielding, avoiding a thundering-herd poll on the Store.
const emptyClaimLimit = 8

// backoffMin/backoffMax bound the jittered idle wait between empty claims.
const backoffMin = 250 * time.Millisecond
const backoffMax = 750 * time.Millisecond

// retryBackoffBase is the exponential retry backoff base: 2s, 4s, 8s by
// attempt.
const retryBackoffBase = 2 * time.Second

// Dispatcher drives one running Job's worker pool.
type Dispatcher struct {
	jobID string
	cfg   models.JobConfig

	store    store.Store
	frontier *frontier.Frontier
	robots   *robots.Policy
	limiter  *ratelimiter.Registry
	fetch    fetcher.Fetcher
	links    fetcher.LinkExtractor
	meta     fetcher.MetadataExtractor
	patterns *frontier.PatternFilter
	logger   arbor.ILogger

	paused    atomic.Bool
	cancelled atomic.Bool
	resumeCh  chan struct{}

	wg sync.WaitGroup

	onCompletionSignal func()
}

// New constructs a Dispatcher for one job. onCompletionSignal, if
// non-nil, is invoked whenever a worker observes a terminal condition
// worth an immediate completion-detector probe (budget exhaustion).
func New(
	jobID string,
	cfg models.JobConfig,
	st store.Store,
	fr *frontier.Frontier,
	rp *robots.Policy,
	rl *ratelimiter.Registry,
	fx fetcher.Fetcher,
	le fetcher.LinkExtractor,
	me fetcher.MetadataExtractor,
	logger arbor.ILogger,
	onCompletionSignal func(),
) *Dispatcher {
	return &Dispatcher{
		jobID:              jobID,
		cfg:                cfg,
		store:              st,
		frontier:           fr,
		robots:             rp,
		limiter:            rl,
		fetch:              fx,
		links:              le,
		meta:               me,
		patterns:           frontier.NewPatternFilter(cfg.IncludePatterns, cfg.ExcludePatterns),
		logger:             logger,
		resumeCh:           make(chan struct{}),
		onCompletionSignal: onCompletionSignal,
	}
}

// Start spawns maxConcurrentWorkers worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.MaxConcurrentWorkers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Pause parks workers at their next loop head; in-flight fetches complete
// and persist before a worker parks.
func (d *Dispatcher) Pause() {
	d.paused.Store(true)
}

// Resume releases any parked workers.
func (d *Dispatcher) Resume() {
	if d.paused.CompareAndSwap(true, false) {
		close(d.resumeCh)
		d.resumeCh = make(chan struct{})
	}
}

// Cancel records cancellation intent and returns immediately — the
// terminal transition happens once workers drain.
func (d *Dispatcher) Cancel() {
	d.cancelled.Store(true)
	d.Resume()
}

func (d *Dispatcher) workerLoop(ctx context.Context, workerIndex int) {
	defer d.wg.Done()
	log := d.logger.WithContextWriter(d.jobID)
	emptyClaims := 0

	for {
		if d.cancelled.Load() {
			log.Debug().Int("worker", workerIndex).Msg("worker exiting: cancelled")
			return
		}
		if d.paused.Load() {
			resumeCh := d.resumeCh
			select {
			case <-resumeCh:
			case <-ctx.Done():
				return
			}
			continue
		}

		job, err := d.store.GetJob(ctx, d.jobID)
		if err != nil || job.Status != models.JobStatusRunning {
			log.Debug().Int("worker", workerIndex).Msg("worker exiting: job no longer running")
			return
		}

		if job.Counters.Crawled >= job.Config.MaxPages {
			d.skipRemaining(ctx, log)
			if d.onCompletionSignal != nil {
				d.onCompletionSignal()
			}
			return
		}

		entries, err := d.frontier.Claim(ctx, d.jobID, 1)
		if err != nil {
			log.Warn().Err(err).Msg("claim failed")
			continue
		}
		if len(entries) == 0 {
			emptyClaims++
			if emptyClaims >= emptyClaimLimit {
				log.Debug().Int("worker", workerIndex).Msg("worker yielding: no pending work")
				return
			}
			if !sleepCtx(ctx, jitteredBackoff()) {
				return
			}
			continue
		}
		emptyClaims = 0

		d.processEntry(ctx, log, job, entries[0])
	}
}

func (d *Dispatcher) processEntry(ctx context.Context, log arbor.ILogger, job models.Job, entry models.FrontierEntry) {
	domain := frontier.Domain(entry.URL)

	if job.Config.RespectRobotsTxt && !d.robots.IsAllowed(ctx, entry.URL, job.Config.Domain) {
		d.skip(ctx, log, job.ID, entry)
		return
	}

	if err := d.limiter.Acquire(ctx, job.ID, domain); err != nil {
		return
	}

	timeout := time.Duration(job.Config.RequestTimeoutMs) * time.Millisecond
	result, fetchErr := d.fetch.Fetch(ctx, entry.URL, timeout)

	if fetchErr != nil {
		d.handleFetchError(ctx, log, job, entry, domain, result, fetchErr)
		return
	}

	d.handleFetchSuccess(ctx, log, job, entry, result)
}

func (d *Dispatcher) skip(ctx context.Context, log arbor.ILogger, jobID string, entry models.FrontierEntry) {
	if err := d.frontier.Skip(ctx, entry.ID); err != nil {
		log.Warn().Err(err).Msg("failed to mark frontier entry skipped")
	}
	if err := d.store.UpdatePage(ctx, jobID, entry.NormalizedURL, models.PageStatusSkipped, store.PagePatch{}); err != nil {
		log.Warn().Err(err).Msg("failed to mark page skipped")
	}
	if err := d.store.IncrementCounter(ctx, jobID, models.CounterSkipped, 1); err != nil {
		log.Warn().Err(err).Msg("failed to increment skipped")
	}
}

func (d *Dispatcher) skipRemaining(ctx context.Context, log arbor.ILogger) {
	for {
		entries, err := d.frontier.Claim(ctx, d.jobID, 100)
		if err != nil || len(entries) == 0 {
			return
		}
		for _, e := range entries {
			if err := d.frontier.Skip(ctx, e.ID); err != nil {
				log.Warn().Err(err).Msg("failed to skip remaining entry")
			}
			if err := d.store.UpdatePage(ctx, d.jobID, e.NormalizedURL, models.PageStatusSkipped, store.PagePatch{}); err != nil {
				log.Warn().Err(err).Msg("failed to mark remaining page skipped")
			}
		}
		if err := d.store.IncrementCounter(ctx, d.jobID, models.CounterSkipped, len(entries)); err != nil {
			log.Warn().Err(err).Msg("failed to increment skipped (budget exhausted)")
		}
	}
}

func (d *Dispatcher) handleFetchError(ctx context.Context, log arbor.ILogger, job models.Job, entry models.FrontierEntry, domain string, result *fetcher.FetchResult, fetchErr error) {
	ferr, ok := fetchErr.(*fetcher.FetchError)
	retryable := !ok || ferr.Retryable

	if ok && (ferr.Status == 429 || ferr.Status == 503) {
		delay := 60 * time.Second
		if result != nil {
			delay = fetcher.RetryAfter(result.Headers, delay)
		}
		d.limiter.Throttle(job.ID, domain, delay)
	}

	if !retryable {
		d.fail(ctx, log, job.ID, entry, fetchErr.Error())
		return
	}

	nextRetry := entry.RetryCount + 1
	if nextRetry >= job.Config.MaxRetries {
		d.fail(ctx, log, job.ID, entry, fetchErr.Error())
		return
	}

	backoff := retryBackoffBase * time.Duration(1<<uint(nextRetry-1))
	notBefore := time.Now().UTC().Add(backoff)
	if err := d.frontier.Requeue(ctx, entry.ID, nextRetry, notBefore); err != nil {
		log.Warn().Err(err).Msg("failed to requeue entry")
	}
}

func (d *Dispatcher) fail(ctx context.Context, log arbor.ILogger, jobID string, entry models.FrontierEntry, errMsg string) {
	if err := d.frontier.Fail(ctx, entry.ID, entry.RetryCount); err != nil {
		log.Warn().Err(err).Msg("failed to mark frontier entry failed")
	}
	if err := d.store.UpdatePage(ctx, jobID, entry.NormalizedURL, models.PageStatusFailed, store.PagePatch{ErrorMessage: errMsg}); err != nil {
		log.Warn().Err(err).Msg("failed to mark page failed")
	}
	if err := d.store.IncrementCounter(ctx, jobID, models.CounterFailed, 1); err != nil {
		log.Warn().Err(err).Msg("failed to increment failed")
	}
}

func (d *Dispatcher) handleFetchSuccess(ctx context.Context, log arbor.ILogger, job models.Job, entry models.FrontierEntry, result *fetcher.FetchResult) {
	meta, _ := d.meta.ExtractMetadata(result.Body)

	var linksFound int
	if entry.Depth < job.Config.MaxDepth {
		links, err := d.links.ExtractLinks(result.Body, entry.URL, job.Config.Domain)
		if err != nil {
			log.Warn().Err(err).Str("url", entry.URL).Msg("link extraction failed")
		} else {
			linksFound = len(links)
			if _, err := d.frontier.Discover(ctx, job.ID, job.Config.Domain, entry.Depth, links, d.patterns); err != nil {
				log.Warn().Err(err).Msg("discover failed")
			}
		}
	}

	patch := store.PagePatch{
		HTTPStatus:  result.StatusCode,
		ContentType: result.ContentType,
		ContentLen:  int64(len(result.Body)),
		Title:       meta.Title,
		Description: meta.Description,
		Content:     result.Body,
		LinksFound:  linksFound,
		CrawledAt:   time.Now().UTC(),
		DurationMs:  result.Duration.Milliseconds(),
	}
	if err := d.store.UpdatePage(ctx, job.ID, entry.NormalizedURL, models.PageStatusCompleted, patch); err != nil {
		log.Warn().Err(err).Msg("failed to mark page completed")
	}
	if err := d.frontier.Complete(ctx, entry.ID); err != nil {
		log.Warn().Err(err).Msg("failed to mark frontier entry complete")
	}
	if err := d.store.IncrementCounter(ctx, job.ID, models.CounterCrawled, 1); err != nil {
		log.Warn().Err(err).Msg("failed to increment crawled")
	}
}

func jitteredBackoff() time.Duration {
	span := backoffMax - backoffMin
	return backoffMin + time.Duration(rand.Int63n(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
