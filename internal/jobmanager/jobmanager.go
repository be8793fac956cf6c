// Package jobmanager owns the Job lifecycle state machine, the
// completion detector, and pause/resume/cancel orchestration.
package jobmanager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/dispatcher"
	"github.com/VamsiGaletiInfinize/crawler/internal/fetcher"
	"github.com/VamsiGaletiInfinize/crawler/internal/frontier"
	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/ratelimiter"
	"github.com/VamsiGaletiInfinize/crawler/internal/robots"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// detectorInterval is the completion-detector probe period.
const detectorInterval = 10 * time.Second

// running tracks one active job's dispatcher and completion-probe state.
// cancelSignal is closed by CancelJob to wake watch immediately instead of
// waiting for the next detector tick; userCancelled records that the drain
// was requested by the user rather than reached by the completion
// detector, so finishDrain commits the right terminal status.
type running struct {
	dispatcher    *dispatcher.Dispatcher
	cancel        context.CancelFunc
	zeroStreak    int
	probeSignal   chan struct{}
	cancelSignal  chan struct{}
	userCancelled atomic.Bool
}

func newRunning() *running {
	return &running{
		probeSignal:  make(chan struct{}, 1),
		cancelSignal: make(chan struct{}),
	}
}

// Manager owns every active Job's Dispatcher and drives its state
// machine.
type Manager struct {
	store   store.Store
	fr      *frontier.Frontier
	rp      *robots.Policy
	rl      *ratelimiter.Registry
	fx      fetcher.Fetcher
	le      fetcher.LinkExtractor
	me      fetcher.MetadataExtractor
	logger  arbor.ILogger

	mu     sync.Mutex
	active map[string]*running
}

// New constructs a Manager wired to every collaborator a Dispatcher
// needs.
func New(
	st store.Store,
	fr *frontier.Frontier,
	rp *robots.Policy,
	rl *ratelimiter.Registry,
	fx fetcher.Fetcher,
	le fetcher.LinkExtractor,
	me fetcher.MetadataExtractor,
	logger arbor.ILogger,
) *Manager {
	return &Manager{
		store:  st,
		fr:     fr,
		rp:     rp,
		rl:     rl,
		fx:     fx,
		le:     le,
		me:     me,
		logger: logger,
		active: make(map[string]*running),
	}
}

// CreateJob validates cfg, persists a new pending Job, seeds the
// Frontier, and starts dispatching.
func (m *Manager) CreateJob(ctx context.Context, cfg models.JobConfig) (models.Job, error) {
	if cfg.SeedURL == "" {
		return models.Job{}, &models.ValidationError{Field: "seedUrl", Msg: "required"}
	}
	if cfg.Domain == "" {
		cfg.Domain = frontier.Domain(cfg.SeedURL)
	}
	if err := cfg.Validate(); err != nil {
		return models.Job{}, err
	}

	job, err := m.store.CreateJob(ctx, cfg)
	if err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}

	if err := m.fr.Seed(ctx, job.ID, cfg.SeedURL); err != nil {
		_ = m.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, store.JobPatch{LastError: strPtr(err.Error())})
		return models.Job{}, fmt.Errorf("seed frontier: %w", err)
	}

	m.startDispatch(job)
	return m.store.GetJob(ctx, job.ID)
}

// startDispatch transitions pending→running and launches the
// Dispatcher plus its completion-detector goroutine.
func (m *Manager) startDispatch(job models.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	if err := m.store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, store.JobPatch{StartedAt: &now}); err != nil {
		m.logger.Warn().Err(err).Str("job", job.ID).Msg("failed to transition job to running")
	}

	r := newRunning()
	d := dispatcher.New(job.ID, job.Config, m.store, m.fr, m.rp, m.rl, m.fx, m.le, m.me, m.logger, func() {
		select {
		case r.probeSignal <- struct{}{}:
		default:
		}
	})
	r.dispatcher = d
	r.cancel = cancel

	m.mu.Lock()
	m.active[job.ID] = r
	m.mu.Unlock()

	d.Start(ctx)
	go m.watch(ctx, job.ID, r)
}

// watch runs the completion detector for one job until it drains. Three
// distinct exits are handled:
//   - ctx.Done(): the process is shutting down (Manager.Shutdown). The
//     dispatcher's own context cancellation is already stopping its
//     workers; watch just waits for them to drain and cleans up its local
//     bookkeeping without touching the Store, so the job stays "running"
//     for Recover to rebind on the next startup.
//   - r.cancelSignal: CancelJob requested cancellation. Drain and commit
//     the "cancelled" terminal status.
//   - the completion detector (probeSignal/ticker) observes two
//     consecutive zero (pending, claimed) readings, or budget exhaustion.
//     Drain and commit "completed"/"failed".
func (m *Manager) watch(ctx context.Context, jobID string, r *running) {
	ticker := time.NewTicker(detectorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.dispatcher.Wait()
			m.shutdownCleanup(jobID)
			return
		case <-r.cancelSignal:
			m.drainAndFinish(jobID, r)
			return
		case <-r.probeSignal:
			if m.probe(ctx, jobID, r) {
				m.drainAndFinish(jobID, r)
				return
			}
		case <-ticker.C:
			if m.probe(ctx, jobID, r) {
				m.drainAndFinish(jobID, r)
				return
			}
		}
	}
}

// drainAndFinish stops the dispatcher, waits for every worker to observe
// cancellation and persist its in-flight result, then commits the
// terminal transition.
func (m *Manager) drainAndFinish(jobID string, r *running) {
	r.dispatcher.Cancel()
	r.dispatcher.Wait()
	m.finishDrain(jobID, r)
}

// shutdownCleanup drops a job's local bookkeeping without writing to the
// Store — used only when the process itself is shutting down, so the job
// stays "running" in the Store for Recover to rebind on next startup.
func (m *Manager) shutdownCleanup(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
	m.rl.Clear(jobID)
}

// probe implements the two-consecutive-zero completion rule: a single
// zero observation is not trusted because claim→discover is not atomic
// across components.
func (m *Manager) probe(ctx context.Context, jobID string, r *running) bool {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil || job.Status != models.JobStatusRunning {
		return false
	}

	stats, err := m.fr.Stats(ctx, jobID)
	if err != nil {
		return false
	}

	done := (stats.Pending == 0 && stats.Claimed == 0) || job.Counters.Crawled >= job.Config.MaxPages
	if !done {
		r.zeroStreak = 0
		return false
	}

	r.zeroStreak++
	if r.zeroStreak < 2 {
		return false
	}
	return true
}

// finishDrain runs once a job's dispatcher has fully drained: it
// re-reads final counters and commits the terminal transition.
func (m *Manager) finishDrain(jobID string, r *running) {
	ctx := context.Background()
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Warn().Err(err).Str("job", jobID).Msg("failed to load job at drain")
		return
	}

	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
	m.rl.Clear(jobID)

	if job.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	var status models.JobStatus
	var lastErr *string
	switch {
	case r.userCancelled.Load():
		status = models.JobStatusCancelled
	case job.Counters.Crawled == 0 && job.Counters.Failed > 0:
		status = models.JobStatusFailed
		lastErr = strPtr("no pages crawled successfully")
	default:
		status = models.JobStatusCompleted
	}
	if err := m.store.UpdateJobStatus(ctx, jobID, status, store.JobPatch{CompletedAt: &now, LastError: lastErr}); err != nil {
		m.logger.Warn().Err(err).Str("job", jobID).Msg("failed to commit terminal job status")
	}
}

// PauseJob parks the job's workers at their next loop head.
func (m *Manager) PauseJob(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning {
		return fmt.Errorf("jobmanager: cannot pause job in status %q", job.Status)
	}
	m.mu.Lock()
	r, ok := m.active[jobID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobmanager: job %s has no active dispatcher", jobID)
	}
	r.dispatcher.Pause()
	return m.store.UpdateJobStatus(ctx, jobID, models.JobStatusPaused, store.JobPatch{})
}

// ResumeJob releases a paused job's workers.
func (m *Manager) ResumeJob(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPaused {
		return fmt.Errorf("jobmanager: cannot resume job in status %q", job.Status)
	}
	m.mu.Lock()
	r, ok := m.active[jobID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobmanager: job %s has no active dispatcher", jobID)
	}
	if err := m.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning, store.JobPatch{}); err != nil {
		return err
	}
	r.dispatcher.Resume()
	return nil
}

// CancelJob records cancellation intent and returns immediately. For an
// actively dispatching job, the terminal "cancelled" transition is
// committed by watch/finishDrain once every worker has observed the
// cancel and drained; a job with no live Dispatcher (crash-recovered
// rebind not yet started) is transitioned immediately since there is no
// in-flight work to wait for.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("jobmanager: job %s already terminal (%q)", jobID, job.Status)
	}

	m.mu.Lock()
	r, ok := m.active[jobID]
	m.mu.Unlock()

	if err := m.fr.Clear(ctx, jobID); err != nil {
		m.logger.Warn().Err(err).Str("job", jobID).Msg("failed to clear frontier on cancel")
	}

	if !ok {
		now := time.Now().UTC()
		return m.store.UpdateJobStatus(ctx, jobID, models.JobStatusCancelled, store.JobPatch{CompletedAt: &now})
	}

	if r.userCancelled.CompareAndSwap(false, true) {
		close(r.cancelSignal)
	}
	r.dispatcher.Cancel()
	return nil
}

// Recover rebinds every Job left in a `running` state with no live
// Dispatcher. This resumes dispatching rather than failing orphaned jobs
// outright, since the Frontier and Job counters are durable and safe to
// continue from.
func (m *Manager) Recover(ctx context.Context) error {
	jobs, _, err := m.store.ListJobs(ctx, models.JobStatusRunning, 1000, 0)
	if err != nil {
		return fmt.Errorf("jobmanager: recover: list running jobs: %w", err)
	}
	for _, job := range jobs {
		m.mu.Lock()
		_, ok := m.active[job.ID]
		m.mu.Unlock()
		if ok {
			continue
		}
		m.logger.Info().Str("job", job.ID).Msg("rebinding orphaned running job")
		m.startDispatchResume(job)
	}
	return nil
}

// startDispatchResume is like startDispatch but does not re-transition
// an already-running job or re-touch startedAt.
func (m *Manager) startDispatchResume(job models.Job) {
	ctx, cancel := context.WithCancel(context.Background())

	r := newRunning()
	d := dispatcher.New(job.ID, job.Config, m.store, m.fr, m.rp, m.rl, m.fx, m.le, m.me, m.logger, func() {
		select {
		case r.probeSignal <- struct{}{}:
		default:
		}
	})
	r.dispatcher = d
	r.cancel = cancel

	m.mu.Lock()
	m.active[job.ID] = r
	m.mu.Unlock()

	d.Start(ctx)
	go m.watch(ctx, job.ID, r)
}

// Shutdown cancels every active dispatcher without clearing their
// frontiers, leaving jobs resumable by a future Recover call.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.active {
		r.cancel()
	}
}

// GetJobProjection returns job plus the queue stats and computed ETA
// and crawl rate.
func (m *Manager) GetJobProjection(ctx context.Context, jobID string) (Projection, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return Projection{}, err
	}
	stats, err := m.fr.Stats(ctx, jobID)
	if err != nil {
		return Projection{}, err
	}

	proj := Projection{Job: job, Queue: stats}
	if !job.StartedAt.IsZero() && job.Counters.Crawled > 0 {
		elapsed := time.Since(job.StartedAt).Seconds()
		if elapsed > 0 {
			proj.CrawlRatePerSec = float64(job.Counters.Crawled) / elapsed
		}
		if proj.CrawlRatePerSec > 0 {
			remaining := job.Config.MaxPages - job.Counters.Crawled
			if remaining < 0 {
				remaining = 0
			}
			if stats.Pending < remaining {
				remaining = stats.Pending
			}
			proj.ETASeconds = float64(remaining) / proj.CrawlRatePerSec
		}
	}
	return proj, nil
}

// Projection is the GetJob API response shape.
type Projection struct {
	Job             models.Job
	Queue           store.QueueStats
	CrawlRatePerSec float64
	ETASeconds      float64
}

func strPtr(s string) *string { return &s }
