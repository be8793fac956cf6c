// Package store defines the durable persistence contract for jobs, pages,
// frontier entries, and the robots.txt cache. All operations are atomic;
// ClaimPending is the only correctness-critical primitive — it must
// atomically select-and-mark pending frontier rows so two claimers never
// take the same entry.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// JobPatch carries partial mutable-field updates for UpdateJobStatus.
type JobPatch struct {
	LastError   *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// EnqueueItem is one candidate frontier row for a batched EnqueueURLs call.
type EnqueueItem struct {
	URL           string
	NormalizedURL string
	Depth         int
	Priority      int
}

// QueueStats summarizes one job's queue: Pending and Claimed count
// frontier entries; Completed, Failed and Skipped count pages by status.
type QueueStats struct {
	Pending   int
	Claimed   int
	Completed int
	Failed    int
	Skipped   int
}

// PageStatusFilter optionally narrows ListPages by status.
type PageStatusFilter = models.PageStatus

// Store is the persistence contract consumed by Frontier, RobotsPolicy,
// Dispatcher and JobManager.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, cfg models.JobConfig) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	ListJobs(ctx context.Context, status models.JobStatus, limit, offset int) ([]models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, patch JobPatch) error
	IncrementCounter(ctx context.Context, id string, field models.CounterField, delta int) error
	DeleteJob(ctx context.Context, id string) error

	// Pages
	UpsertPage(ctx context.Context, jobID, rawURL, normalizedURL string, depth int) (pageID string, inserted bool, err error)
	UpdatePage(ctx context.Context, jobID, normalizedURL string, status models.PageStatus, patch PagePatch) error
	GetPage(ctx context.Context, jobID, pageID string) (models.Page, error)
	ListPages(ctx context.Context, jobID string, status *models.PageStatus, limit, offset int) ([]models.Page, int, error)
	StreamCompletedPages(ctx context.Context, jobID string, w io.Writer, format string) error

	// Frontier
	EnqueueURLs(ctx context.Context, jobID string, items []EnqueueItem) (discovered int, err error)
	ClaimPending(ctx context.Context, jobID string, n int) ([]models.FrontierEntry, error)
	MarkFrontier(ctx context.Context, entryID string, status models.FrontierStatus, retryCount *int, notBefore *time.Time) error
	ClearFrontier(ctx context.Context, jobID string) error
	CountPending(ctx context.Context, jobID string) (int, error)
	QueueStats(ctx context.Context, jobID string) (QueueStats, error)

	// Robots
	UpsertRobots(ctx context.Context, record models.RobotsRecord) error
	GetRobots(ctx context.Context, domain string) (models.RobotsRecord, bool, error)

	// Health
	Ping(ctx context.Context) error

	Close() error
}

// PagePatch carries partial mutable-field updates for UpdatePage.
type PagePatch struct {
	HTTPStatus   int
	ContentType  string
	ContentLen   int64
	Title        string
	Description  string
	Content      string
	LinksFound   int
	CrawledAt    time.Time
	DurationMs   int64
	ErrorMessage string
	RetryCount   *int
}
