package models

import (
	"regexp"
	"time"
)

// JobStatus is the lifecycle state of a crawl Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether status never transitions further.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobConfig is the immutable configuration snapshotted at job creation.
type JobConfig struct {
	SeedURL              string   `json:"seed_url"`
	Domain               string   `json:"domain"`
	MaxDepth             int      `json:"max_depth"`
	MaxPages             int      `json:"max_pages"`
	MaxConcurrentWorkers int      `json:"max_concurrent_workers"`
	CrawlDelayMs         int      `json:"crawl_delay_ms"`
	RespectRobotsTxt     bool     `json:"respect_robots_txt"`
	IncludePatterns      []string `json:"include_patterns"`
	ExcludePatterns      []string `json:"exclude_patterns"`
	MaxRetries           int      `json:"max_retries"`
	RequestTimeoutMs     int      `json:"request_timeout_ms"`
}

// DefaultJobConfig mirrors the bounds and defaults CreateJob applies.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		MaxDepth:             10,
		MaxPages:             100_000,
		MaxConcurrentWorkers: 10,
		CrawlDelayMs:         1000,
		RespectRobotsTxt:     true,
		IncludePatterns:      nil,
		ExcludePatterns:      nil,
		MaxRetries:           3,
		RequestTimeoutMs:     30_000,
	}
}

// Validate checks the config bounds, returning the first violation found.
func (c JobConfig) Validate() error {
	switch {
	case c.MaxDepth < 1 || c.MaxDepth > 50:
		return &ValidationError{Field: "maxDepth", Msg: "must be between 1 and 50"}
	case c.MaxPages < 1 || c.MaxPages > 150_000:
		return &ValidationError{Field: "maxPages", Msg: "must be between 1 and 150000"}
	case c.MaxConcurrentWorkers < 1 || c.MaxConcurrentWorkers > 50:
		return &ValidationError{Field: "maxConcurrentWorkers", Msg: "must be between 1 and 50"}
	case c.CrawlDelayMs < 100 || c.CrawlDelayMs > 10_000:
		return &ValidationError{Field: "crawlDelayMs", Msg: "must be between 100 and 10000"}
	}
	for _, p := range c.IncludePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return &ValidationError{Field: "includePatterns", Msg: "invalid regex: " + p}
		}
	}
	for _, p := range c.ExcludePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return &ValidationError{Field: "excludePatterns", Msg: "invalid regex: " + p}
		}
	}
	return nil
}

// ValidationError is returned by Validate and rejected at the API
// boundary with no state change.
type ValidationError struct {
	Field string
	Msg    string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

// JobCounters are the mutable progress counters tracked on a Job.
type JobCounters struct {
	Discovered int `json:"discovered"`
	Crawled    int `json:"crawled"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Job is the durable record of one crawl job.
type Job struct {
	ID          string      `json:"id"`
	Config      JobConfig   `json:"config"`
	Status      JobStatus   `json:"status"`
	Counters    JobCounters `json:"counters"`
	LastError   string      `json:"last_error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CounterField names a JobCounters field for atomic increments.
type CounterField string

const (
	CounterDiscovered CounterField = "discovered"
	CounterCrawled    CounterField = "crawled"
	CounterFailed     CounterField = "failed"
	CounterSkipped    CounterField = "skipped"
)
