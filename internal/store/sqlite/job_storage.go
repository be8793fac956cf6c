package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

func joinPatterns(p []string) string {
	return strings.Join(p, "\n")
}

func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0).UTC()
}

// CreateJob inserts a new job with status=pending.
func (s *DB) CreateJob(ctx context.Context, cfg models.JobConfig) (models.Job, error) {
	job := models.Job{
		ID:        uuid.New().String(),
		Config:    cfg,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err := retryBusy(ctx, s.logger, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO job (
				id, seed_url, domain, max_depth, max_pages, max_concurrent_workers,
				crawl_delay_ms, respect_robots_txt, include_patterns, exclude_patterns,
				max_retries, request_timeout_ms, status, discovered, crawled, failed,
				skipped, last_error, created_at, started_at, completed_at, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,0,0,0,0,'',?,NULL,NULL,?)`,
			job.ID, cfg.SeedURL, cfg.Domain, cfg.MaxDepth, cfg.MaxPages, cfg.MaxConcurrentWorkers,
			cfg.CrawlDelayMs, boolToInt(cfg.RespectRobotsTxt), joinPatterns(cfg.IncludePatterns), joinPatterns(cfg.ExcludePatterns),
			cfg.MaxRetries, cfg.RequestTimeoutMs, string(job.Status),
			job.CreatedAt.Unix(), job.UpdatedAt.Unix(),
		)
		return execErr
	})
	if err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const jobColumns = `id, seed_url, domain, max_depth, max_pages, max_concurrent_workers,
	crawl_delay_ms, respect_robots_txt, include_patterns, exclude_patterns,
	max_retries, request_timeout_ms, status, discovered, crawled, failed,
	skipped, last_error, created_at, started_at, completed_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (models.Job, error) {
	var j models.Job
	var respectRobots int
	var include, exclude string
	var createdAt, updatedAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&j.ID, &j.Config.SeedURL, &j.Config.Domain, &j.Config.MaxDepth, &j.Config.MaxPages, &j.Config.MaxConcurrentWorkers,
		&j.Config.CrawlDelayMs, &respectRobots, &include, &exclude,
		&j.Config.MaxRetries, &j.Config.RequestTimeoutMs, &j.Status, &j.Counters.Discovered, &j.Counters.Crawled, &j.Counters.Failed,
		&j.Counters.Skipped, &j.LastError, &createdAt, &startedAt, &completedAt, &updatedAt,
	)
	if err != nil {
		return models.Job{}, err
	}
	j.Config.RespectRobotsTxt = respectRobots != 0
	j.Config.IncludePatterns = splitPatterns(include)
	j.Config.ExcludePatterns = splitPatterns(exclude)
	j.CreatedAt = time.Unix(createdAt, 0).UTC()
	j.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	j.StartedAt = fromNullableUnix(startedAt)
	j.CompletedAt = fromNullableUnix(completedAt)
	return j, nil
}

// GetJob looks up a job by id, returning store.ErrNotFound if absent.
func (s *DB) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return models.Job{}, store.ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns a bounded, optionally status-filtered page of jobs.
func (s *DB) ListJobs(ctx context.Context, status models.JobStatus, limit, offset int) ([]models.Job, int, error) {
	var (
		rows      *sql.Rows
		countRow  *sql.Row
		err       error
	)
	if status != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM job WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, string(status), limit, offset)
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job WHERE status = ?`, string(status))
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM job ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job`)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}
	return jobs, total, nil
}

// UpdateJobStatus transitions status and applies the optional patch
// fields.
func (s *DB) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, patch store.JobPatch) error {
	return retryBusy(ctx, s.logger, func() error {
		now := time.Now().UTC().Unix()
		args := []any{string(status), now}
		setClauses := "status = ?, updated_at = ?"

		if patch.LastError != nil {
			setClauses += ", last_error = ?"
			args = append(args, *patch.LastError)
		}
		if patch.StartedAt != nil {
			setClauses += ", started_at = ?"
			args = append(args, patch.StartedAt.Unix())
		}
		if patch.CompletedAt != nil {
			setClauses += ", completed_at = ?"
			args = append(args, patch.CompletedAt.Unix())
		}
		args = append(args, id)

		res, err := s.db.ExecContext(ctx, `UPDATE job SET `+setClauses+` WHERE id = ?`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// IncrementCounter performs an atomic SQL increment (field = field +
// delta), never a read-modify-write.
func (s *DB) IncrementCounter(ctx context.Context, id string, field models.CounterField, delta int) error {
	column, ok := map[models.CounterField]string{
		models.CounterDiscovered: "discovered",
		models.CounterCrawled:    "crawled",
		models.CounterFailed:     "failed",
		models.CounterSkipped:    "skipped",
	}[field]
	if !ok {
		return fmt.Errorf("increment counter: unknown field %q", field)
	}

	return retryBusy(ctx, s.logger, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE job SET `+column+` = `+column+` + ?, updated_at = ? WHERE id = ?`,
			delta, time.Now().UTC().Unix(), id,
		)
		return err
	})
}

// DeleteJob cascades to pages and frontier entries: a Job owns its Pages
// and FrontierEntries.
func (s *DB) DeleteJob(ctx context.Context, id string) error {
	return retryBusy(ctx, s.logger, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM frontier_entry WHERE job_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM page WHERE job_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM job WHERE id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
}
