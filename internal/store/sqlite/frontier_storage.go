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

// EnqueueURLs batch-upserts frontier entries (and their backing pages are
// expected to already exist via UpsertPage), insert-if-absent on
// (jobID, normalizedURL). discovered is the count of rows newly inserted.
func (s *DB) EnqueueURLs(ctx context.Context, jobID string, items []store.EnqueueItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	discovered := 0
	err := retryBusy(ctx, s.logger, func() error {
		discovered = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO frontier_entry (id, job_id, url, normalized_url, depth, priority, retry_count, status, created_at)
			VALUES (?,?,?,?,?,?,0,?,?)
			ON CONFLICT(job_id, normalized_url) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC().Unix()
		for _, item := range items {
			res, execErr := stmt.ExecContext(ctx, uuid.New().String(), jobID, item.URL, item.NormalizedURL, item.Depth, item.Priority, string(models.FrontierPending), now)
			if execErr != nil {
				return execErr
			}
			n, raErr := res.RowsAffected()
			if raErr != nil {
				return raErr
			}
			discovered += int(n)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue urls: %w", err)
	}
	return discovered, nil
}

// ClaimPending is the correctness-critical primitive: it atomically
// selects up to n pending entries with the highest priority (oldest
// createdAt breaking ties), marks them claimed, and returns them. SQLite
// has no SKIP LOCKED, but the single-writer connection pool plus a
// transaction gives equivalent exactly-once-claim semantics — no other
// writer can interleave between the SELECT and the UPDATE.
func (s *DB) ClaimPending(ctx context.Context, jobID string, n int) ([]models.FrontierEntry, error) {
	var claimed []models.FrontierEntry

	err := retryBusy(ctx, s.logger, func() error {
		claimed = nil
		// The connection pool is capped at one connection (see connection.go),
		// so this transaction is already serialized against every other
		// claimer — no other writer can interleave between the SELECT and
		// the UPDATE below.
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := time.Now().UTC().Unix()
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM frontier_entry
			WHERE job_id = ? AND status = ? AND (not_before IS NULL OR not_before <= ?)
			ORDER BY priority DESC, created_at ASC
			LIMIT ?`, jobID, string(models.FrontierPending), now, n)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(ids) == 0 {
			return tx.Commit()
		}

		placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, 0, len(ids)+2)
		args = append(args, string(models.FrontierClaimed), now)
		for _, id := range ids {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE frontier_entry SET status = ?, claimed_at = ? WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return err
		}

		selectArgs := make([]any, 0, len(ids))
		for _, id := range ids {
			selectArgs = append(selectArgs, id)
		}
		entryRows, err := tx.QueryContext(ctx, `SELECT `+frontierColumns+` FROM frontier_entry WHERE id IN (`+placeholders+`) ORDER BY priority DESC, created_at ASC`, selectArgs...)
		if err != nil {
			return err
		}
		defer entryRows.Close()
		for entryRows.Next() {
			e, scanErr := scanFrontierEntry(entryRows)
			if scanErr != nil {
				return scanErr
			}
			claimed = append(claimed, e)
		}
		if err := entryRows.Err(); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	return claimed, nil
}

const frontierColumns = `id, job_id, url, normalized_url, depth, priority, retry_count, status, not_before, created_at, claimed_at`

func scanFrontierEntry(row interface{ Scan(...any) error }) (models.FrontierEntry, error) {
	var e models.FrontierEntry
	var notBefore, claimedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(&e.ID, &e.JobID, &e.URL, &e.NormalizedURL, &e.Depth, &e.Priority, &e.RetryCount, &e.Status, &notBefore, &createdAt, &claimedAt)
	if err != nil {
		return models.FrontierEntry{}, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.NotBefore = fromNullableUnix(notBefore)
	e.ClaimedAt = fromNullableUnix(claimedAt)
	return e, nil
}

// MarkFrontier transitions a single entry's status, optionally bumping
// retryCount and setting a notBefore back-off deadline. ClaimPending
// ignores entries with notBefore > now().
func (s *DB) MarkFrontier(ctx context.Context, entryID string, status models.FrontierStatus, retryCount *int, notBefore *time.Time) error {
	return retryBusy(ctx, s.logger, func() error {
		set := "status = ?"
		args := []any{string(status)}
		if retryCount != nil {
			set += ", retry_count = ?"
			args = append(args, *retryCount)
		}
		if notBefore != nil {
			set += ", not_before = ?"
			args = append(args, notBefore.Unix())
		}
		args = append(args, entryID)
		_, err := s.db.ExecContext(ctx, `UPDATE frontier_entry SET `+set+` WHERE id = ?`, args...)
		return err
	})
}

// ClearFrontier deletes all frontier entries for a job, used on cancel
// and job deletion.
func (s *DB) ClearFrontier(ctx context.Context, jobID string) error {
	return retryBusy(ctx, s.logger, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM frontier_entry WHERE job_id = ?`, jobID)
		return err
	})
}

// CountPending returns the number of still-pending frontier entries.
func (s *DB) CountPending(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frontier_entry WHERE job_id = ? AND status = ?`, jobID, string(models.FrontierPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// QueueStats reports the completion detector's (pending, claimed) pair
// plus page-status aggregates.
func (s *DB) QueueStats(ctx context.Context, jobID string) (store.QueueStats, error) {
	var stats store.QueueStats

	row := s.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM frontier_entry WHERE job_id = ?`,
		string(models.FrontierPending), string(models.FrontierClaimed), jobID,
	)
	var pending, claimedCount sql.NullInt64
	if err := row.Scan(&pending, &claimedCount); err != nil {
		return stats, fmt.Errorf("queue stats (frontier): %w", err)
	}
	stats.Pending = int(pending.Int64)
	stats.Claimed = int(claimedCount.Int64)

	pageRow := s.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM page WHERE job_id = ?`,
		string(models.PageStatusCompleted), string(models.PageStatusFailed), string(models.PageStatusSkipped), jobID,
	)
	var completed, failed, skipped sql.NullInt64
	if err := pageRow.Scan(&completed, &failed, &skipped); err != nil {
		return stats, fmt.Errorf("queue stats (pages): %w", err)
	}
	stats.Completed = int(completed.Int64)
	stats.Failed = int(failed.Int64)
	stats.Skipped = int(skipped.Int64)

	return stats, nil
}
