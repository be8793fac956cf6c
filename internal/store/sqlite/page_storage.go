package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// UpsertPage inserts a Page with status=pending if the (jobID,
// normalizedURL) key is new; otherwise it is a no-op. inserted reports
// which happened.
func (s *DB) UpsertPage(ctx context.Context, jobID, rawURL, normalizedURL string, depth int) (string, bool, error) {
	var pageID string
	var inserted bool

	err := retryBusy(ctx, s.logger, func() error {
		var existing string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM page WHERE job_id = ? AND normalized_url = ?`, jobID, normalizedURL).Scan(&existing)
		if err == nil {
			pageID = existing
			inserted = false
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		pageID = uuid.New().String()
		now := time.Now().UTC().Unix()
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO page (id, job_id, url, normalized_url, depth, status, created_at)
			VALUES (?,?,?,?,?,?,?)`,
			pageID, jobID, rawURL, normalizedURL, depth, string(models.PageStatusPending), now,
		)
		if execErr != nil {
			// A concurrent writer may have inserted first; treat the unique
			// constraint violation as "already present", not an error.
			row := s.db.QueryRowContext(ctx, `SELECT id FROM page WHERE job_id = ? AND normalized_url = ?`, jobID, normalizedURL)
			if scanErr := row.Scan(&pageID); scanErr == nil {
				inserted = false
				return nil
			}
			return execErr
		}
		inserted = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("upsert page: %w", err)
	}
	return pageID, inserted, nil
}

// UpdatePage applies a terminal or in-progress status transition and the
// associated field patch to the page keyed by (jobID, normalizedURL).
func (s *DB) UpdatePage(ctx context.Context, jobID, normalizedURL string, status models.PageStatus, patch store.PagePatch) error {
	return retryBusy(ctx, s.logger, func() error {
		args := []any{string(status)}
		set := "status = ?"

		if patch.HTTPStatus != 0 {
			set += ", http_status = ?"
			args = append(args, patch.HTTPStatus)
		}
		if patch.ContentType != "" {
			set += ", content_type = ?"
			args = append(args, patch.ContentType)
		}
		if patch.ContentLen != 0 {
			set += ", content_length = ?"
			args = append(args, patch.ContentLen)
		}
		if patch.Title != "" {
			set += ", title = ?"
			args = append(args, patch.Title)
		}
		if patch.Description != "" {
			set += ", description = ?"
			args = append(args, patch.Description)
		}
		if patch.Content != "" {
			set += ", content = ?"
			args = append(args, models.TruncateContent(patch.Content))
		}
		if patch.LinksFound != 0 {
			set += ", links_found = ?"
			args = append(args, patch.LinksFound)
		}
		if !patch.CrawledAt.IsZero() {
			set += ", crawled_at = ?"
			args = append(args, patch.CrawledAt.Unix())
		}
		if patch.DurationMs != 0 {
			set += ", duration_ms = ?"
			args = append(args, patch.DurationMs)
		}
		if patch.ErrorMessage != "" {
			set += ", error_message = ?"
			args = append(args, patch.ErrorMessage)
		}
		if patch.RetryCount != nil {
			set += ", retry_count = ?"
			args = append(args, *patch.RetryCount)
		}

		args = append(args, jobID, normalizedURL)
		res, err := s.db.ExecContext(ctx, `UPDATE page SET `+set+` WHERE job_id = ? AND normalized_url = ?`, args...)
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

const pageColumns = `id, job_id, url, normalized_url, depth, status, http_status,
	content_type, content_length, title, description, content, links_found,
	crawled_at, duration_ms, error_message, retry_count`

func scanPage(row interface{ Scan(...any) error }) (models.Page, error) {
	var p models.Page
	var crawledAt sql.NullInt64
	err := row.Scan(
		&p.ID, &p.JobID, &p.URL, &p.NormalizedURL, &p.Depth, &p.Status, &p.HTTPStatus,
		&p.ContentType, &p.ContentLength, &p.Title, &p.Description, &p.Content, &p.LinksFound,
		&crawledAt, &p.DurationMs, &p.ErrorMessage, &p.RetryCount,
	)
	if err != nil {
		return models.Page{}, err
	}
	p.CrawledAt = fromNullableUnix(crawledAt)
	return p, nil
}

// GetPage is a direct (jobID, pageID) indexed lookup: a real index hit,
// never a scan bounded by a fixed page-list window.
func (s *DB) GetPage(ctx context.Context, jobID, pageID string) (models.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM page WHERE job_id = ? AND id = ?`, jobID, pageID)
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return models.Page{}, store.ErrNotFound
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

// ListPages returns a bounded, optionally status-filtered page of pages.
func (s *DB) ListPages(ctx context.Context, jobID string, status *models.PageStatus, limit, offset int) ([]models.Page, int, error) {
	var rows *sql.Rows
	var countRow *sql.Row
	var err error

	if status != nil {
		rows, err = s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM page WHERE job_id = ? AND status = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`, jobID, string(*status), limit, offset)
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page WHERE job_id = ? AND status = ?`, jobID, string(*status))
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM page WHERE job_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`, jobID, limit, offset)
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page WHERE job_id = ?`, jobID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		p, scanErr := scanPage(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan page: %w", scanErr)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}
	return pages, total, nil
}

// StreamCompletedPages writes completed pages to w as they are read off
// the SQL cursor, never materializing the full result set in memory.
func (s *DB) StreamCompletedPages(ctx context.Context, jobID string, w io.Writer, format string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM page WHERE job_id = ? AND status = ? ORDER BY created_at ASC`, jobID, string(models.PageStatusCompleted))
	if err != nil {
		return fmt.Errorf("stream completed pages: %w", err)
	}
	defer rows.Close()

	switch format {
	case "csv":
		return streamCSV(rows, w)
	default:
		return streamJSON(rows, w)
	}
}

func streamJSON(rows *sql.Rows, w io.Writer) error {
	enc := json.NewEncoder(w)
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	first := true
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return fmt.Errorf("scan page: %w", err)
		}
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		first = false
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte("]")); err != nil {
		return err
	}
	return rows.Err()
}

func streamCSV(rows *sql.Rows, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{"id", "url", "normalized_url", "depth", "http_status", "title", "crawled_at"}); err != nil {
		return err
	}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return fmt.Errorf("scan page: %w", err)
		}
		record := []string{
			p.ID, p.URL, p.NormalizedURL, fmt.Sprint(p.Depth), fmt.Sprint(p.HTTPStatus), p.Title, p.CrawledAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}
	return rows.Err()
}
