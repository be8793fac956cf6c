package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/VamsiGaletiInfinize/crawler/internal/models"
)

// UpsertRobots stores the parsed robots.txt record for a domain,
// replacing any prior record. RobotsRecord is globally shared by domain,
// not owned by a job.
func (s *DB) UpsertRobots(ctx context.Context, r models.RobotsRecord) error {
	return retryBusy(ctx, s.logger, func() error {
		var body sql.NullString
		if r.Body != nil {
			body = sql.NullString{String: *r.Body, Valid: true}
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO robots_record (domain, body, has_crawl_delay, crawl_delay_ms, fetched_at, expires_at)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(domain) DO UPDATE SET
				body = excluded.body,
				has_crawl_delay = excluded.has_crawl_delay,
				crawl_delay_ms = excluded.crawl_delay_ms,
				fetched_at = excluded.fetched_at,
				expires_at = excluded.expires_at`,
			r.Domain, body, boolToInt(r.HasCrawlDelay), r.CrawlDelay.Milliseconds(), r.FetchedAt.Unix(), r.ExpiresAt.Unix(),
		)
		return err
	})
}

// GetRobots returns the cached record for domain if it exists and has not
// expired (expiresAt > now()).
func (s *DB) GetRobots(ctx context.Context, domain string) (models.RobotsRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT domain, body, has_crawl_delay, crawl_delay_ms, fetched_at, expires_at FROM robots_record WHERE domain = ?`, domain)

	var r models.RobotsRecord
	var body sql.NullString
	var hasCrawlDelay int
	var crawlDelayMs int64
	var fetchedAt, expiresAt int64

	err := row.Scan(&r.Domain, &body, &hasCrawlDelay, &crawlDelayMs, &fetchedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return models.RobotsRecord{}, false, nil
	}
	if err != nil {
		return models.RobotsRecord{}, false, fmt.Errorf("get robots: %w", err)
	}

	if body.Valid {
		b := body.String
		r.Body = &b
	}
	r.HasCrawlDelay = hasCrawlDelay != 0
	r.CrawlDelay = time.Duration(crawlDelayMs) * time.Millisecond
	r.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	r.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	if time.Now().UTC().After(r.ExpiresAt) {
		return models.RobotsRecord{}, false, nil
	}
	return r, true, nil
}
