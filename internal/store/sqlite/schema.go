package sqlite

// schemaSQL creates the four persisted relations: job, page,
// frontier_entry, robots_record. Timestamps are stored as Unix seconds to
// avoid driver-specific time marshaling.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS job (
	id                      TEXT PRIMARY KEY,
	seed_url                TEXT NOT NULL,
	domain                  TEXT NOT NULL,
	max_depth               INTEGER NOT NULL,
	max_pages               INTEGER NOT NULL,
	max_concurrent_workers  INTEGER NOT NULL,
	crawl_delay_ms          INTEGER NOT NULL,
	respect_robots_txt      INTEGER NOT NULL,
	include_patterns        TEXT NOT NULL DEFAULT '',
	exclude_patterns        TEXT NOT NULL DEFAULT '',
	max_retries             INTEGER NOT NULL,
	request_timeout_ms      INTEGER NOT NULL,
	status                  TEXT NOT NULL,
	discovered              INTEGER NOT NULL DEFAULT 0,
	crawled                 INTEGER NOT NULL DEFAULT 0,
	failed                  INTEGER NOT NULL DEFAULT 0,
	skipped                 INTEGER NOT NULL DEFAULT 0,
	last_error              TEXT NOT NULL DEFAULT '',
	created_at              INTEGER NOT NULL,
	started_at              INTEGER,
	completed_at            INTEGER,
	updated_at              INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_status ON job(status);

CREATE TABLE IF NOT EXISTS page (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL,
	url              TEXT NOT NULL,
	normalized_url   TEXT NOT NULL,
	depth            INTEGER NOT NULL,
	status           TEXT NOT NULL,
	http_status      INTEGER NOT NULL DEFAULT 0,
	content_type     TEXT NOT NULL DEFAULT '',
	content_length   INTEGER NOT NULL DEFAULT 0,
	title            TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL DEFAULT '',
	links_found      INTEGER NOT NULL DEFAULT 0,
	crawled_at       INTEGER,
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	retry_count      INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_page_job_normurl ON page(job_id, normalized_url);
CREATE INDEX IF NOT EXISTS idx_page_job_status ON page(job_id, status);

CREATE TABLE IF NOT EXISTS frontier_entry (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL,
	url              TEXT NOT NULL,
	normalized_url   TEXT NOT NULL,
	depth            INTEGER NOT NULL,
	priority         INTEGER NOT NULL,
	retry_count      INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	not_before       INTEGER,
	created_at       INTEGER NOT NULL,
	claimed_at       INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_frontier_job_normurl ON frontier_entry(job_id, normalized_url);
CREATE INDEX IF NOT EXISTS idx_frontier_claim ON frontier_entry(job_id, status, priority DESC, created_at ASC);

CREATE TABLE IF NOT EXISTS robots_record (
	domain           TEXT PRIMARY KEY,
	body             TEXT,
	has_crawl_delay  INTEGER NOT NULL DEFAULT 0,
	crawl_delay_ms   INTEGER NOT NULL DEFAULT 0,
	fetched_at       INTEGER NOT NULL,
	expires_at       INTEGER NOT NULL
);
`

// InitSchema executes the schema DDL, idempotent via IF NOT EXISTS.
func (s *DB) InitSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}
