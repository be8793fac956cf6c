package models

import "time"

// RobotsRecord is the durable, domain-keyed cache of a parsed robots.txt.
// A nil Body means "absent, treat as allow-all".
type RobotsRecord struct {
	Domain        string        `json:"domain"`
	Body          *string       `json:"body,omitempty"`
	CrawlDelay    time.Duration `json:"crawl_delay,omitempty"`
	HasCrawlDelay bool          `json:"has_crawl_delay"`
	FetchedAt     time.Time     `json:"fetched_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// RobotsTTL is the 24h validity window for a cached robots.txt record.
const RobotsTTL = 24 * time.Hour
