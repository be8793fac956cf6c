// Command crawld is the daemon entrypoint: it loads configuration, sets
// up logging, opens the store, wires every core component together, and
// serves the Control API over HTTP. A single flag-based main, not a
// multi-command CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VamsiGaletiInfinize/crawler/internal/config"
	"github.com/VamsiGaletiInfinize/crawler/internal/fetcher"
	"github.com/VamsiGaletiInfinize/crawler/internal/frontier"
	"github.com/VamsiGaletiInfinize/crawler/internal/httpapi"
	"github.com/VamsiGaletiInfinize/crawler/internal/jobmanager"
	"github.com/VamsiGaletiInfinize/crawler/internal/logging"
	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/ratelimiter"
	"github.com/VamsiGaletiInfinize/crawler/internal/robots"
	"github.com/VamsiGaletiInfinize/crawler/internal/store/sqlite"
)

var (
	configPath = flag.String("config", "crawld.toml", "path to the TOML configuration file")
	port       = flag.Int("port", 0, "HTTP bind port (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.Setup(cfg.Logging)
	defer logging.Stop()

	db, err := sqlite.Open(sqlite.Config{Path: cfg.Store.Path, BusyTimeoutMS: 5000, WALMode: true}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	fr := frontier.New(db)
	rp := robots.New(db, cfg.Crawler.UserAgent, time.Duration(cfg.Crawler.RobotsFetchTimeoutMs)*time.Millisecond, logger)
	rl := ratelimiter.NewRegistry(time.Duration(cfg.Crawler.DefaultCrawlDelayMs) * time.Millisecond)
	fx := fetcher.NewHTTPFetcher(cfg.Crawler.UserAgent)
	le := fetcher.NewGoqueryLinkExtractor()
	me := fetcher.NewGoqueryMetadataExtractor()

	manager := jobmanager.New(db, fr, rp, rl, fx, le, me, logger)

	// Recovery: rebind any job left `running` by a prior process — no job
	// is left un-owned after startup.
	ctx := context.Background()
	if err := manager.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("job recovery failed")
	}

	jobDefaults := models.DefaultJobConfig()
	jobDefaults.MaxDepth = cfg.Crawler.DefaultMaxDepth
	jobDefaults.MaxPages = cfg.Crawler.DefaultMaxPages
	jobDefaults.MaxConcurrentWorkers = cfg.Crawler.DefaultConcurrency
	jobDefaults.CrawlDelayMs = cfg.Crawler.DefaultCrawlDelayMs
	jobDefaults.RequestTimeoutMs = cfg.Crawler.RequestTimeoutMs

	router := httpapi.NewRouter(httpapi.NewHandler(manager, db, logger, jobDefaults))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("crawld listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	manager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
