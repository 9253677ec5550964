package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/config"
	"github.com/placedir/refresh-cli/internal/enrich"
	"github.com/placedir/refresh-cli/internal/place"
	"github.com/placedir/refresh-cli/internal/queue"
	"github.com/placedir/refresh-cli/internal/scrape"
	"github.com/placedir/refresh-cli/internal/worker"
	"github.com/placedir/refresh-cli/pkg/firecrawl"
	"github.com/placedir/refresh-cli/pkg/jina"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "refresh-cli",
	Short: "Place data refresh pipeline",
	Long:  "Maintains a durable refresh queue for directory listings, fetches place websites, reconciles hours, ratings and descriptions from multiple sources, and scores record quality.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stores bundles the two data stores, which share a single database
// connection under the hood.
type stores struct {
	jobs   queue.Store
	places place.Store
}

func (s *stores) close() {
	// The queue store shares the place store's connection, so closing the
	// place store is enough.
	if s.places != nil {
		_ = s.places.Close()
	}
}

func openStores(ctx context.Context) (*stores, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		places, err := place.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		jobs := queue.NewSQLiteWithDB(places.DB(), cfg.Queue.MaxAttempts)
		return &stores{jobs: jobs, places: places}, nil
	case "postgres", "":
		places, err := place.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		jobs := queue.NewPostgresWithPool(places.Pool(), cfg.Queue.MaxAttempts)
		return &stores{jobs: jobs, places: places}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// fetchHTTPClient builds the HTTP client shared by fetch sources,
// honoring the configured per-request timeout.
func fetchHTTPClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

func buildWorker(st *stores) (*worker.Worker, error) {
	hc := fetchHTTPClient(cfg.Fetch.TimeoutSecs)

	var fetchers []scrape.Fetcher
	if cfg.Jina.Key != "" {
		client := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL), jina.WithHTTPClient(hc))
		fetchers = append(fetchers, scrape.NewJinaFetcher(client, cfg.Fetch.RateLimit))
	}
	if cfg.Firecrawl.Key != "" {
		client := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL), firecrawl.WithHTTPClient(hc))
		fetchers = append(fetchers, scrape.NewFirecrawlFetcher(client))
	}
	if len(fetchers) == 0 {
		return nil, fmt.Errorf("no fetch source configured: set jina.key or firecrawl.key")
	}

	reconcileCfg := enrich.DefaultConfig()
	if cfg.Reconcile.ConfigPath != "" {
		c, err := enrich.LoadConfig(cfg.Reconcile.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load reconcile config: %w", err)
		}
		reconcileCfg = c
	}

	source := worker.NewMultiSource(worker.NewWebSource(scrape.NewChain(fetchers...)))
	return worker.New(st.jobs, st.places, source, enrich.New(reconcileCfg),
		worker.WithConcurrency(cfg.Worker.Concurrency),
		worker.WithJobTimeout(time.Duration(cfg.Worker.JobTimeoutSecs)*time.Second),
	), nil
}
