package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/archive"
	"github.com/quirkauto/inventory-crawler/internal/config"
	"github.com/quirkauto/inventory-crawler/internal/fetch"
	"github.com/quirkauto/inventory-crawler/internal/harvest"
	"github.com/quirkauto/inventory-crawler/internal/history"
	"github.com/quirkauto/inventory-crawler/internal/inventory"
	"github.com/quirkauto/inventory-crawler/internal/logging"
	"github.com/quirkauto/inventory-crawler/internal/notify"
	"github.com/quirkauto/inventory-crawler/internal/pipeline"
	"github.com/quirkauto/inventory-crawler/internal/render"
	"github.com/quirkauto/inventory-crawler/internal/robots"
	"github.com/quirkauto/inventory-crawler/internal/vdp"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Crawl the dealership site and refresh the inventory snapshot",
		Long: `Walks both search segments, parses every vehicle detail page, and
rewrites the snapshot only when the normalized inventory actually changed.
If the site yields implausibly few vehicles the prior snapshot is kept.`,
		RunE: runScrape,
	}
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	runner, cleanup, err := buildRunner(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := runner.Run(cmd.Context()); err != nil {
		return err
	}
	return nil
}

// buildRunner wires the crawl pipeline from configuration. The returned
// cleanup closes every subsystem that holds external resources.
func buildRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Runner, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fetcher, err := fetch.NewCollyFetcher(fetch.CollyConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Referer:   cfg.Site.BaseURL,
		Timeout:   cfg.HTTP.Timeout,
	}, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("init fetcher: %w", err)
	}
	retry := fetch.NewRetryPolicy(cfg.HTTP.MaxAttempts, cfg.HTTP.BackoffBase, cfg.HTTP.BackoffMax)
	client := fetch.NewClient(fetcher, retry, logger)

	var pageFetcher archive.Fetcher = client
	if cfg.Archive.Enabled {
		store, storeCloser, err := buildArchiveStore(ctx, cfg, logger)
		if err != nil {
			return nil, cleanup, err
		}
		if storeCloser != nil {
			closers = append(closers, storeCloser)
		}
		pageFetcher = archive.NewRecordingFetcher(client, store, logger)
	}

	guard, err := robots.NewGuard(cfg.Robots.Enabled, cfg.Site.BaseURL, cfg.Crawler.UserAgent, cfg.Robots.FailOpen, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("init robots guard: %w", err)
	}

	renderer, detector, rendererCloser, err := buildRenderer(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	if rendererCloser != nil {
		closers = append(closers, rendererCloser)
	}

	harvester, err := harvest.New(harvest.Config{
		BaseURL:       cfg.Site.BaseURL,
		VDPPathMarker: cfg.Site.VDPPathMarker,
		MaxPages:      cfg.Crawler.MaxPages,
		Pause:         cfg.Crawler.SRPPause,
	}, pageFetcher, guard, renderer, detector, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("init harvester: %w", err)
	}

	parser := vdp.NewParser(pageFetcher, guard, logger)
	manager := inventory.NewSnapshotManager(cfg.Snapshot.Path, logger)

	var recorder pipeline.RunRecorder
	if cfg.History.DSN != "" {
		store, err := history.NewRunStore(ctx, history.StoreConfig{
			DSN:   cfg.History.DSN,
			Table: cfg.History.Table,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("init run history: %w", err)
		}
		closers = append(closers, store.Close)
		recorder = store
	}

	var notifier notify.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		publisher, err := notify.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, cleanup, fmt.Errorf("init pubsub publisher: %w", err)
		}
		closers = append(closers, func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Warn("Failed to close pubsub publisher", zap.Error(cerr))
			}
		})
		notifier = publisher
	}

	runner := pipeline.NewRunner(pipeline.Config{
		NewSRP:      cfg.Site.NewSRP,
		UsedSRP:     cfg.Site.UsedSRP,
		VDPPause:    cfg.Crawler.VDPPause,
		MinVehicles: cfg.Guardrail.MinVehicles,
		Topic:       cfg.PubSub.Topic,
	}, pipeline.Deps{
		Harvester: harvester,
		Parser:    parser,
		Snapshot:  manager,
		Merge:     inventory.MergePolicy{Preferred: inventory.StockType(cfg.Merge.PreferredStockType)},
		History:   recorder,
		Notifier:  notifier,
		Logger:    logger,
	})

	return runner, cleanup, nil
}

func buildArchiveStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.BlobStore, func(), error) {
	switch cfg.Archive.Backend {
	case "local":
		store, err := archive.NewLocalStore(cfg.Archive.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("init local archive: %w", err)
		}
		return store, nil, nil
	case "gcs":
		store, err := archive.NewGCSStore(ctx, cfg.Archive.Bucket, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs archive: %w", err)
		}
		closer := func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("Failed to close gcs archive", zap.Error(cerr))
			}
		}
		return store, closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (harvest.Renderer, harvest.Detector, func(), error) {
	if !cfg.Headless.Enabled {
		return nil, nil, nil, nil
	}
	renderer, err := render.NewChromedpRenderer(render.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		MaxParallel: cfg.Headless.MaxParallel,
		NavTimeout:  cfg.Headless.NavTimeout,
		QPS:         cfg.Headless.QPS,
	}, logger)
	switch {
	case err == nil:
		closer := func() {
			if cerr := renderer.Close(); cerr != nil {
				logger.Warn("Failed to close renderer", zap.Error(cerr))
			}
		}
		return renderer, render.DefaultDetector(), closer, nil
	case errors.Is(err, render.ErrDisabled):
		logger.Warn("Headless rendering disabled despite feature flag; using static pages only")
		return nil, nil, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("init renderer: %w", err)
	}
}
