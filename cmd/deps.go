package cmd

import (
	"context"
	"fmt"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	archivegcs "github.com/shelfwise/catalog-scraper/internal/archive/gcs"
	archivelocal "github.com/shelfwise/catalog-scraper/internal/archive/local"
	"github.com/shelfwise/catalog-scraper/internal/clock/system"
	"github.com/shelfwise/catalog-scraper/internal/config"
	eventspubsub "github.com/shelfwise/catalog-scraper/internal/events/pubsub"
	"github.com/shelfwise/catalog-scraper/internal/id/uuid"
	"github.com/shelfwise/catalog-scraper/internal/logging"
	"github.com/shelfwise/catalog-scraper/internal/scraper"
	"github.com/shelfwise/catalog-scraper/internal/storage/memory"
	"github.com/shelfwise/catalog-scraper/internal/storage/postgres"
)

// catalogStore is the combined persistence surface the service needs.
type catalogStore interface {
	scraper.CategoryStore
	scraper.ProductStore
}

// services bundles everything a command needs, plus the teardown hooks
// collected while building it.
type services struct {
	cfg         config.Config
	scrapeCfg   scraper.Config
	logger      *zap.Logger
	store       catalogStore
	coordinator *scraper.Coordinator
	cleanups    []func()
}

func (s *services) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

func buildServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load service config: %w", err)
	}
	scrapeCfg, err := scraper.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load scraper config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	svc := &services{cfg: cfg, scrapeCfg: scrapeCfg, logger: logger}
	svc.cleanups = append(svc.cleanups, func() { _ = logger.Sync() })

	if err := svc.buildStore(ctx); err != nil {
		svc.close()
		return nil, err
	}

	archive, err := svc.buildArchive(ctx)
	if err != nil {
		svc.close()
		return nil, err
	}
	events, err := svc.buildEvents(ctx)
	if err != nil {
		svc.close()
		return nil, err
	}

	fetcher, err := scraper.NewCollyFetcher(scrapeCfg, logger)
	if err != nil {
		svc.close()
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	sessions := func() (scraper.Renderer, error) {
		return scraper.NewChromedpRenderer(scrapeCfg, logger)
	}

	svc.coordinator = scraper.NewCoordinator(
		scrapeCfg,
		fetcher,
		sessions,
		scraper.NewHeuristicDetector(scrapeCfg),
		svc.store,
		svc.store,
		archive,
		events,
		uuid.NewGenerator(),
		system.New(),
		logger,
	)
	return svc, nil
}

func (s *services) buildStore(ctx context.Context) error {
	if s.cfg.DB.DSN == "" {
		s.logger.Warn("db.dsn is empty; using the in-memory catalog store")
		s.store = memory.NewCatalogStore()
		return nil
	}
	store, err := postgres.NewCatalogStore(ctx, postgres.CatalogStoreConfig{
		DSN:             s.cfg.DB.DSN,
		CategoriesTable: s.cfg.DB.CategoriesTable,
		ProductsTable:   s.cfg.DB.ProductsTable,
		MaxConns:        s.cfg.DB.MaxConns,
		MinConns:        s.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init catalog store: %w", err)
	}
	s.store = store
	s.cleanups = append(s.cleanups, store.Close)
	return nil
}

func (s *services) buildArchive(ctx context.Context) (scraper.BlobStore, error) {
	if !s.cfg.Archive.Enabled {
		return nil, nil
	}
	switch s.cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		s.cleanups = append(s.cleanups, func() { _ = client.Close() })
		return archivegcs.New(client, archivegcs.Config{Bucket: s.cfg.Archive.Bucket})
	default:
		return archivelocal.New(archivelocal.Config{BaseDir: s.cfg.Archive.BaseDir})
	}
}

func (s *services) buildEvents(ctx context.Context) (scraper.Publisher, error) {
	if !s.cfg.Events.Enabled {
		return nil, nil
	}
	client, err := gcpubsub.NewClient(ctx, s.cfg.Events.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	s.cleanups = append(s.cleanups, func() { _ = client.Close() })
	return eventspubsub.New(client), nil
}
