// Package app builds the long-lived services a menusync command needs from
// its configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/dining-menu-sync/internal/archive"
	gcsarchive "github.com/JakeFAU/dining-menu-sync/internal/archive/gcs"
	localarchive "github.com/JakeFAU/dining-menu-sync/internal/archive/local"
	"github.com/JakeFAU/dining-menu-sync/internal/clock/system"
	"github.com/JakeFAU/dining-menu-sync/internal/config"
	"github.com/JakeFAU/dining-menu-sync/internal/directory"
	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	firestoredoc "github.com/JakeFAU/dining-menu-sync/internal/docstore/firestore"
	memorydoc "github.com/JakeFAU/dining-menu-sync/internal/docstore/memory"
	postgresdoc "github.com/JakeFAU/dining-menu-sync/internal/docstore/postgres"
	collyfetcher "github.com/JakeFAU/dining-menu-sync/internal/fetcher/colly"
	"github.com/JakeFAU/dining-menu-sync/internal/fetcher/graphql"
	"github.com/JakeFAU/dining-menu-sync/internal/fetcher/headless"
	"github.com/JakeFAU/dining-menu-sync/internal/hash/sha256"
	"github.com/JakeFAU/dining-menu-sync/internal/id/uuid"
	"github.com/JakeFAU/dining-menu-sync/internal/ingest"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	pubsubpublisher "github.com/JakeFAU/dining-menu-sync/internal/publisher/pubsub"
	"github.com/JakeFAU/dining-menu-sync/internal/reconcile"
	"github.com/JakeFAU/dining-menu-sync/internal/tagger"
	"github.com/JakeFAU/dining-menu-sync/internal/telemetry"
)

// App holds the services shared by the commands.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Store  docstore.Store
	Source menu.Source
	Clock  menu.Clock
	Runner *ingest.Runner

	closers []func() error
}

// New initializes every service named by cfg. It fails fast and releases
// whatever was already opened when a service cannot be built.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	loc, err := cfg.Campus.Location()
	if err != nil {
		return err
	}
	a.Clock = system.New(loc)

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		GRPCEndpoint: cfg.Telemetry.GRPCEndpoint,
		HTTPEndpoint: cfg.Telemetry.HTTPEndpoint,
		Headers:      cfg.Telemetry.Headers,
	}, a.Logger.Named("telemetry"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	a.Store = store

	daily := graphql.New(graphql.Config{
		Endpoint:  cfg.MenuAPI.Endpoint,
		Origin:    cfg.MenuAPI.Origin,
		Referer:   cfg.MenuAPI.Referer,
		UserAgent: cfg.MenuAPI.UserAgent,
		Timeout:   cfg.MenuAPI.Timeout,
	}, a.Logger.Named("graphql"))
	history := graphql.New(graphql.Config{
		Endpoint:  cfg.MenuAPI.Endpoint,
		Origin:    cfg.MenuAPI.Origin,
		Referer:   cfg.MenuAPI.Referer,
		UserAgent: cfg.MenuAPI.UserAgent,
		Timeout:   cfg.MenuAPI.HistoryTimeout,
	}, a.Logger.Named("graphql"))
	a.Source = daily

	recorder, err := a.openArchive(ctx)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}

	policy, err := reconcile.PolicyByName(cfg.Reconcile.Policy)
	if err != nil {
		return err
	}

	deps := ingest.Deps{
		Store:         store,
		Source:        daily,
		HistorySource: history,
		Directory:     a.buildDirectory(),
		Tagger:        tagger.New(),
		Archive:       recorder,
		Clock:         a.Clock,
		IDs:           uuid.New(),
	}
	// Leave Publisher nil when notify is disabled.
	if publisher != nil {
		deps.Publisher = publisher
	}
	a.Runner = ingest.New(deps, ingest.Config{
		Halls: cfg.Halls,
		Daily: reconcile.Config{
			MaxBatchOps: cfg.Reconcile.MaxBatchOps,
			Pause:       cfg.Reconcile.Pause,
			SlugLength:  cfg.Reconcile.SlugLength,
			Policy:      policy,
		},
		SeededScores: cfg.Reconcile.SeededScores,
		HistoryDays:  cfg.History.Days,
		History: reconcile.Config{
			MaxBatchOps: cfg.History.MaxBatchOps,
			Pause:       cfg.History.Pause,
			SlugLength:  cfg.History.SlugLength,
			Policy:      reconcile.HistoryPolicy,
		},
		Retail: reconcile.Config{
			MaxBatchOps: cfg.Retail.MaxBatchOps,
			Policy:      policy,
		},
		RetailPause: cfg.Retail.Pause,
	}, a.Logger.Named("ingest"))
	return nil
}

func (a *App) openStore(ctx context.Context) (docstore.Store, error) {
	cfg := a.Config.Store
	switch cfg.Backend {
	case config.BackendMemory:
		a.Logger.Warn("using in-memory store; writes are discarded on exit")
		return memorydoc.New(), nil
	case config.BackendFirestore:
		s, err := firestoredoc.New(ctx, firestoredoc.Config{
			ProjectID:       cfg.ProjectID,
			CredentialsFile: cfg.CredentialsFile,
		}, a.Logger.Named("firestore"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.Logger.Info("connected to firestore", zap.String("project_id", cfg.ProjectID))
		return s, nil
	case config.BackendPostgres:
		s, err := postgresdoc.New(ctx, postgresdoc.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.Logger.Info("connected to postgres")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) openArchive(ctx context.Context) (*archive.Recorder, error) {
	cfg := a.Config.Archive
	var store menu.Archive
	switch cfg.Backend {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveLocal:
		s, err := localarchive.New(localarchive.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, err
		}
		store = s
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx, a.clientOptions()...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		s, err := gcsarchive.New(client, gcsarchive.Config{Bucket: cfg.Bucket})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
	a.Logger.Info("archiving raw payloads", zap.String("backend", cfg.Backend))
	return archive.NewRecorder(store, sha256.New(), cfg.Prefix, a.Logger.Named("archive")), nil
}

func (a *App) openPublisher(ctx context.Context) (*pubsubpublisher.Publisher, error) {
	cfg := a.Config.Notify
	if cfg.Topic == "" {
		return nil, nil
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = a.Config.Store.ProjectID
	}
	if projectID == "" {
		projectID = pubsub.DetectProjectID
	}
	client, err := pubsub.NewClient(ctx, projectID, a.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p := pubsubpublisher.New(client.Topic(cfg.Topic))
	a.closers = append(a.closers, func() error {
		p.Stop()
		return client.Close()
	})
	a.Logger.Info("publishing run reports", zap.String("topic", cfg.Topic))
	return p, nil
}

func (a *App) buildDirectory() *directory.Crawler {
	cfg := a.Config.Directory
	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
		Timeout:       cfg.PageTimeout,
	}, a.Logger.Named("colly"))
	var fallback menu.PageFetcher
	if cfg.HeadlessFallback {
		h := headless.NewChromedp(headless.Config{
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: cfg.HeadlessTimeout,
		}, a.Logger.Named("headless"))
		a.closers = append(a.closers, func() error {
			h.Close()
			return nil
		})
		fallback = h
	}
	return directory.New(directory.Config{
		IndexURL:     cfg.IndexURL,
		IndexTimeout: cfg.IndexTimeout,
		PageTimeout:  cfg.PageTimeout,
	}, pages, fallback, a.Logger.Named("directory"))
}

func (a *App) clientOptions() []option.ClientOption {
	if f := a.Config.Store.CredentialsFile; f != "" {
		return []option.ClientOption{option.WithCredentialsFile(f)}
	}
	return nil
}

// Run executes one ingestion job.
func (a *App) Run(ctx context.Context, kind string) (menu.RunReport, error) {
	return a.Runner.Run(ctx, kind)
}

// Reset deletes the location collections and everything under them.
func (a *App) Reset(ctx context.Context, collections []string) (map[string]int, error) {
	return ingest.Reset(ctx, a.Store, collections, a.Logger)
}

// Show prints the menus served on date, today in the campus zone when empty.
func (a *App) Show(ctx context.Context, out io.Writer, date string) error {
	if date == "" {
		date = a.Clock.Now().Format(time.DateOnly)
	}
	return ingest.Show(ctx, out, a.Source, a.Config.Halls, date, a.Logger)
}

// Ready checks that the store answers reads. A missing readiness document
// still counts as ready.
func (a *App) Ready(ctx context.Context) error {
	if a.Store == nil {
		return errors.New("store is not initialized")
	}
	_, err := a.Store.Get(ctx, docstore.Doc(reconcile.CollectionGlobalDishes, "_ready"))
	if err == nil || errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}

// Close shuts down services in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error shutting down services", zap.Error(err))
		return err
	}
	return nil
}
