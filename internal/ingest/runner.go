package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/archive"
	"github.com/JakeFAU/dining-menu-sync/internal/directory"
	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/metrics"
	"github.com/JakeFAU/dining-menu-sync/internal/normalize"
	"github.com/JakeFAU/dining-menu-sync/internal/policy/ratelimit"
	"github.com/JakeFAU/dining-menu-sync/internal/reconcile"
)

// Run kinds. They double as the notification topic attribute.
const (
	KindMenus   = "menus"
	KindHistory = "history"
	KindRetail  = "retail"
)

const dateLayout = "2006-01-02"

var tracer = otel.Tracer("github.com/JakeFAU/dining-menu-sync/internal/ingest")

// ErrRunInProgress is returned when a job is started while another runs.
var ErrRunInProgress = errors.New("another run is in progress")

// ErrUnknownKind is returned by Run for an unsupported kind.
var ErrUnknownKind = errors.New("unknown run kind")

// Directory discovers retail locations and scrapes their pages.
type Directory interface {
	Discover(ctx context.Context) ([]directory.Entry, error)
	Metadata(ctx context.Context, pageURL string) directory.Metadata
}

// Deps are the collaborators jobs use. Source serves the daily upload and
// HistorySource the backfill; when HistorySource is nil Source is used.
// Archive, Publisher and Directory are optional.
type Deps struct {
	Store         docstore.Store
	Source        menu.Source
	HistorySource menu.Source
	Directory     Directory
	Tagger        menu.Tagger
	Archive       *archive.Recorder
	Publisher     menu.Publisher
	Clock         menu.Clock
	IDs           menu.IDGenerator
}

// Config holds per-job tuning.
type Config struct {
	Halls        []menu.Hall
	Daily        reconcile.Config
	SeededScores int
	HistoryDays  int
	History      reconcile.Config
	Retail       reconcile.Config
	// RetailPause spaces location page fetches.
	RetailPause time.Duration
}

// Runner executes jobs, one at a time.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	mu     sync.Mutex
}

// New builds a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.HistorySource == nil {
		deps.HistorySource = deps.Source
	}
	if cfg.History.Policy.Name == "" {
		cfg.History.Policy = reconcile.HistoryPolicy
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger}
}

// Run dispatches to the job named by kind.
func (r *Runner) Run(ctx context.Context, kind string) (menu.RunReport, error) {
	switch kind {
	case KindMenus:
		return r.RunMenus(ctx)
	case KindHistory:
		return r.RunHistory(ctx)
	case KindRetail:
		return r.RunRetail(ctx)
	default:
		return menu.RunReport{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// RunMenus uploads today's menu for every configured hall.
func (r *Runner) RunMenus(ctx context.Context) (menu.RunReport, error) {
	return r.execute(ctx, KindMenus, func(ctx context.Context, report *menu.RunReport) (*reconcile.Run, error) {
		run := reconcile.New(r.deps.Store, r.deps.Tagger, r.scorer(), r.cfg.Daily, r.logger).Begin(report.RunID)
		date := r.deps.Clock.Now().Format(dateLayout)
		for _, hall := range r.cfg.Halls {
			if err := ctx.Err(); err != nil {
				return run, fmt.Errorf("%w: %w", reconcile.ErrRunAborted, err)
			}
			loc := menu.Location{ID: hall.ID, Name: hall.Name, Type: menu.LocationDiningHall}
			if err := run.UpsertLocation(ctx, loc); err != nil {
				return run, err
			}
			if err := r.ingestHall(ctx, run, r.deps.Source, KindMenus, hall, date, report); err != nil {
				return run, err
			}
		}
		return run, run.Finish(ctx)
	})
}

// RunHistory backfills the last HistoryDays days through today.
func (r *Runner) RunHistory(ctx context.Context) (menu.RunReport, error) {
	return r.execute(ctx, KindHistory, func(ctx context.Context, report *menu.RunReport) (*reconcile.Run, error) {
		run := reconcile.New(r.deps.Store, r.deps.Tagger, nil, r.cfg.History, r.logger).Begin(report.RunID)
		for _, date := range HistoryDates(r.deps.Clock.Now(), r.cfg.HistoryDays) {
			r.logger.Info("processing date", zap.String("date", date))
			for _, hall := range r.cfg.Halls {
				if err := ctx.Err(); err != nil {
					return run, fmt.Errorf("%w: %w", reconcile.ErrRunAborted, err)
				}
				if err := r.ingestHall(ctx, run, r.deps.HistorySource, KindHistory, hall, date, report); err != nil {
					return run, err
				}
			}
		}
		return run, run.Finish(ctx)
	})
}

// RunRetail discovers retail locations and upserts their records.
func (r *Runner) RunRetail(ctx context.Context) (menu.RunReport, error) {
	return r.execute(ctx, KindRetail, func(ctx context.Context, report *menu.RunReport) (*reconcile.Run, error) {
		run := reconcile.New(r.deps.Store, r.deps.Tagger, nil, r.cfg.Retail, r.logger).Begin(report.RunID)
		if r.deps.Directory == nil {
			return run, fmt.Errorf("retail upload: no directory configured")
		}
		entries, err := r.deps.Directory.Discover(ctx)
		if err != nil {
			return run, fmt.Errorf("discover retail locations: %w", err)
		}
		if len(entries) == 0 {
			r.logger.Warn("no retail locations found")
		}
		pacer := ratelimit.New(ratelimit.Config{Interval: r.cfg.RetailPause})
		for _, entry := range entries {
			if err := pacer.Wait(ctx, entry.URL); err != nil {
				return run, fmt.Errorf("%w: %w", reconcile.ErrRunAborted, err)
			}
			meta := r.deps.Directory.Metadata(ctx, entry.URL)
			r.logger.Info("retail location scanned",
				zap.String("location", entry.Name),
				zap.Bool("address", meta.Address != ""),
				zap.Bool("hours", meta.Hours != ""),
			)
			err := run.UpsertLocation(ctx, menu.Location{
				ID:      entry.ID,
				Name:    entry.Name,
				Type:    menu.LocationDiningPoint,
				Address: meta.Address,
				Hours:   meta.Hours,
				MenuURL: entry.URL,
			})
			if err != nil {
				return run, err
			}
			report.Locations++
		}
		return run, run.Finish(ctx)
	})
}

type jobFunc func(ctx context.Context, report *menu.RunReport) (*reconcile.Run, error)

func (r *Runner) execute(ctx context.Context, kind string, job jobFunc) (menu.RunReport, error) {
	if !r.mu.TryLock() {
		return menu.RunReport{}, ErrRunInProgress
	}
	defer r.mu.Unlock()

	id, err := r.deps.IDs.NewID()
	if err != nil {
		return menu.RunReport{}, err
	}
	report := menu.RunReport{RunID: id, Kind: kind, StartedAt: r.deps.Clock.Now()}
	r.logger.Info("run started", zap.String("kind", kind), zap.String("run_id", id))

	ctx, span := tracer.Start(ctx, "ingest."+kind)
	defer span.End()
	span.SetAttributes(attribute.String("run.id", id))

	run, jobErr := job(ctx, &report)
	if run != nil {
		report.Observations = run.Stats.Observations
		report.OpsQueued = run.Stats.OpsQueued
		report.BatchesCommitted = run.Stats.BatchesCommitted
		report.BatchesFailed = run.Stats.BatchesFailed
		report.SeededScores = run.Stats.SeededScores
	}
	report.FinishedAt = r.deps.Clock.Now()
	status := "ok"
	if jobErr != nil {
		report.Aborted = true
		report.ErrorText = jobErr.Error()
		status = "aborted"
		span.RecordError(jobErr)
		span.SetStatus(codes.Error, jobErr.Error())
	}
	span.SetAttributes(
		attribute.Int("run.locations", report.Locations),
		attribute.Int("run.observations", report.Observations),
		attribute.Int("run.batches", report.BatchesCommitted),
	)
	metrics.ObserveRun(kind, status, report.FinishedAt.Sub(report.StartedAt))

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("run_id", id),
		zap.Int("locations", report.Locations),
		zap.Int("locations_skipped", report.LocationsSkipped),
		zap.Int("observations", report.Observations),
		zap.Int("batches", report.BatchesCommitted),
		zap.Int("batches_failed", report.BatchesFailed),
	}
	if jobErr != nil {
		r.logger.Error("run aborted", append(fields, zap.Error(jobErr))...)
	} else {
		r.logger.Info("run finished", fields...)
	}
	r.publish(ctx, report)
	return report, jobErr
}

func (r *Runner) ingestHall(
	ctx context.Context,
	run *reconcile.Run,
	source menu.Source,
	kind string,
	hall menu.Hall,
	date string,
	report *menu.RunReport,
) error {
	payload, raw, err := source.FetchMenu(ctx, hall.Name, date)
	if err != nil {
		report.LocationsSkipped++
		r.logger.Warn("skipping location", zap.String("location", hall.Name), zap.String("date", date), zap.Error(err))
		return nil
	}
	if _, err := r.deps.Archive.Record(ctx, kind, date, hall.ID, raw); err != nil {
		r.logger.Warn("archive raw payload failed", zap.String("location", hall.Name), zap.Error(err))
	}
	obs := normalize.Flatten(payload)
	if len(obs) == 0 {
		r.logger.Info("no meals served", zap.String("location", hall.Name), zap.String("date", date))
	}
	report.Locations++
	return run.Apply(ctx, hall, date, obs)
}

func (r *Runner) scorer() reconcile.Scorer {
	if r.cfg.SeededScores <= 0 {
		return reconcile.FixedScorer{Value: reconcile.DefaultScore}
	}
	seed := uint64(r.deps.Clock.Now().UnixNano())
	return reconcile.NewSeededScorer(r.cfg.SeededScores, 950, 1050, seed)
}

func (r *Runner) publish(ctx context.Context, report menu.RunReport) {
	if r.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	id, err := r.deps.Publisher.Publish(ctx, report.Kind, report)
	if err != nil {
		r.logger.Warn("publish run report failed", zap.String("run_id", report.RunID), zap.Error(err))
		return
	}
	r.logger.Debug("run report published", zap.String("run_id", report.RunID), zap.String("message_id", id))
}

// HistoryDates lists the dates from days before now through now, oldest
// first, in now's zone.
func HistoryDates(now time.Time, days int) []string {
	if days < 0 {
		days = 0
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
	out := make([]string, 0, days+1)
	for i := 0; i <= days; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(dateLayout))
	}
	return out
}
