package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/metrics"
)

// Collection names.
const (
	CollectionDishes       = "dishes"
	CollectionGlobalDishes = "globalDishes"
)

// Config tunes a Reconciler.
type Config struct {
	MaxBatchOps int
	Pause       time.Duration
	SlugLength  int
	Policy      Policy
}

// Reconciler turns observations into merge writes.
type Reconciler struct {
	store  docstore.Store
	tagger menu.Tagger
	scorer Scorer
	cfg    Config
	logger *zap.Logger
}

// New builds a Reconciler. A nil scorer selects FixedScorer and an empty
// policy selects DailyPolicy.
func New(store docstore.Store, tagger menu.Tagger, scorer Scorer, cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer = FixedScorer{Value: DefaultScore}
	}
	if cfg.SlugLength <= 0 {
		cfg.SlugLength = menu.DefaultSlugLength
	}
	if cfg.MaxBatchOps <= 0 {
		cfg.MaxBatchOps = DefaultMaxBatchOps
	}
	if cfg.Policy.Name == "" {
		cfg.Policy = DailyPolicy
	}
	return &Reconciler{store: store, tagger: tagger, scorer: scorer, cfg: cfg, logger: logger}
}

// Run holds the state of one reconciliation run.
type Run struct {
	ID    string
	Stats Stats

	rec     *Reconciler
	batcher *Batcher
	logger  *zap.Logger
}

// Begin starts a run with fresh counters and an empty batch.
func (r *Reconciler) Begin(id string) *Run {
	run := &Run{ID: id, rec: r, logger: r.logger.With(zap.String("run_id", id))}
	run.batcher = NewBatcher(r.store, r.cfg.MaxBatchOps, r.cfg.Pause, &run.Stats, run.logger)
	return run
}

// UpsertLocation queues a merge write of the location record, refreshing
// lastUpdated. Empty optional attributes are left untouched.
func (run *Run) UpsertLocation(ctx context.Context, loc menu.Location) error {
	if loc.ID == "" {
		return fmt.Errorf("upsert location %q: empty id", loc.Name)
	}
	fields := docstore.Fields{
		"name":        loc.Name,
		"type":        string(loc.Type),
		"lastUpdated": docstore.ServerTimestamp,
	}
	if loc.Address != "" {
		fields["address"] = loc.Address
		fields["location"] = loc.Address
	}
	if loc.Hours != "" {
		fields["hours"] = loc.Hours
	}
	if loc.MenuURL != "" {
		fields["menuUrl"] = loc.MenuURL
	}
	return run.batcher.Queue(ctx, docstore.Doc(loc.Type.Collection(), loc.ID), fields)
}

// Apply queues a local and a global write for every observation made at hall
// on date. Observations whose name yields an empty slug are skipped.
func (run *Run) Apply(ctx context.Context, hall menu.Hall, date string, obs []menu.Observation) error {
	r := run.rec
	hallRef := docstore.Doc(menu.CollectionDiningHalls, hall.ID)
	queued := 0
	for _, o := range obs {
		slug := menu.Slug(o.Name, r.cfg.SlugLength)
		if slug == "" {
			run.logger.Debug("skipping dish with empty slug", zap.String("name", o.Name))
			continue
		}
		tags := r.tagger.Tags(o.Name)
		local := build(r.cfg.Policy.Local, map[string]any{
			FieldName:           o.Name,
			FieldCategory:       menu.CategoryDiningHall,
			FieldCurrentStation: o.Station,
			FieldLastServedDate: date,
			FieldMealsServed:    mealValue(o.Meal),
			FieldStations:       o.Station,
			FieldTags:           tags,
			FieldScore:          r.scorer.InitialScore(&run.Stats, o.Name),
			FieldAverageRating:  DefaultAverageRating,
		})
		global := build(r.cfg.Policy.Global, map[string]any{
			FieldName:           o.Name,
			FieldCategory:       menu.CategoryDiningHall,
			FieldTags:           tags,
			FieldLastServedDate: date,
			FieldLocations:      hall.Name,
		})
		if err := run.batcher.Queue(ctx, hallRef.Sub(CollectionDishes, slug), local); err != nil {
			return err
		}
		if err := run.batcher.Queue(ctx, docstore.Doc(CollectionGlobalDishes, slug), global); err != nil {
			return err
		}
		run.Stats.Observations++
		queued++
	}
	metrics.ObserveObservations(hall.Name, queued)
	run.logger.Info("observations queued",
		zap.String("location", hall.Name),
		zap.String("date", date),
		zap.Int("dishes", queued),
		zap.Int("pending_ops", run.batcher.Pending()),
	)
	return nil
}

// Finish commits whatever is still queued.
func (run *Run) Finish(ctx context.Context) error {
	return run.batcher.Flush(ctx)
}

func mealValue(w menu.MealWindow) map[string]any {
	return map[string]any{
		"name":      w.Name,
		"startTime": optional(w.StartTime),
		"endTime":   optional(w.EndTime),
	}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
