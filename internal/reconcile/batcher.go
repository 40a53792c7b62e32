package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
	"github.com/JakeFAU/dining-menu-sync/internal/metrics"
)

// DefaultMaxBatchOps is the daily upload's batch limit.
const DefaultMaxBatchOps = 400

var tracer = otel.Tracer("github.com/JakeFAU/dining-menu-sync/internal/reconcile")

// ErrRunAborted wraps the commit error that stopped a run.
var ErrRunAborted = errors.New("run aborted")

// Stats counts what a run queued and committed.
type Stats struct {
	Observations     int
	OpsQueued        int
	BatchesCommitted int
	BatchesFailed    int
	SeededScores     int
}

// Batcher queues merge writes and commits them in batches of at most
// maxOps writes. Commits are synchronous; a batch is always committed before
// the next one receives its first write.
type Batcher struct {
	store   docstore.Store
	maxOps  int
	limiter *rate.Limiter
	logger  *zap.Logger
	current docstore.Batch
	stats   *Stats
}

// NewBatcher builds a Batcher. pause is the minimum spacing between commits;
// zero disables it. Counters are accumulated into stats.
func NewBatcher(store docstore.Store, maxOps int, pause time.Duration, stats *Stats, logger *zap.Logger) *Batcher {
	if maxOps <= 0 {
		maxOps = DefaultMaxBatchOps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = &Stats{}
	}
	limit := rate.Inf
	if pause > 0 {
		limit = rate.Every(pause)
	}
	return &Batcher{
		store:   store,
		maxOps:  maxOps,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		current: store.NewBatch(),
		stats:   stats,
	}
}

// Queue adds one write, flushing first-come batches as they fill up. It only
// returns an error when the run must stop.
func (b *Batcher) Queue(ctx context.Context, ref docstore.Ref, fields docstore.Fields) error {
	b.current.SetMerge(ref, fields)
	b.stats.OpsQueued++
	metrics.ObserveOpQueued()
	if b.current.Len() >= b.maxOps {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of writes waiting in the current batch.
func (b *Batcher) Pending() int {
	return b.current.Len()
}

// Flush commits the current batch and starts a new one. Quota failures are
// returned wrapped in ErrRunAborted; other failures are logged and dropped.
func (b *Batcher) Flush(ctx context.Context) error {
	ops := b.current.Len()
	if ops == 0 {
		return nil
	}
	pending := b.current
	b.current = b.store.NewBatch()

	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: wait before commit: %w", ErrRunAborted, err)
	}
	ctx, span := tracer.Start(ctx, "reconcile.commit")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.ops", ops))
	err := pending.Commit(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	switch {
	case err == nil:
		b.stats.BatchesCommitted++
		metrics.ObserveCommit("ok", ops)
		b.logger.Info("batch committed", zap.Int("ops", ops), zap.Int("batch", b.stats.BatchesCommitted))
		return nil
	case docstore.IsQuota(err):
		b.stats.BatchesFailed++
		metrics.ObserveCommit("quota", ops)
		b.logger.Error("store quota exceeded, stopping run", zap.Int("ops", ops), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRunAborted, err)
	case ctx.Err() != nil:
		b.stats.BatchesFailed++
		metrics.ObserveCommit("failed", ops)
		return fmt.Errorf("%w: %w", ErrRunAborted, err)
	default:
		b.stats.BatchesFailed++
		metrics.ObserveCommit("failed", ops)
		b.logger.Warn("batch commit failed, continuing", zap.Int("ops", ops), zap.Error(err))
		return nil
	}
}
