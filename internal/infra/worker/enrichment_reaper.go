package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const staleEnrichmentReason = "enrichment timed out"

type StaleEnrichmentMarker interface {
	MarkStaleEnrichments(ctx context.Context, olderThan time.Time, reason string) (int, error)
}

// EnrichmentReaper fails leads left in enriching after their task was lost,
// so they can be enriched again.
type EnrichmentReaper struct {
	leads        StaleEnrichmentMarker
	staleAfter   time.Duration
	tickInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewEnrichmentReaper(leads StaleEnrichmentMarker, staleAfter, tickInterval time.Duration, logger *zap.Logger) *EnrichmentReaper {
	return &EnrichmentReaper{
		leads:        leads,
		staleAfter:   staleAfter,
		tickInterval: tickInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (w *EnrichmentReaper) Start(ctx context.Context) {
	w.logger.Info("enrichment reaper started",
		zap.Duration("stale_after", w.staleAfter), zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.reap(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("enrichment reaper stopped")
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *EnrichmentReaper) reap(ctx context.Context) int {
	cutoff := w.now().UTC().Add(-w.staleAfter)
	n, err := w.leads.MarkStaleEnrichments(ctx, cutoff, staleEnrichmentReason)
	if err != nil {
		w.logger.Error("failed to reap stale enrichments", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.logger.Warn("stale enrichments marked failed", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n
}
