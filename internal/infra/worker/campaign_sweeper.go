package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type StalledCampaignRecoverer interface {
	RecoverStalled(ctx context.Context, idleSince time.Time) (int, error)
}

// CampaignSweeper re-enqueues campaigns left in sending after their worker
// crashed or their task was lost.
type CampaignSweeper struct {
	campaigns    StalledCampaignRecoverer
	stallAfter   time.Duration
	tickInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewCampaignSweeper(campaigns StalledCampaignRecoverer, stallAfter, tickInterval time.Duration, logger *zap.Logger) *CampaignSweeper {
	return &CampaignSweeper{
		campaigns:    campaigns,
		stallAfter:   stallAfter,
		tickInterval: tickInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (w *CampaignSweeper) Start(ctx context.Context) {
	w.logger.Info("campaign sweeper started",
		zap.Duration("stall_after", w.stallAfter), zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("campaign sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CampaignSweeper) sweep(ctx context.Context) int {
	idleSince := w.now().UTC().Add(-w.stallAfter)
	n, err := w.campaigns.RecoverStalled(ctx, idleSince)
	if err != nil {
		w.logger.Error("failed to sweep stalled campaigns", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.logger.Warn("stalled campaigns re-enqueued", zap.Int("count", n), zap.Time("idle_since", idleSince))
	}
	return n
}
