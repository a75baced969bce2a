package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CampaignDispatcher starts every scheduled campaign whose time has come.
type CampaignDispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (int, error)
}

// CampaignScheduler wraps robfig/cron and fires the dispatch loop. Overlapping
// ticks are skipped while a dispatch is still running.
type CampaignScheduler struct {
	cron       *cron.Cron
	dispatcher CampaignDispatcher
	spec       string // e.g. "@every 1m"
	logger     *zap.Logger
	now        func() time.Time
}

func NewCampaignScheduler(dispatcher CampaignDispatcher, spec string, logger *zap.Logger) *CampaignScheduler {
	return &CampaignScheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		dispatcher: dispatcher,
		spec:       spec,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the job, starts cron and runs one dispatch immediately.
func (s *CampaignScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("campaign scheduler started", zap.String("spec", s.spec))

	go s.RunOnce(ctx)
	return nil
}

// Stop waits for a running dispatch to finish.
func (s *CampaignScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("campaign scheduler stopped")
}

func (s *CampaignScheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started, err := s.dispatcher.DispatchDue(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to dispatch due campaigns", zap.Error(err))
		return
	}
	if started > 0 {
		s.logger.Info("due campaigns started", zap.Int("count", started))
	}
}
