package usecase

import (
	"context"

	"github.com/xavierca1/leadforge/internal/infra/queue"
)

// TaskPublisher enqueues work for the worker process.
type TaskPublisher interface {
	PublishEnrich(ctx context.Context, task queue.EnrichTask) error
	PublishCampaign(ctx context.Context, task queue.CampaignTask) error
	PublishScrape(ctx context.Context, task queue.ScrapeTask) error
	PublishImport(ctx context.Context, task queue.ImportTask) error
}

// EventDeduper reports whether an event key is seen for the first time.
// Forget drops a key whose event could not be applied so a retry counts.
type EventDeduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Metrics interface {
	RecordEnrichment(outcome string)
	RecordEmail(outcome string)
	RecordEngagement(kind string)
	RecordLeadsIngested(source string, n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordEnrichment(string)         {}
func (nopMetrics) RecordEmail(string)              {}
func (nopMetrics) RecordEngagement(string)         {}
func (nopMetrics) RecordLeadsIngested(string, int) {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
