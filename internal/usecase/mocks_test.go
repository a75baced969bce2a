package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/memory"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

// MockScorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, f entity.LeadFeatures) (*entity.ScoreResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ScoreResult), args.Error(1)
}

// MockResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Predict(ctx context.Context, req entity.EmailPredictionRequest) (*entity.EmailPrediction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EmailPrediction), args.Error(1)
}

// MockProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Send(ctx context.Context, msg entity.OutgoingEmail) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// fakePublisher records published tasks and fails when err is set.
type fakePublisher struct {
	mu        sync.Mutex
	err       error
	enrich    []queue.EnrichTask
	campaigns []queue.CampaignTask
	scrapes   []queue.ScrapeTask
	imports   []queue.ImportTask
}

func (p *fakePublisher) PublishEnrich(_ context.Context, t queue.EnrichTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.enrich = append(p.enrich, t)
	return nil
}

func (p *fakePublisher) PublishCampaign(_ context.Context, t queue.CampaignTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.campaigns = append(p.campaigns, t)
	return nil
}

func (p *fakePublisher) PublishScrape(_ context.Context, t queue.ScrapeTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.scrapes = append(p.scrapes, t)
	return nil
}

func (p *fakePublisher) PublishImport(_ context.Context, t queue.ImportTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.imports = append(p.imports, t)
	return nil
}

// memTaskStore keeps task records in a map.
type memTaskStore struct {
	mu      sync.Mutex
	records map[string]TaskRecord
	err     error
}

func (s *memTaskStore) Save(_ context.Context, rec *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[rec.TaskID] = *rec
	return nil
}

func (s *memTaskStore) Get(_ context.Context, id string) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &rec, nil
}

// fixture wires every use case over one in-memory store.
type fixture struct {
	store     *memory.Store
	tasks     *fakePublisher
	taskStore *memTaskStore
	tracker   *TaskTracker
	scorer    *MockScorer
	resolver  *MockResolver
	provider  *MockProvider
	leads     *LeadUseCase
	enrich    *EnrichLeadUseCase
	projects  *ProjectUseCase
	templates *TemplateUseCase
	campaigns *CampaignUseCase
	tracking  *TrackingUseCase
	ingest    *IngestUseCase
	project   *entity.Project
}

const owner = "user-1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store:     memory.NewStore(),
		tasks:     &fakePublisher{},
		taskStore: &memTaskStore{records: map[string]TaskRecord{}},
		scorer:    new(MockScorer),
		resolver:  new(MockResolver),
		provider:  new(MockProvider),
	}
	s := f.store
	f.leads = NewLeadUseCase(s.Leads, s.Projects, f.tasks, log)
	f.enrich = NewEnrichLeadUseCase(s.Leads, f.resolver, f.scorer, RetryPolicy{}, nil, log)
	f.projects = NewProjectUseCase(s.Projects, s.Leads, s.Campaigns, f.tasks, log)
	f.templates = NewTemplateUseCase(s.Templates, s.Projects, s.Leads, nil, 0, log)
	f.campaigns = NewCampaignUseCase(s.Campaigns, s.Templates, s.Projects, s.Leads, f.provider, f.tasks,
		NewSigner("secret", "https://t.example.com"), 0, nil, log)
	f.tracking = NewTrackingUseCase(s.Campaigns, nil, nil, log)
	f.ingest = NewIngestUseCase(s.Leads, s.Projects, nil, RetryPolicy{}, nil, log)
	f.tracker = NewTaskTracker(f.taskStore, log)
	f.projects.Tracker = f.tracker
	f.ingest.Tracker = f.tracker

	p, err := f.projects.Create(context.Background(), owner, ProjectInput{Name: "Fintech"})
	require.NoError(t, err)
	f.project = p
	return f
}

func (f *fixture) lead(t *testing.T, in CreateLeadInput) *entity.Lead {
	t.Helper()
	in.ProjectID = f.project.ID
	out, err := f.leads.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return out.Lead
}

// drainEnrich runs every published enrichment task through the orchestrator.
func (f *fixture) drainEnrich(t *testing.T) {
	t.Helper()
	f.tasks.mu.Lock()
	tasks := f.tasks.enrich
	f.tasks.enrich = nil
	f.tasks.mu.Unlock()
	for _, task := range tasks {
		_, err := f.enrich.Execute(context.Background(), task.LeadID)
		require.NoError(t, err)
	}
}

func (f *fixture) reload(t *testing.T, id string) *entity.Lead {
	t.Helper()
	l, err := f.store.Leads.FindByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }
