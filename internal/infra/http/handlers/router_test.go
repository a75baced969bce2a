package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/http/middleware"
	"github.com/xavierca1/leadforge/internal/infra/integration/emailprediction"
	"github.com/xavierca1/leadforge/internal/infra/memory"
	"github.com/xavierca1/leadforge/internal/infra/queue"
	"github.com/xavierca1/leadforge/internal/usecase"
)

const (
	jwtSecret     = "jwt-secret"
	trackingKey   = "tracking-secret"
	callbackKey   = "scraper-key"
	alice         = "alice"
	bob           = "bob"
	trackingLimit = 5
)

type recordingPublisher struct {
	mu      sync.Mutex
	enrich  []queue.EnrichTask
	starts  []queue.CampaignTask
	scrapes []queue.ScrapeTask
	imports []queue.ImportTask
}

func (p *recordingPublisher) PublishEnrich(_ context.Context, t queue.EnrichTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrich = append(p.enrich, t)
	return nil
}

func (p *recordingPublisher) PublishCampaign(_ context.Context, t queue.CampaignTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, t)
	return nil
}

func (p *recordingPublisher) PublishScrape(_ context.Context, t queue.ScrapeTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrapes = append(p.scrapes, t)
	return nil
}

func (p *recordingPublisher) PublishImport(_ context.Context, t queue.ImportTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imports = append(p.imports, t)
	return nil
}

type mapTaskStore struct {
	mu      sync.Mutex
	records map[string]usecase.TaskRecord
}

func (s *mapTaskStore) Save(_ context.Context, rec *usecase.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.TaskID] = *rec
	return nil
}

func (s *mapTaskStore) Get(_ context.Context, taskID string) (*usecase.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &rec, nil
}

type apiHarness struct {
	store   *memory.Store
	tasks   *recordingPublisher
	ingest  *usecase.IngestUseCase
	signer  *usecase.Signer
	handler http.Handler
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	log := zap.NewNop()
	s := memory.NewStore()
	tasks := &recordingPublisher{}
	signer := usecase.NewSigner(trackingKey, "https://api.example.com")

	campaigns := usecase.NewCampaignUseCase(s.Campaigns, s.Templates, s.Projects, s.Leads, nil, tasks, signer, 0, nil, log)
	tracker := usecase.NewTaskTracker(&mapTaskStore{records: map[string]usecase.TaskRecord{}}, log)
	projects := usecase.NewProjectUseCase(s.Projects, s.Leads, s.Campaigns, tasks, log)
	projects.Tracker = tracker
	ingest := usecase.NewIngestUseCase(s.Leads, s.Projects, nil, usecase.RetryPolicy{}, nil, log)
	ingest.Tracker = tracker
	predict := usecase.NewEnrichLeadUseCase(s.Leads, emailprediction.NewPredictor(), nil, usecase.RetryPolicy{}, nil, log)
	limiter := NewRateLimiter(trackingLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	rt := &Router{
		Health:      NewHealthHandler(nil, nil, nil),
		Leads:       NewLeadHandler(usecase.NewLeadUseCase(s.Leads, s.Projects, tasks, log), log),
		Projects:    NewProjectHandler(projects, log),
		Templates:   NewTemplateHandler(usecase.NewTemplateUseCase(s.Templates, s.Projects, s.Leads, nil, 0, log), log),
		Campaigns:   NewCampaignHandler(campaigns, log),
		Tracking:    NewTrackingHandler(usecase.NewTrackingUseCase(s.Campaigns, nil, nil, log), signer, log),
		Scraper:     NewScraperHandler(ingest, log),
		Analytics:   NewAnalyticsHandler(usecase.NewAnalyticsUseCase(s.Projects, s.Leads, s.Campaigns, s.Templates), log),
		Tasks:       NewTaskHandler(tracker, log),
		Predict:     NewPredictionHandler(predict, log),
		Auth:        middleware.NewAuthenticator(jwtSecret),
		TrackingRPS: limiter,
	}

	return &apiHarness{
		store:   s,
		tasks:   tasks,
		ingest:  ingest,
		signer:  signer,
		handler: rt.Handler(RouterConfig{CORSOrigins: []string{"*"}, ScraperCallbackKey: callbackKey}),
	}
}

func bearer(t *testing.T, user string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *apiHarness) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set("Authorization", bearer(t, user))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *apiHarness) project(t *testing.T, user string) string {
	t.Helper()
	rec := h.do(t, user, http.MethodPost, "/projects", map[string]any{"name": "Fintech"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entity.Project](t, rec).ID
}

func (h *apiHarness) lead(t *testing.T, user string, input usecase.CreateLeadInput) string {
	t.Helper()
	rec := h.do(t, user, http.MethodPost, "/leads", input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["id"].(string)
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, "", http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, rec).Error)
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)

	rec = h.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestLeads_CreateAndGet(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)

	id := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", Email: "ana@acme.io"})

	rec := h.do(t, alice, http.MethodGet, "/leads/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, true, got["contactable"])
	assert.Equal(t, "new", got["status"])
	assert.Nil(t, got["score"])

	rec = h.do(t, bob, http.MethodGet, "/leads/"+id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, alice, http.MethodGet, "/leads/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeads_ValidationIs422WithFields(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, alice, http.MethodPost, "/leads", usecase.CreateLeadInput{Email: "not-an-email"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, usecase.CodeValidation, body.Error)
	var fields []string
	for _, f := range body.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "project_id")
	assert.Contains(t, fields, "email")
}

// TestLeads_MalformedJSONIs422 - unparseable bodies share the validation error shape
func TestLeads_MalformedJSONIs422(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, alice, http.MethodPost, "/leads", `{"first_name":`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, usecase.CodeValidation, body.Error)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "body", body.Fields[0].Field)

	rec = h.do(t, alice, http.MethodPost, "/leads", `{"first_name":"Ana","nickname":"A"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// TestLeads_SearchIndustryAndMinScore - technology leads at or above 80, best first
func TestLeads_SearchIndustryAndMinScore(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)

	for _, seed := range []struct {
		industry string
		score    int
	}{
		{"Technology", 92}, {"Retail", 65}, {"Finance", 81}, {"Information Technology", 70}, {"technology", 95},
	} {
		l := entity.NewLead(pid, alice)
		l.Industry = seed.industry
		score := seed.score
		l.Score = &score
		l.Status = entity.LeadStatusScored
		require.NoError(t, h.store.Leads.Create(context.Background(), l))
	}

	rec := h.do(t, alice, http.MethodPost, "/leads/search", map[string]any{"industry": "technology", "min_score": 80})
	require.Equal(t, http.StatusOK, rec.Code)

	var scores []int
	for _, l := range decode[[]map[string]any](t, rec) {
		scores = append(scores, int(l["score"].(float64)))
	}
	assert.Equal(t, []int{95, 92}, scores)

	rec = h.do(t, alice, http.MethodGet, "/leads?industry=technology&min_score=80&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = h.do(t, alice, http.MethodGet, "/leads?min_score=high", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// TestLeads_BatchEnrichReturnsPerItemResults - one bad id does not fail the batch
func TestLeads_BatchEnrichReturnsPerItemResults(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	a := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", LastName: "Souza", CompanyDomain: "acme.io"})
	b := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Bruno", LastName: "Lima"})

	rec := h.do(t, alice, http.MethodPost, "/leads/enrich", map[string]any{"lead_ids": []string{a, b, "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Results []usecase.EnrichItemResult `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 3)
	assert.Equal(t, usecase.ItemQueued, body.Results[0].Status)
	assert.Equal(t, usecase.ItemQueued, body.Results[1].Status)
	assert.Equal(t, usecase.ItemFailed, body.Results[2].Status)
	assert.Equal(t, usecase.CodeNotFound, body.Results[2].Code)
	assert.Len(t, h.tasks.enrich, 2)

	// already enriching
	rec = h.do(t, alice, http.MethodPost, "/leads/"+a+"/enrich", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeads_SingleEnrichIsAccepted(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	id := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana"})

	rec := h.do(t, alice, http.MethodPost, "/leads/"+id+"/enrich", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	handle := decode[usecase.TaskHandle](t, rec)
	assert.NotEmpty(t, handle.TaskID)
	assert.Equal(t, "enrich", handle.Kind)
}

func TestProjects_ImportAcceptsCSV(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)

	rec := h.do(t, alice, http.MethodPost, "/projects/"+pid+"/import", "first_name,email\nAna,ana@acme.io\n")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, h.tasks.imports, 1)
	assert.Equal(t, pid, h.tasks.imports[0].ProjectID)

	rec = h.do(t, alice, http.MethodPost, "/projects/"+pid+"/import", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProjects_DeleteRefusedWithLeads(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana"})

	rec := h.do(t, alice, http.MethodDelete, "/projects/"+pid, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCampaigns_LifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	lid := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", Email: "ana@acme.io"})

	rec := h.do(t, alice, http.MethodPost, "/emails/templates", usecase.TemplateInput{
		Name: "Intro", Subject: "Hi {{.FirstName}}", Body: "Hello {{.Company}}",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tid := decode[entity.EmailTemplate](t, rec).ID

	rec = h.do(t, alice, http.MethodPost, "/emails/campaigns", usecase.CampaignInput{
		Name: "Q3", TemplateID: tid, ProjectID: pid, FromEmail: "sales@leadforge.io", LeadIDs: []string{lid},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cid := decode[map[string]any](t, rec)["id"].(string)

	rec = h.do(t, alice, http.MethodPost, "/emails/campaigns/"+cid+"/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, alice, http.MethodPost, "/emails/campaigns/"+cid+"/start", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "sending", decode[map[string]any](t, rec)["status"])
	assert.Len(t, h.tasks.starts, 1)

	rec = h.do(t, alice, http.MethodDelete, "/emails/campaigns/"+cid, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, alice, http.MethodGet, "/emails/campaigns/"+cid+"/recipients?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = h.do(t, bob, http.MethodGet, "/emails/campaigns/"+cid, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func (h *apiHarness) signedEvent(t *testing.T, payload string, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tracking/events", strings.NewReader(payload))
	req.Header.Set("X-Signature", sig)
	req.RemoteAddr = "203.0.113.7:4000"
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestTracking_EventSignature(t *testing.T) {
	h := newHarness(t)
	payload := `{"event_id":"e1","campaign_id":"c1","lead_id":"l1","kind":"open"}`

	rec := h.signedEvent(t, payload, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.signedEvent(t, payload, "sha256="+h.signer.Sign([]byte(payload)))
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown recipient")

	rec = h.signedEvent(t, `{"event_id":"e2","kind":"bounce"}`, h.signer.Sign([]byte(`{"event_id":"e2","kind":"bounce"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTracking_RateLimited(t *testing.T) {
	h := newHarness(t)

	var last int
	for i := 0; i < trackingLimit+1; i++ {
		last = h.signedEvent(t, `{}`, "bad").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestTracking_Pixel(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, "", http.MethodGet, "/tracking/open/c1/l1.gif?sig=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sig := h.signer.Sign([]byte("open:c1:l1"))
	rec = h.do(t, "", http.MethodGet, "/tracking/open/c1/l1.gif?sig="+sig, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, rec.Body.Bytes())
}

func TestScraperCallback_RequiresAPIKey(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	payload := `{"project_id":"` + pid + `","leads":[{"first_name":"Ana","last_name":"Souza","email":"ana@acme.io"}]}`

	req := httptest.NewRequest(http.MethodPost, "/scraper/callback", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/scraper/callback", strings.NewReader(payload))
	req.Header.Set("X-API-Key", callbackKey)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[usecase.IngestResult](t, rec).Created)
}

func TestAnalytics_Dashboard(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana"})

	rec := h.do(t, alice, http.MethodGet, "/analytics/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[usecase.Dashboard](t, rec)
	assert.Equal(t, 1, d.TotalProjects)
	assert.Equal(t, 1, d.TotalLeads)
}

// TestTasks_ImportStatusOverHTTP - queued on request, counts once the worker ran it
func TestTasks_ImportStatusOverHTTP(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)

	rec := h.do(t, alice, http.MethodPost, "/projects/"+pid+"/import", "first_name,email\nAna,ana@acme.io\nBia,not-an-email\n")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	handle := decode[usecase.TaskHandle](t, rec)

	rec = h.do(t, alice, http.MethodGet, "/tasks/"+handle.TaskID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	queued := decode[usecase.TaskRecord](t, rec)
	assert.Equal(t, usecase.TaskQueued, queued.Status)
	assert.Nil(t, queued.Result)

	require.Len(t, h.tasks.imports, 1)
	_, err := h.ingest.ExecuteImport(context.Background(), h.tasks.imports[0])
	require.NoError(t, err)

	rec = h.do(t, alice, http.MethodGet, "/tasks/"+handle.TaskID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[usecase.TaskRecord](t, rec)
	assert.Equal(t, usecase.TaskSucceeded, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Created)
	assert.Equal(t, 1, done.Result.Failed)
	assert.NotNil(t, done.QueuedAt)
	assert.NotNil(t, done.FinishedAt)

	rec = h.do(t, bob, http.MethodGet, "/tasks/"+handle.TaskID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, alice, http.MethodGet, "/tasks/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestAnalytics_LeadQuality - distributions per project, other users' projects refused
func TestAnalytics_LeadQuality(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	other := h.project(t, alice)
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", Source: "linkedin"})
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Bia", Source: "linkedin"})
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Caio"})
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: other, FirstName: "Duda", Source: "csv"})

	rec := h.do(t, alice, http.MethodGet, "/analytics/leads/quality?project_id="+pid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[usecase.LeadQuality](t, rec)
	assert.Equal(t, 3, q.TotalLeads)
	assert.Len(t, q.ScoreDistribution, 4)
	require.Len(t, q.SourceDistribution, 2)
	assert.Equal(t, usecase.Share{Name: "linkedin", Count: 2, Percentage: 66.67}, q.SourceDistribution[0])
	assert.Equal(t, usecase.Share{Name: "manual", Count: 1, Percentage: 33.33}, q.SourceDistribution[1])
	require.Len(t, q.StatusDistribution, 1)
	assert.Equal(t, "new", q.StatusDistribution[0].Name)

	rec = h.do(t, alice, http.MethodGet, "/analytics/leads/quality", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[usecase.LeadQuality](t, rec).TotalLeads)

	rec = h.do(t, bob, http.MethodGet, "/analytics/leads/quality?project_id="+pid, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestAnalytics_CampaignPerformance - per-campaign rows carry the template name
func TestAnalytics_CampaignPerformance(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	lid := h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", Email: "ana@acme.io"})

	rec := h.do(t, alice, http.MethodPost, "/emails/templates", usecase.TemplateInput{
		Name: "Intro", Subject: "Hi {{.FirstName}}", Body: "Hello {{.Company}}",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tid := decode[entity.EmailTemplate](t, rec).ID

	rec = h.do(t, alice, http.MethodPost, "/emails/campaigns", usecase.CampaignInput{
		Name: "Q3", TemplateID: tid, ProjectID: pid, FromEmail: "sales@leadforge.io", LeadIDs: []string{lid},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, alice, http.MethodGet, "/analytics/campaigns/performance?project_id="+pid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[usecase.CampaignPerformance](t, rec)
	assert.Equal(t, 1, p.TotalCampaigns)
	require.Len(t, p.Campaigns, 1)
	assert.Equal(t, "Q3", p.Campaigns[0].Name)
	assert.Equal(t, "Intro", p.Campaigns[0].TemplateName)
	assert.False(t, p.Campaigns[0].IsAIGenerated)
	assert.Equal(t, entity.CampaignStatusDraft, p.Campaigns[0].Status)

	rec = h.do(t, bob, http.MethodGet, "/analytics/campaigns/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[usecase.CampaignPerformance](t, rec).Campaigns)
}

// TestAI_PredictEmail - formats are learned from the caller's own leads only
func TestAI_PredictEmail(t *testing.T) {
	h := newHarness(t)
	pid := h.project(t, alice)
	h.lead(t, alice, usecase.CreateLeadInput{ProjectID: pid, FirstName: "Ana", LastName: "Lima", Email: "a.lima@acme.io"})
	body := usecase.PredictEmailInput{FirstName: "Bruno", LastName: "Costa", CompanyDomain: "acme.io"}

	rec := h.do(t, alice, http.MethodPost, "/ai/predict-email", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[entity.EmailPrediction](t, rec)
	top, ok := got.Top()
	require.True(t, ok)
	assert.Equal(t, "b.costa@acme.io", top.Email)

	rec = h.do(t, bob, http.MethodPost, "/ai/predict-email", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[entity.EmailPrediction](t, rec)
	top, ok = got.Top()
	require.True(t, ok)
	assert.Equal(t, "bruno.costa@acme.io", top.Email)

	rec = h.do(t, alice, http.MethodPost, "/ai/predict-email", usecase.PredictEmailInput{FirstName: "Bruno"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, decode[ErrorResponse](t, rec).Fields, 2)
}
