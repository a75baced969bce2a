package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
)

const knownEmailSample = 50

const (
	EnrichmentScored  = "scored"
	EnrichmentFailed  = "failed"
	EnrichmentSkipped = "skipped"
	EnrichmentDropped = "dropped"
)

// EnrichLeadUseCase drives one lead from enriching to scored or
// enrichment_failed. Email resolution always happens before scoring.
type EnrichLeadUseCase struct {
	Leads    entity.LeadRepository
	Resolver entity.EmailResolver
	Scorer   entity.ScoringAdapter
	Retry    RetryPolicy
	Metrics  Metrics
	Logger   *zap.Logger
}

func NewEnrichLeadUseCase(
	leads entity.LeadRepository,
	resolver entity.EmailResolver,
	scorer entity.ScoringAdapter,
	retry RetryPolicy,
	metrics Metrics,
	logger *zap.Logger,
) *EnrichLeadUseCase {
	return &EnrichLeadUseCase{
		Leads:    leads,
		Resolver: resolver,
		Scorer:   scorer,
		Retry:    retry,
		Metrics:  metricsOrNop(metrics),
		Logger:   logger,
	}
}

// Execute returns an error only for infrastructure failures; adapter
// failures are recorded on the lead.
func (uc *EnrichLeadUseCase) Execute(ctx context.Context, leadID string) (*entity.Lead, error) {
	log := uc.Logger.With(zap.String("lead_id", leadID))

	lead, err := uc.Leads.FindByID(ctx, leadID)
	if errors.Is(err, entity.ErrNotFound) {
		log.Warn("lead vanished before enrichment, dropping task")
		uc.Metrics.RecordEnrichment(EnrichmentSkipped)
		return nil, nil
	}
	if err != nil {
		return nil, technical("failed to load lead", err)
	}
	if lead.Status != entity.LeadStatusEnriching {
		log.Info("lead no longer enriching, skipping stale task", zap.String("status", string(lead.Status)))
		uc.Metrics.RecordEnrichment(EnrichmentSkipped)
		return lead, nil
	}

	patch, enrichErr := uc.enrich(ctx, lead)
	outcome := EnrichmentScored
	if enrichErr != nil {
		reason := enrichErr.Error()
		patch = entity.LeadPatch{Status: entity.LeadStatusEnrichmentFailed, FailureReason: &reason}
		outcome = EnrichmentFailed
		log.Warn("enrichment failed", zap.Error(enrichErr))
	}

	updated, err := uc.Leads.Transition(ctx, leadID, []entity.LeadStatus{entity.LeadStatusEnriching}, patch)
	if errors.Is(err, entity.ErrStaleState) || errors.Is(err, entity.ErrNotFound) {
		log.Info("lead changed during enrichment, result dropped")
		uc.Metrics.RecordEnrichment(EnrichmentDropped)
		return nil, nil
	}
	if err != nil {
		return nil, technical("failed to persist enrichment", err)
	}

	uc.Metrics.RecordEnrichment(outcome)
	if outcome == EnrichmentScored {
		log.Info("lead scored", zap.Intp("score", updated.Score), zap.String("predicted_email", updated.PredictedEmail))
	}
	return updated, nil
}

func (uc *EnrichLeadUseCase) enrich(ctx context.Context, lead *entity.Lead) (entity.LeadPatch, error) {
	working := *lead

	var prediction *entity.EmailPrediction
	if !lead.HasValidEmail() {
		p, err := uc.resolve(ctx, lead)
		if err != nil {
			return entity.LeadPatch{}, err
		}
		top, _ := p.Top()
		prediction = p
		working.PredictedEmail = top.Email
		working.EmailConfidence = top.Confidence
		working.EmailFormat = top.Format
	}

	var result *entity.ScoreResult
	err := uc.Retry.Do(ctx, func(ctx context.Context) error {
		r, err := uc.Scorer.Score(ctx, working.Features())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return entity.LeadPatch{}, asAdapterError("scoring", "score", err)
	}
	if result == nil {
		return entity.LeadPatch{}, entity.NewPermanentAdapterError("scoring", "score", errors.New("empty response"))
	}

	score := entity.ClampScore(result.Score)
	data := lead.EnrichmentData
	data.ScoreExplanation = &entity.ScoreExplanation{
		Score:   score,
		Band:    entity.ScoreBand(score),
		Reasons: result.Reasons,
		Factors: result.Factors,
	}
	if prediction != nil {
		data.EmailPrediction = prediction
	}

	cleared := ""
	patch := entity.LeadPatch{
		Status:         entity.LeadStatusScored,
		Score:          &score,
		EnrichmentData: &data,
		FailureReason:  &cleared,
	}
	if prediction != nil {
		patch.PredictedEmail = &working.PredictedEmail
		patch.EmailConfidence = &working.EmailConfidence
		patch.EmailFormat = &working.EmailFormat
	}
	return patch, nil
}

func (uc *EnrichLeadUseCase) resolve(ctx context.Context, lead *entity.Lead) (*entity.EmailPrediction, error) {
	var missing []string
	if strings.TrimSpace(lead.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(lead.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if strings.TrimSpace(lead.CompanyDomain) == "" {
		missing = append(missing, "company_domain")
	}
	if len(missing) > 0 {
		return nil, entity.NewPermanentAdapterError("email_resolver", "predict",
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	known, err := uc.Leads.KnownEmailsByDomain(ctx, lead.OwnerID, lead.CompanyDomain, knownEmailSample)
	if err != nil {
		uc.Logger.Warn("failed to load known emails, predicting without samples",
			zap.String("domain", lead.CompanyDomain), zap.Error(err))
		known = nil
	}

	req := entity.EmailPredictionRequest{
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Domain:      lead.CompanyDomain,
		KnownEmails: known,
	}

	var prediction *entity.EmailPrediction
	err = uc.Retry.Do(ctx, func(ctx context.Context) error {
		p, err := uc.Resolver.Predict(ctx, req)
		if err != nil {
			return err
		}
		prediction = p
		return nil
	})
	if err != nil {
		return nil, asAdapterError("email_resolver", "predict", err)
	}
	if _, ok := prediction.Top(); !ok {
		return nil, entity.NewPermanentAdapterError("email_resolver", "predict", errors.New("no email candidates"))
	}
	return prediction, nil
}

// PredictEmail runs the resolver for an ad-hoc contact, seeded with the
// caller's own addresses at the same domain. Nothing is persisted.
func (uc *EnrichLeadUseCase) PredictEmail(ctx context.Context, ownerID string, in PredictEmailInput) (*entity.EmailPrediction, error) {
	req := entity.EmailPredictionRequest{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Domain:    strings.ToLower(strings.TrimSpace(in.CompanyDomain)),
	}
	var errs []ValidationError
	if req.FirstName == "" {
		errs = append(errs, ValidationError{Field: "first_name", Message: "is required"})
	}
	if req.LastName == "" {
		errs = append(errs, ValidationError{Field: "last_name", Message: "is required"})
	}
	if req.Domain == "" {
		errs = append(errs, ValidationError{Field: "company_domain", Message: "is required"})
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	if uc.Resolver == nil {
		return nil, unavailable("email prediction is not configured", nil)
	}

	known, err := uc.Leads.KnownEmailsByDomain(ctx, ownerID, req.Domain, knownEmailSample)
	if err != nil {
		return nil, technical("failed to load known emails", err)
	}
	req.KnownEmails = known

	var prediction *entity.EmailPrediction
	err = uc.Retry.Do(ctx, func(ctx context.Context) error {
		p, err := uc.Resolver.Predict(ctx, req)
		if err != nil {
			return err
		}
		prediction = p
		return nil
	})
	if err != nil {
		return nil, unavailable("email prediction failed", asAdapterError("email_resolver", "predict", err))
	}
	if prediction == nil {
		prediction = &entity.EmailPrediction{}
	}
	if prediction.Candidates == nil {
		prediction.Candidates = []entity.EmailCandidate{}
	}
	return prediction, nil
}

func asAdapterError(adapter, op string, err error) error {
	var ae *entity.AdapterError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &entity.AdapterError{Adapter: adapter, Op: op, Err: fmt.Errorf("timed out: %w", err)}
	}
	return &entity.AdapterError{Adapter: adapter, Op: op, Err: err}
}
