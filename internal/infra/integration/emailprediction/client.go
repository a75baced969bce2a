package emailprediction

import (
	"context"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/integration"
)

// Client calls the email prediction service.
type Client struct {
	api *integration.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, onError integration.ErrorHook) *Client {
	api := integration.NewClient("email_resolver", baseURL, timeout)
	if apiKey != "" {
		api.Headers["X-API-Key"] = apiKey
	}
	api.OnError = onError
	return &Client{api: api}
}

type predictRequest struct {
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	CompanyDomain string   `json:"company_domain"`
	KnownEmails   []string `json:"known_emails"`
}

type predictResponse struct {
	Predictions    []entity.EmailCandidate `json:"predictions"`
	FormatAnalysis *entity.FormatAnalysis  `json:"format_analysis"`
}

func (c *Client) Predict(ctx context.Context, req entity.EmailPredictionRequest) (*entity.EmailPrediction, error) {
	body := predictRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		CompanyDomain: req.Domain,
		KnownEmails:   req.KnownEmails,
	}
	if body.KnownEmails == nil {
		body.KnownEmails = []string{}
	}

	var resp predictResponse
	if err := c.api.PostJSON(ctx, "predict", "/predict", body, &resp); err != nil {
		return nil, err
	}
	return &entity.EmailPrediction{Candidates: resp.Predictions, FormatAnalysis: resp.FormatAnalysis}, nil
}
