package scoring

import (
	"context"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/integration"
)

// Client talks to the ML scoring service.
type Client struct {
	api *integration.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, onError integration.ErrorHook) *Client {
	api := integration.NewClient("scoring", baseURL, timeout)
	if apiKey != "" {
		api.Headers["X-API-Key"] = apiKey
	}
	api.OnError = onError
	return &Client{api: api}
}

type scoreRequest struct {
	Leads []entity.LeadFeatures `json:"leads"`
}

type scoreResponse struct {
	Results []entity.ScoreResult `json:"results"`
}

func (c *Client) Score(ctx context.Context, features entity.LeadFeatures) (*entity.ScoreResult, error) {
	var resp scoreResponse
	if err := c.api.PostJSON(ctx, "score", "/score", scoreRequest{Leads: []entity.LeadFeatures{features}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}
