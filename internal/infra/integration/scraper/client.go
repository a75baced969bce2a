package scraper

import (
	"context"
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/integration"
)

// Client calls the scraper microservice. The service answers synchronously
// with what it found; larger jobs may also post back to CallbackURL.
type Client struct {
	api         *integration.Client
	callbackURL string
}

func NewClient(baseURL, callbackURL string, timeout time.Duration, onError integration.ErrorHook) *Client {
	api := integration.NewClient("scraper", baseURL, timeout)
	api.OnError = onError
	return &Client{api: api, callbackURL: callbackURL}
}

type scrapeRequest struct {
	entity.ScrapeRequest
	CallbackURL string `json:"callback_url,omitempty"`
}

type profile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	LinkedInURL string `json:"linkedin_url"`
	Source      string `json:"source"`
}

type contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Source    string `json:"source"`
}

type website struct {
	Company      string    `json:"company"`
	Domain       string    `json:"domain"`
	Contacts     []contact `json:"contacts"`
	PhoneNumbers []string  `json:"phone_numbers"`
}

type scrapeResponse struct {
	Status           string    `json:"status"`
	LinkedInProfiles []profile `json:"linkedin_profiles"`
	WebsiteData      []website `json:"website_data"`
}

func (c *Client) Scrape(ctx context.Context, req entity.ScrapeRequest) ([]entity.LeadCandidate, error) {
	var resp scrapeResponse
	if err := c.api.PostJSON(ctx, "scrape", "/scrape", scrapeRequest{ScrapeRequest: req, CallbackURL: c.callbackURL}, &resp); err != nil {
		return nil, err
	}
	return resp.candidates(), nil
}

func (r scrapeResponse) candidates() []entity.LeadCandidate {
	out := make([]entity.LeadCandidate, 0, len(r.LinkedInProfiles))
	for _, p := range r.LinkedInProfiles {
		out = append(out, entity.LeadCandidate{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Title:       p.Title,
			Company:     p.Company,
			Location:    p.Location,
			LinkedInURL: p.LinkedInURL,
			Source:      orDefault(p.Source, "linkedin"),
		})
	}
	for _, site := range r.WebsiteData {
		for _, ct := range site.Contacts {
			out = append(out, entity.LeadCandidate{
				FirstName:     ct.FirstName,
				LastName:      ct.LastName,
				Title:         ct.Title,
				Email:         ct.Email,
				Phone:         ct.Phone,
				Company:       site.Company,
				CompanyDomain: site.Domain,
				WebsiteURL:    websiteURL(site.Domain),
				Source:        orDefault(ct.Source, "website"),
			})
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func websiteURL(domain string) string {
	if domain == "" {
		return ""
	}
	return "https://" + domain
}
