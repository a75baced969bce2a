package entity

import "context"

// LeadFeatures is the input the scoring model sees for one lead.
type LeadFeatures struct {
	Title           string  `json:"title"`
	Company         string  `json:"company"`
	CompanyDomain   string  `json:"company_domain"`
	CompanySize     string  `json:"company_size"`
	Industry        string  `json:"industry"`
	Location        string  `json:"location"`
	HasEmail        bool    `json:"has_email"`
	HasLinkedIn     bool    `json:"has_linkedin"`
	HasPhone        bool    `json:"has_phone"`
	EmailConfidence float64 `json:"email_confidence"`
}

type ScoreFactor struct {
	Value      string  `json:"value"`
	Importance float64 `json:"importance"`
}

type ScoreResult struct {
	Score   int                    `json:"score"`
	Factors map[string]ScoreFactor `json:"factors"`
	Reasons []string               `json:"reasons,omitempty"`
}

type EmailPredictionRequest struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Domain      string   `json:"domain"`
	KnownEmails []string `json:"known_emails,omitempty"`
}

type EmailCandidate struct {
	Email      string  `json:"email"`
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
}

type FormatAnalysis struct {
	PrimaryFormat string   `json:"primary_format"`
	Formats       []string `json:"formats"`
	Confidence    float64  `json:"confidence"`
	SampleSize    int      `json:"sample_size"`
}

// EmailPrediction candidates are ranked, best first.
type EmailPrediction struct {
	Candidates     []EmailCandidate `json:"candidates"`
	FormatAnalysis *FormatAnalysis  `json:"format_analysis,omitempty"`
}

func (p *EmailPrediction) Top() (EmailCandidate, bool) {
	if p == nil || len(p.Candidates) == 0 {
		return EmailCandidate{}, false
	}
	return p.Candidates[0], true
}

type ScrapeRequest struct {
	ProjectID     string   `json:"project_id"`
	Industry      string   `json:"industry,omitempty"`
	TitleKeywords []string `json:"title_keywords,omitempty"`
	Location      string   `json:"location,omitempty"`
	CompanySize   string   `json:"company_size,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	MaxResults    int      `json:"max_results"`
}

// LeadCandidate is a raw lead as discovered by the scraper or an import.
type LeadCandidate struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Title         string `json:"title"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	LinkedInURL   string `json:"linkedin_url"`
	TwitterURL    string `json:"twitter_url"`
	WebsiteURL    string `json:"website_url"`
	Company       string `json:"company"`
	CompanyDomain string `json:"company_domain"`
	CompanySize   string `json:"company_size"`
	Industry      string `json:"industry"`
	Location      string `json:"location"`
	Notes         string `json:"notes"`
	Source        string `json:"source"`
}

// OutgoingEmail is one rendered message. When PixelURL is set the provider
// adds an HTML alternative carrying the open-tracking pixel.
type OutgoingEmail struct {
	From     string
	ReplyTo  string
	To       string
	Subject  string
	Body     string
	PixelURL string
	Headers  map[string]string
}

type GenerationRequest struct {
	Purpose            string
	Tone               string
	Length             string
	Focus              string
	CustomInstructions string
	SampleLeads        []*Lead
}

type GeneratedEmail struct {
	Subject string
	Body    string
}

type ScoringAdapter interface {
	Score(ctx context.Context, features LeadFeatures) (*ScoreResult, error)
}

type EmailResolver interface {
	Predict(ctx context.Context, req EmailPredictionRequest) (*EmailPrediction, error)
}

type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) ([]LeadCandidate, error)
}

// EmailProvider returns the provider's delivery id on success. Failures are
// *SendError for one recipient or *SystemicError for a provider outage.
type EmailProvider interface {
	Send(ctx context.Context, msg OutgoingEmail) (string, error)
}

type TemplateGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedEmail, error)
}
